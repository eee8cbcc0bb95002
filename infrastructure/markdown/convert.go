// Package markdown converts vendor help HTML into normalized Markdown.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	headingTag = regexp.MustCompile(`(?is)<h[12][^>]*>(.*?)</h[12]>`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Convert turns an HTML document into Markdown. The conversion is
// pure: headings and code blocks are preserved, runs of blank lines
// are collapsed, and surrounding whitespace is trimmed.
func Convert(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	md = blankRuns.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}

// Title extracts the first h1/h2 text from an HTML document, or empty
// when none is present.
func Title(html string) string {
	m := headingTag.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	text := anyTag.ReplaceAllString(m[1], "")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// LooksLikeHTML reports whether a byte prefix resembles an HTML
// document. Used to classify extensionless files from help bundles.
func LooksLikeHTML(prefix []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(prefix)))
	return strings.HasPrefix(head, "<!doctype") ||
		strings.HasPrefix(head, "<html") ||
		strings.HasPrefix(head, "<head") ||
		strings.HasPrefix(head, "<?xml")
}
