package memory

import (
	"regexp"
	"strings"
)

// bslKeywords are markers of executable 1C:Enterprise (BSL) code. Both
// Russian and English spellings appear in the wild.
var bslKeywords = []string{
	"процедура", "функция", "конецпроцедуры", "конецфункции",
	"если", "тогда", "конецесли", "цикл", "конеццикла",
	"возврат", "новый", "попытка", "исключение",
	"procedure", "function", "endprocedure", "endfunction",
	"if", "then", "endif", "for", "enddo", "return", "new", "try", "except",
}

// referenceTitle matches titles that read as how-to prose rather than
// a runnable example.
var referenceTitle = regexp.MustCompile(`(?i)(как |how to|что такое|what is|описание|overview|справка|reference)`)

const (
	minSnippetCodeChars = 80
	codeToDescRatio     = 1.2
	codeShareThreshold  = 0.45
)

// Classify decides whether a record is an executable snippet or a
// prose reference. Short code blocks and how-to titles lean reference;
// BSL keywords plus code dominating the description lean snippet.
func Classify(title, description, code string) SnippetClass {
	code = strings.TrimSpace(code)
	if len(code) < minSnippetCodeChars {
		return ClassReference
	}
	if referenceTitle.MatchString(title) && !hasBSLKeywords(code) {
		return ClassReference
	}
	if hasBSLKeywords(code) {
		if float64(len(code)) > float64(len(description))*codeToDescRatio {
			return ClassSnippet
		}
	}
	total := len(code) + len(description)
	if total > 0 && float64(len(code))/float64(total) > codeShareThreshold {
		return ClassSnippet
	}
	return ClassReference
}

func hasBSLKeywords(code string) bool {
	lower := strings.ToLower(code)
	for _, kw := range bslKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
