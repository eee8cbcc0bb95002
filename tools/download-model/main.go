// Tool that downloads the multilingual embedding model used by the
// local backend into the model cache directory.
//
// Usage: go run ./tools/download-model [dest]
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
)

// defaultModel handles Russian and English help text with one model.
const defaultModel = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"

func main() {
	dest := defaultDest()
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloading %s to %s...\n", defaultModel, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	modelPath, err := hugot.DownloadModel(defaultModel, dest, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model downloaded to %s\n", modelPath)
}

func defaultDest() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".helpdex", "models")
	}
	return filepath.Join(home, ".helpdex", "models")
}
