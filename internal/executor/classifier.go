package executor

import (
	"mime"
	"path/filepath"
	"strings"

	"qaflow/internal/store"
)

// Classifier maps a harvested file name to an evidence category. It is a
// plain function so alternative heuristics can be swapped in.
type Classifier func(name string) (category string, ok bool)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

var reportExtensions = map[string]bool{
	".json": true,
	".html": true,
	".xml":  true,
}

// DefaultClassifier categorizes by extension, with a name heuristic for
// logs (runners write files like "trace-output.txt").
func DefaultClassifier(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.ToLower(filepath.Base(name))

	switch {
	case imageExtensions[ext]:
		return store.CategoryScreenshots, true
	case ext == ".log":
		return store.CategoryLogs, true
	case reportExtensions[ext]:
		return store.CategoryReports, true
	case ext == ".txt" || strings.Contains(base, "log"):
		return store.CategoryLogs, true
	default:
		return "", false
	}
}

// contentTypeFor guesses a MIME type for upload metadata.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// reportType distinguishes structured from rendered reports.
func reportType(name string) string {
	if strings.ToLower(filepath.Ext(name)) == ".html" {
		return "html"
	}
	return "json"
}
