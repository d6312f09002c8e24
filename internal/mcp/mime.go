package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps document-name extensions to MIME types. Knowledge-base
// documents are prose; unknown extensions fall back to plain text.
var mimeTypes = map[string]string{
	".md":   "text/markdown",
	".mdx":  "text/markdown",
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".pdf":  "application/pdf",
	".json": "application/json",
	".csv":  "text/csv",
	".xml":  "text/xml",
	".rst":  "text/x-rst",
	".tex":  "text/x-tex",
}

// MimeTypeForDocID returns the MIME type for a document identifier. Doc IDs
// often carry the source file name ("10k_2023.pdf"); IDs without a
// recognized extension are plain text.
func MimeTypeForDocID(docID string) string {
	ext := strings.ToLower(filepath.Ext(docID))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "text/plain"
}
