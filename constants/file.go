package constants

import "strings"

const (
	// PDFMimeType is stored on every ingested document.
	PDFMimeType = "application/pdf"
	// PDFExt is the blob extension used when a caller supplies none.
	PDFExt = ".pdf"
	// DefaultFileName substitutes an empty or unusable original file name.
	DefaultFileName = "document.pdf"
)

// AllowedExtensions holds the file extensions picked up by directory and inbox ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt checks ext (with or without dot) against AllowedExtensions.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
