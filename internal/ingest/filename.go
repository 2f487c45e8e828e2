package ingest

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/docrepo/constants"
)

const maxFileNameRunes = 255

// SanitizeFileName reduces a caller-supplied name to a bare base name.
// Both '/' and '\' count as separators regardless of platform.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return constants.DefaultFileName
	}
	if r := []rune(name); len(r) > maxFileNameRunes {
		ext := filepath.Ext(name)
		if len([]rune(ext)) >= maxFileNameRunes {
			ext = ""
		}
		name = string(r[:maxFileNameRunes-len([]rune(ext))]) + ext
	}
	return name
}

// IsHidden reports whether the last element of path starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
