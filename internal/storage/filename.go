package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const maxNameLength = 120

// SanitizeFilename reduces an uploaded file name to a safe base name made of
// ASCII letters, digits, dots, dashes and underscores.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), "._")
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	if len(cleaned) > maxNameLength {
		ext := filepath.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:maxNameLength-len(ext)] + ext
	}
	if cleaned == "" {
		return "resume"
	}
	return cleaned
}

// ResumeName builds the stored name <student_id>_<unix_ts>_<sanitised original>.
func ResumeName(studentID string, at time.Time, original string) string {
	return fmt.Sprintf("%s_%d_%s", studentID, at.Unix(), SanitizeFilename(original))
}

// ValidName reports whether name is a flat stored name safe to resolve.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return SanitizeFilename(name) == name
}
