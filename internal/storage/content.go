package storage

import (
	"github.com/gabriel-vasile/mimetype"
)

// SniffBytes is how much of a stored file is inspected to pick its type.
const SniffBytes = 3072

// inlineTypes are document formats safe to render in the browser.
var inlineTypes = []string{
	"application/pdf",
	"text/plain",
	"text/rtf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.oasis.opendocument.text",
}

// Disposition detects the type of a file from its leading bytes. Anything
// that is not a known document type is served as an opaque download.
func Disposition(head []byte) (contentType string, inline bool) {
	detected := mimetype.Detect(head)
	for _, allowed := range inlineTypes {
		if detected.Is(allowed) {
			return detected.String(), true
		}
	}
	return "application/octet-stream", false
}
