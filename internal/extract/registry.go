package extract

import (
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

const (
	ContentTypePDF   = "application/pdf"
	ContentTypeDocx  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePlain = "text/plain"
)

// TextExtractor pulls plain text out of a stored blob on disk.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// Registry dispatches extraction by content type.
type Registry struct {
	byType map[string]TextExtractor
}

func NewRegistry() *Registry {
	return &Registry{
		byType: map[string]TextExtractor{
			ContentTypePDF:   &PDFExtractor{},
			ContentTypeDocx:  &DocxExtractor{},
			ContentTypePlain: &PlainExtractor{},
		},
	}
}

// Extract returns sanitized text for the blob at path. Unknown content types
// return util.ErrUnsupportedFormat; documents with no usable text return
// util.ErrEmptyText.
func (r *Registry) Extract(path, contentType string) (string, error) {
	ex, ok := r.byType[contentType]
	if !ok {
		return "", util.ErrUnsupportedFormat
	}
	text, err := ex.Extract(path)
	if err != nil {
		return "", err
	}
	text = util.SanitizeText(text)
	if text == "" {
		return "", util.ErrEmptyText
	}
	return text, nil
}

// Supported reports whether contentType has a registered extractor.
func (r *Registry) Supported(contentType string) bool {
	_, ok := r.byType[contentType]
	return ok
}
