// Package extract obtains raw financial fields for uploaded documents, either
// from the remote extraction service or from an LLM.
package extract

import (
	"context"
	"errors"

	"noi_analyzer/pkg/core/normalize"
)

// ErrExtractionFailed wraps every extraction failure.
var ErrExtractionFailed = errors.New("extraction failed")

// Document is one uploaded file.
type Document struct {
	Name        string
	ContentType string
	Content     []byte
	TypeHint    string // optional document_type hint, e.g. "budget"
}

// Extractor turns a document into a raw extraction.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (normalize.RawExtraction, error)
}
