package extraction

import (
	"context"
	"errors"
)

// ErrMalformedResponse is returned when a backend answers with something that
// is not a JSON object.
var ErrMalformedResponse = errors.New("malformed extraction response")

// ErrUnsupportedDocument is returned when the uploaded bytes cannot be turned
// into an image for the backend: unknown formats, corrupt PDFs or images.
var ErrUnsupportedDocument = errors.New("unsupported document")

// Document is a single uploaded file handed to an extraction backend
type Document struct {
	Data        []byte
	ContentType string
	// Categories, when set, is offered to the backend as a closed list to
	// choose the invoice category from.
	Categories []string
}

// RawExtraction is the loosely typed record returned by a backend. Every
// value in Fields may be missing, null or of the wrong type.
type RawExtraction struct {
	Fields map[string]any
	// NotAnInvoice is set when the backend explicitly says the document is
	// something other than an invoice or receipt.
	NotAnInvoice bool
}

// Empty reports whether the extraction carries no usable fields at all
func (r *RawExtraction) Empty() bool {
	if r == nil {
		return true
	}
	for _, v := range r.Fields {
		if v != nil {
			return false
		}
	}
	return true
}

// Extractor defines the interface for invoice extraction backends
type Extractor interface {
	// Extract analyzes a document and returns whatever structure the backend
	// could recover. Cancellation and deadlines come from ctx.
	Extract(ctx context.Context, doc Document) (*RawExtraction, error)
	// Close releases backend resources
	Close() error
}
