package invoice

import (
	"errors"
	"fmt"
)

// Ingestion failure kinds. Every failed ingestion returns an *IngestError
// whose Kind is one of these, so callers can use errors.Is.
var (
	ErrEmptyUpload        = errors.New("empty upload")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrExtractionTimedOut = errors.New("extraction timed out")
	ErrNotAnInvoice       = errors.New("document is not an invoice")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrDuplicateInvoice   = errors.New("duplicate invoice")
	ErrArchivalFailed     = errors.New("archival failed")
	ErrPersistenceFailed  = errors.New("persistence failed")
)

// Store errors
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrDuplicateKey    = errors.New("duplicate key")
)

// ErrInvalidEdit is returned when an invoice edit is rejected
var ErrInvalidEdit = errors.New("invalid invoice edit")

// IngestError is the typed failure of one ingestion attempt
type IngestError struct {
	Kind error
	Err  error

	// InvoiceNumber or Fingerprint identify the conflicting record on
	// ErrDuplicateInvoice
	InvoiceNumber string
	Fingerprint   string
}

func (e *IngestError) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.InvoiceNumber != "":
		msg = fmt.Sprintf("%s: invoice number %q already exists", msg, e.InvoiceNumber)
	case e.Fingerprint != "":
		msg = fmt.Sprintf("%s: invoice %q already exists", msg, e.Fingerprint)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether uploading the same document again may succeed
func (e *IngestError) Retryable() bool {
	switch e.Kind {
	case ErrExtractionFailed, ErrExtractionTimedOut, ErrArchivalFailed, ErrPersistenceFailed:
		return true
	}
	return false
}

// UserMessage is a message suitable for showing to the uploader
func (e *IngestError) UserMessage() string {
	switch e.Kind {
	case ErrEmptyUpload, ErrExtractionFailed, ErrExtractionTimedOut, ErrNotAnInvoice, ErrDocumentUnreadable:
		return "Could not process this document."
	case ErrDuplicateInvoice:
		if e.InvoiceNumber != "" {
			return fmt.Sprintf("Duplicate: an invoice with ID '%s' already exists.", e.InvoiceNumber)
		}
		return "Duplicate: an invoice from the same vendor for the same amount and date already exists."
	case ErrArchivalFailed, ErrPersistenceFailed:
		return "A temporary error occurred, please try again."
	}
	return "An internal server error occurred."
}

func ingestError(kind error, err error) *IngestError {
	return &IngestError{Kind: kind, Err: err}
}
