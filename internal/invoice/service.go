package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoiceflow/internal/extraction"
)

// IDGenerator generates unique IDs for invoices and archived files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the ingestion pipeline and the read-side invoice operations
type Service struct {
	db          DB
	extractor   extraction.Extractor
	archive     Archive
	categorizer Categorizer
	duplicates  *DuplicateDetector
	resolver    *StatusResolver
	cfg         Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor extraction.Extractor, archive Archive, categorizer Categorizer, cfg Config) *Service {
	return NewServiceWithDeps(db, extractor, archive, categorizer, cfg, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, archive Archive, categorizer Categorizer, cfg Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		archive:     archive,
		categorizer: categorizer,
		duplicates:  NewDuplicateDetector(db),
		resolver:    NewStatusResolver(cfg),
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// IngestRequest is one uploaded document. WorkspaceID and UploaderID come
// from the authenticated caller, never from the document.
type IngestRequest struct {
	WorkspaceID string
	UploaderID  string
	FileName    string
	ContentType string
	Data        []byte
}

// Ingest turns one uploaded document into a stored invoice. Every step's
// failure ends the run with an *IngestError. Nothing is written before the
// duplicate check passes, and the original file is archived before the
// record is stored so no record exists without its source file.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Invoice, error) {
	inv, err := s.ingest(ctx, req)
	if err != nil {
		var ie *IngestError
		if errors.As(err, &ie) {
			slog.Error("Failed to ingest invoice",
				"workspace_id", req.WorkspaceID,
				"file_name", req.FileName,
				"file_size", len(req.Data),
				"kind", ie.Kind.Error(),
				"error", err,
			)
		}
		return nil, err
	}

	slog.Info("Ingested invoice",
		"workspace_id", inv.WorkspaceID,
		"id", inv.ID,
		"status", inv.Status,
		"category", inv.Category,
	)
	return inv, nil
}

func (s *Service) ingest(ctx context.Context, req IngestRequest) (*Invoice, error) {
	if len(req.Data) == 0 {
		return nil, ingestError(ErrEmptyUpload, nil)
	}

	ws, err := s.db.GetWorkspace(req.WorkspaceID)
	if errors.Is(err, ErrWorkspaceNotFound) {
		return nil, ingestError(ErrWorkspaceNotFound, err)
	}
	if err != nil {
		return nil, ingestError(ErrPersistenceFailed, fmt.Errorf("loading workspace: %w", err))
	}

	raw, err := s.extract(ctx, req, ws.CategoryNames())
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	n := Normalize(raw, s.cfg, now)
	if len(n.Defaulted) > 0 {
		slog.Warn("Defaulted invoice fields", "file_name", req.FileName, "fields", n.Defaulted)
	}

	inv := n.Invoice
	inv.ID = s.idGenerator.Generate()
	inv.WorkspaceID = req.WorkspaceID
	inv.UploadedBy = req.UploaderID
	inv.UploadedAt = now
	inv.OriginalFileName = req.FileName
	inv.ContentType = req.ContentType

	match, err := s.duplicates.Check(n)
	if err != nil {
		return nil, ingestError(ErrPersistenceFailed, err)
	}
	if match != nil {
		return nil, &IngestError{
			Kind:          ErrDuplicateInvoice,
			InvoiceNumber: match.InvoiceNumber,
			Fingerprint:   match.Fingerprint,
		}
	}

	inv.Status, inv.PaymentDate = s.resolver.Resolve(n, now)
	inv.Category = s.categorizer.Categorize(n, ws.Categories)

	ref, err := s.archive.Save(s.archiveName(req.FileName), req.Data)
	if err != nil {
		return nil, ingestError(ErrArchivalFailed, err)
	}
	inv.FileName = ref

	if err := s.db.SaveInvoice(inv); err != nil {
		// roll the archive back with the record
		if delErr := s.archive.Delete(ref); delErr != nil {
			slog.Warn("Failed to delete archived file", "file_name", ref, "error", delErr)
		}
		if errors.Is(err, ErrDuplicateKey) {
			return nil, &IngestError{
				Kind:          ErrDuplicateInvoice,
				Err:           err,
				InvoiceNumber: deref(inv.InvoiceNumber),
				Fingerprint:   deref(inv.Fingerprint),
			}
		}
		return nil, ingestError(ErrPersistenceFailed, err)
	}

	return inv, nil
}

// extract calls the backend under the configured timeout and classifies
// its failures
func (s *Service) extract(ctx context.Context, req IngestRequest, categories []string) (*extraction.RawExtraction, error) {
	if s.cfg.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExtractionTimeout)
		defer cancel()
	}

	raw, err := s.extractor.Extract(ctx, extraction.Document{
		Data:        req.Data,
		ContentType: req.ContentType,
		Categories:  categories,
	})
	switch {
	// backends report deadlines in their own error types, so ctx decides
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		return nil, ingestError(ErrExtractionTimedOut, err)
	case errors.Is(err, extraction.ErrUnsupportedDocument):
		return nil, ingestError(ErrDocumentUnreadable, err)
	case err != nil:
		return nil, ingestError(ErrExtractionFailed, err)
	case raw == nil:
		return nil, ingestError(ErrDocumentUnreadable, nil)
	case raw.NotAnInvoice:
		return nil, ingestError(ErrNotAnInvoice, nil)
	case raw.Empty():
		return nil, ingestError(ErrDocumentUnreadable, nil)
	}
	return raw, nil
}

var extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// archiveName generates a collision-free file name, keeping only a safe
// extension from the uploaded name
func (s *Service) archiveName(fileName string) string {
	name := s.idGenerator.Generate()
	if ext := strings.ToLower(filepath.Ext(fileName)); extensionPattern.MatchString(ext) {
		name += ext
	}
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
