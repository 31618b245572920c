package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// maxUploadSize bounds multipart uploads (high resolution phone photos)
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestStatus maps an ingestion failure kind to an HTTP status
func ingestStatus(kind error) int {
	switch kind {
	case ErrEmptyUpload:
		return http.StatusBadRequest
	case ErrNotAnInvoice, ErrDocumentUnreadable:
		return http.StatusUnprocessableEntity
	case ErrDuplicateInvoice:
		return http.StatusConflict
	case ErrExtractionFailed:
		return http.StatusBadGateway
	case ErrExtractionTimedOut:
		return http.StatusGatewayTimeout
	case ErrArchivalFailed, ErrPersistenceFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// uploadedFile returns the uploaded document from either form field the
// clients use
func uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	f, header, err := r.FormFile("invoiceFile")
	if errors.Is(err, http.ErrMissingFile) {
		return r.FormFile("file")
	}
	return f, header, err
}

// contentTypeOf determines the document type from the part header, the file
// extension or, last, the bytes themselves
func contentTypeOf(header *multipart.FileHeader, data []byte) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}

// handleUploadInvoice runs the ingestion pipeline on an uploaded document
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	inv, err := s.service.Ingest(r.Context(), IngestRequest{
		WorkspaceID: r.PathValue("workspace"),
		UploaderID:  s.uploaderID(r),
		FileName:    header.Filename,
		ContentType: contentTypeOf(header, data),
		Data:        data,
	})
	if err != nil {
		var ie *IngestError
		if !errors.As(err, &ie) {
			writeError(w, http.StatusInternalServerError, "An internal server error occurred.")
			return
		}
		writeJSON(w, ingestStatus(ie.Kind), map[string]any{
			"error":     ie.UserMessage(),
			"kind":      ie.Kind.Error(),
			"retryable": ie.Retryable(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// handleListInvoices returns a workspace's invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices(r.PathValue("workspace"))
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while fetching invoices.")
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoice(r.PathValue("workspace"), r.PathValue("id"))
	if err != nil {
		s.notFoundOrError(w, err, "Invoice not found.")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleGetInvoiceFile returns the archived original of an invoice
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetInvoiceFile(r.PathValue("workspace"), r.PathValue("id"))
	if err != nil {
		s.notFoundOrError(w, err, "File not found.")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleMarkPaid marks an invoice as paid now
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.MarkPaid(r.PathValue("workspace"), r.PathValue("id"))
	if err != nil {
		s.notFoundOrError(w, err, "Invoice not found or you do not have permission to modify it.")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleEditInvoice applies a partial update to an invoice
func (s *Server) handleEditInvoice(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	for _, name := range immutableFields {
		if _, ok := fields[name]; ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s cannot be changed.", name))
			return
		}
	}

	var edit InvoiceEdit
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	inv, err := s.service.EditInvoice(r.PathValue("workspace"), r.PathValue("id"), s.uploaderID(r), edit)
	if errors.Is(err, ErrInvalidEdit) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.notFoundOrError(w, err, "Invoice not found or you do not have permission to modify it.")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleListCorrections returns a workspace's category correction log
func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	corrections, err := s.service.ListCorrections(r.PathValue("workspace"))
	if err != nil {
		slog.Error("Error listing corrections", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while fetching corrections.")
		return
	}
	writeJSON(w, http.StatusOK, corrections)
}

// handleDashboardStats returns the workspace dashboard numbers
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DashboardStats(r.PathValue("workspace"))
	if err != nil {
		slog.Error("Error computing dashboard stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not fetch dashboard stats.")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// analyticsFilter reads the optional startDate, endDate (YYYY-MM-DD) and
// category query parameters
func analyticsFilter(r *http.Request) (AnalyticsFilter, error) {
	q := r.URL.Query()
	filter := AnalyticsFilter{Category: q.Get("category")}
	for param, dst := range map[string]*time.Time{"startDate": &filter.Start, "endDate": &filter.End} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s, expected YYYY-MM-DD", param)
		}
		*dst = t
	}
	return filter, nil
}

// handleAnalytics returns the spend breakdown
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	filter, err := analyticsFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analytics, err := s.service.Analytics(r.PathValue("workspace"), filter)
	if err != nil {
		slog.Error("Error computing analytics", "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while fetching analytics data.")
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// handleExport returns the filtered invoices as an XLSX download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := analyticsFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	workspaceID := r.PathValue("workspace")
	data, err := s.service.ExportXLSX(workspaceID, filter)
	if err != nil {
		slog.Error("Error exporting invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not export invoices.")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoices-"+workspaceID+".xlsx"))
	w.Write(data)
}

// handleGetWorkspace returns a workspace's category configuration
func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.service.GetWorkspace(r.PathValue("workspace"))
	if err != nil {
		s.notFoundOrError(w, err, "Workspace not found.")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// handlePutCategories replaces a workspace's category taxonomy
func (s *Server) handlePutCategories(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := validateCategoryConfig(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Categories []Category `json:"categories"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ws := &Workspace{ID: r.PathValue("workspace"), Categories: req.Categories}
	for i := range ws.Categories {
		if ws.Categories[i].Tags == nil {
			ws.Categories[i].Tags = []string{}
		}
	}
	if err := ws.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.service.SaveWorkspace(ws); err != nil {
		slog.Error("Error saving workspace", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not save categories.")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) notFoundOrError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, ErrInvoiceNotFound) || errors.Is(err, ErrWorkspaceNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	slog.Error("Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "An internal server error occurred.")
}
