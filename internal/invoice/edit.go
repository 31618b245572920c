package invoice

import (
	"fmt"
	"strings"
	"time"
)

// immutableFields are the JSON names of invoice fields an edit may not
// touch. The natural keys back the duplicate indexes and the rest is owned
// by ingestion.
var immutableFields = []string{
	"id", "workspaceId", "uploadedBy", "uploadedAt",
	"invoiceId", "fingerprint", "vendorName", "invoiceDate", "invoiceTotal",
	"fileName", "originalFileName", "contentType",
}

// InvoiceEdit is a partial update of an invoice. Nil fields are left as
// they are.
type InvoiceEdit struct {
	CustomerName *string    `json:"customerName"`
	DueDate      *time.Time `json:"dueDate"`
	Currency     *string    `json:"currency"`
	Category     *string    `json:"category"`
	Status       *Status    `json:"status"`
	PaymentDate  *time.Time `json:"paymentDate"`
}

// EditInvoice applies a user edit to an invoice. Moving an invoice out of
// Uncategorized also records a correction log entry for the workspace.
func (s *Service) EditInvoice(workspaceID, id, userID string, edit InvoiceEdit) (*Invoice, error) {
	inv, err := s.db.GetInvoice(workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	now := s.timeSource.Now()
	previousCategory := inv.Category

	if edit.CustomerName != nil {
		inv.CustomerName = strings.TrimSpace(*edit.CustomerName)
		if inv.CustomerName == "" {
			inv.CustomerName = NotAvailable
		}
	}

	if edit.DueDate != nil {
		due := dateOnly(*edit.DueDate)
		if due.Before(inv.InvoiceDate) {
			return nil, fmt.Errorf("%w: due date before invoice date", ErrInvalidEdit)
		}
		inv.DueDate = &due
	}

	if edit.Currency != nil {
		code := currencyCode(*edit.Currency)
		if code == "" {
			return nil, fmt.Errorf("%w: unknown currency %q", ErrInvalidEdit, *edit.Currency)
		}
		inv.Currency = code
	}

	if edit.Category != nil {
		category := strings.TrimSpace(*edit.Category)
		if category != Uncategorized {
			ws, err := s.db.GetWorkspace(workspaceID)
			if err != nil {
				return nil, fmt.Errorf("getting workspace: %w", err)
			}
			if !ws.HasCategory(category) {
				return nil, fmt.Errorf("%w: %q is not a workspace category", ErrInvalidEdit, category)
			}
		}
		inv.Category = category
	}

	if edit.Status != nil {
		switch *edit.Status {
		case StatusPaid:
			if inv.Status != StatusPaid || inv.PaymentDate == nil {
				inv.PaymentDate = &now
			}
			inv.Status = StatusPaid
		case StatusPending:
			inv.Status = StatusPending
			inv.PaymentDate = nil
		default:
			// overdue is derived at read time and never stored
			return nil, fmt.Errorf("%w: status %q cannot be set", ErrInvalidEdit, *edit.Status)
		}
	}

	if edit.PaymentDate != nil {
		if inv.Status != StatusPaid {
			return nil, fmt.Errorf("%w: payment date on an unpaid invoice", ErrInvalidEdit)
		}
		paid := *edit.PaymentDate
		inv.PaymentDate = &paid
	}

	if previousCategory == Uncategorized && inv.Category != Uncategorized {
		correction := &CorrectionLog{
			ID:               s.idGenerator.Generate(),
			WorkspaceID:      workspaceID,
			UserID:           userID,
			SourceInvoiceID:  inv.ID,
			TextFragment:     lineItemText(inv.LineItems),
			VendorName:       inv.VendorName,
			AssignedCategory: inv.Category,
			CreatedAt:        now,
		}
		if err := s.db.RecordCorrection(inv, correction); err != nil {
			return nil, fmt.Errorf("updating invoice: %w", err)
		}
	} else if err := s.db.UpdateInvoice(inv); err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}

	return withDisplayStatus(inv, now), nil
}

// ListCorrections returns the workspace's correction log
func (s *Service) ListCorrections(workspaceID string) ([]*CorrectionLog, error) {
	corrections, err := s.db.ListCorrections(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	return corrections, nil
}

// lineItemText joins the known line item descriptions in lower case
func lineItemText(items []LineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Description != "" && item.Description != NotAvailable {
			parts = append(parts, item.Description)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
