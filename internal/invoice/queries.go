package invoice

import (
	"fmt"
	"time"
)

// withDisplayStatus returns a copy of inv carrying its derived status
func withDisplayStatus(inv *Invoice, now time.Time) *Invoice {
	out := *inv
	out.Status = DisplayStatus(inv, now)
	return &out
}

// GetInvoice retrieves an invoice with its display status
func (s *Service) GetInvoice(workspaceID, id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return withDisplayStatus(inv, s.timeSource.Now()), nil
}

// ListInvoices returns a workspace's invoices, newest upload first, with
// pending invoices past their due date reported as overdue
func (s *Service) ListInvoices(workspaceID string) ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	now := s.timeSource.Now()
	out := make([]*Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, withDisplayStatus(inv, now))
	}
	return out, nil
}

// GetInvoiceFile retrieves the archived original of an invoice
func (s *Service) GetInvoiceFile(workspaceID, id string) ([]byte, string, error) {
	inv, err := s.db.GetInvoice(workspaceID, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.archive.Get(inv.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}

	contentType := inv.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// MarkPaid records a payment made now
func (s *Service) MarkPaid(workspaceID, id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	now := s.timeSource.Now()
	inv.Status = StatusPaid
	inv.PaymentDate = &now

	if err := s.db.UpdateInvoice(inv); err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}
	return inv, nil
}

// GetWorkspace returns a workspace's category configuration
func (s *Service) GetWorkspace(id string) (*Workspace, error) {
	ws, err := s.db.GetWorkspace(id)
	if err != nil {
		return nil, fmt.Errorf("getting workspace: %w", err)
	}
	return ws, nil
}

// SaveWorkspace stores a workspace's category configuration
func (s *Service) SaveWorkspace(ws *Workspace) error {
	if err := ws.Validate(); err != nil {
		return err
	}
	if err := s.db.SaveWorkspace(ws); err != nil {
		return fmt.Errorf("saving workspace: %w", err)
	}
	return nil
}
