package invoice

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle label of an invoice
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

const (
	// Uncategorized is assigned when no workspace category applies
	Uncategorized = "Uncategorized"
	// NotAvailable is the placeholder for unknown vendor and customer names
	NotAvailable = "N/A"
)

// LineItem is one row of an invoice, in document order
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	Amount      float64  `json:"amount"`
}

// Invoice is the canonical invoice record produced by ingestion
type Invoice struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	UploadedBy  string `json:"uploadedBy"`

	// InvoiceNumber is the vendor-issued invoice number, when one was found
	InvoiceNumber *string `json:"invoiceId"`
	// Fingerprint is vendor-date-total, only set when InvoiceNumber is nil
	Fingerprint *string `json:"fingerprint"`

	VendorName   string     `json:"vendorName"`
	CustomerName string     `json:"customerName"`
	InvoiceDate  time.Time  `json:"invoiceDate"`
	DueDate      *time.Time `json:"dueDate"`

	InvoiceTotal  float64  `json:"invoiceTotal"`
	SubTotal      *float64 `json:"subTotal"`
	TotalTax      *float64 `json:"totalTax"`
	TotalDiscount *float64 `json:"totalDiscount"`
	AmountPaid    *float64 `json:"amountPaid"`
	Currency      string   `json:"currency"`

	LineItems []LineItem `json:"lineItems"`
	Category  string     `json:"category"`
	Status    Status     `json:"status"`

	// FileName is the archive reference of the original document
	FileName         string `json:"fileName"`
	OriginalFileName string `json:"originalFileName"`
	ContentType      string `json:"contentType"`

	UploadedAt  time.Time  `json:"uploadedAt"`
	PaymentDate *time.Time `json:"paymentDate"`
}

// CorrectionLog records a user moving an invoice out of Uncategorized, with
// the text the categorizer missed
type CorrectionLog struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspaceId"`
	UserID           string    `json:"userId"`
	SourceInvoiceID  string    `json:"sourceInvoiceId"`
	TextFragment     string    `json:"textFragment"`
	VendorName       string    `json:"vendorName"`
	AssignedCategory string    `json:"assignedCategory"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Category is one entry of a workspace's taxonomy
type Category struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Workspace holds the per-tenant category configuration
type Workspace struct {
	ID         string     `json:"id"`
	Categories []Category `json:"categories"`
}

// HasCategory reports whether name is one of the workspace's categories
func (w *Workspace) HasCategory(name string) bool {
	for _, c := range w.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CategoryNames returns the category names in configured order
func (w *Workspace) CategoryNames() []string {
	names := make([]string, 0, len(w.Categories))
	for _, c := range w.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Validate checks that category names are present and unique
func (w *Workspace) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("workspace id is required")
	}
	seen := make(map[string]struct{}, len(w.Categories))
	for i, c := range w.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("category %d has no name", i)
		}
		if c.Name == Uncategorized {
			return fmt.Errorf("category name %q is reserved", Uncategorized)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("duplicate category name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// dateOnly truncates t to midnight UTC of its calendar date
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
