package invoice

import (
	"fmt"
	"strconv"
)

// DuplicateFinder looks up existing invoices by natural key within a
// workspace. Both methods return nil, nil when nothing matches.
type DuplicateFinder interface {
	FindByInvoiceNumber(workspaceID, number string) (*Invoice, error)
	FindByFingerprint(workspaceID, fingerprint string) (*Invoice, error)
}

// DuplicateMatch describes the existing record a candidate collides with
type DuplicateMatch struct {
	ExistingID    string
	InvoiceNumber string
	Fingerprint   string
}

// DuplicateDetector checks candidates against existing invoices. The check
// is not atomic with the later insert; the store's unique indexes catch the
// race.
type DuplicateDetector struct {
	finder DuplicateFinder
}

// NewDuplicateDetector creates a detector querying finder
func NewDuplicateDetector(finder DuplicateFinder) *DuplicateDetector {
	return &DuplicateDetector{finder: finder}
}

// Fingerprint builds the vendor-date-total fallback key. It is only
// available when vendor, date and total were all actually extracted.
func Fingerprint(n *Normalized) (string, bool) {
	for _, field := range []string{"vendorName", "invoiceDate", "invoiceTotal"} {
		if n.WasDefaulted(field) {
			return "", false
		}
	}
	inv := n.Invoice
	return fmt.Sprintf("%s-%s-%s",
		inv.VendorName,
		inv.InvoiceDate.Format("2006-01-02"),
		strconv.FormatFloat(inv.InvoiceTotal, 'f', -1, 64),
	), true
}

// Check looks for an existing invoice matching the candidate. Candidates
// without an invoice number get their fingerprint recorded on the invoice.
// When neither key is available the check is skipped and nil is returned.
func (d *DuplicateDetector) Check(n *Normalized) (*DuplicateMatch, error) {
	inv := n.Invoice

	if inv.InvoiceNumber != nil {
		existing, err := d.finder.FindByInvoiceNumber(inv.WorkspaceID, *inv.InvoiceNumber)
		if err != nil {
			return nil, fmt.Errorf("looking up invoice number: %w", err)
		}
		if existing == nil {
			return nil, nil
		}
		return &DuplicateMatch{ExistingID: existing.ID, InvoiceNumber: *inv.InvoiceNumber}, nil
	}

	fp, ok := Fingerprint(n)
	if !ok {
		return nil, nil
	}
	inv.Fingerprint = &fp

	existing, err := d.finder.FindByFingerprint(inv.WorkspaceID, fp)
	if err != nil {
		return nil, fmt.Errorf("looking up fingerprint: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	return &DuplicateMatch{ExistingID: existing.ID, Fingerprint: fp}, nil
}
