package invoice

import (
	"strings"
	"time"
)

// StatusResolver derives the ingestion-time status of an invoice. Rules are
// evaluated in order and the first match wins: age, payment evidence, known
// prepaid vendors, due date.
type StatusResolver struct {
	PaidAfter      time.Duration
	PrepaidVendors []string
}

// NewStatusResolver builds a resolver from the deployment config
func NewStatusResolver(cfg Config) *StatusResolver {
	return &StatusResolver{
		PaidAfter:      cfg.PaidAfter,
		PrepaidVendors: cfg.PrepaidVendors,
	}
}

// Resolve returns the status for a normalized invoice and, when it is paid,
// the payment date to record
func (r *StatusResolver) Resolve(n *Normalized, now time.Time) (Status, *time.Time) {
	inv := n.Invoice

	// old unresolved invoices are assumed settled
	if r.PaidAfter > 0 && inv.InvoiceDate.Before(now.Add(-r.PaidAfter)) {
		return paid(inv.InvoiceDate)
	}

	if hasPaymentEvidence(n) {
		if n.Payment.Date != nil {
			return paid(*n.Payment.Date)
		}
		return paid(inv.InvoiceDate)
	}

	if r.isPrepaidVendor(inv.VendorName) {
		return paid(inv.InvoiceDate)
	}

	if pastDue(inv.DueDate, now) {
		return StatusOverdue, nil
	}
	return StatusPending, nil
}

func paid(on time.Time) (Status, *time.Time) {
	return StatusPaid, &on
}

func hasPaymentEvidence(n *Normalized) bool {
	inv := n.Invoice
	switch {
	case n.Payment.Marked:
		return true
	case n.Payment.Method != "":
		return true
	case n.Payment.AmountDue != nil && *n.Payment.AmountDue == 0 && inv.InvoiceTotal > 0:
		return true
	case inv.AmountPaid != nil && *inv.AmountPaid > 0 && *inv.AmountPaid >= inv.InvoiceTotal:
		return true
	}
	return false
}

func (r *StatusResolver) isPrepaidVendor(vendor string) bool {
	if vendor == NotAvailable {
		return false
	}
	vendor = strings.ToLower(vendor)
	for _, v := range r.PrepaidVendors {
		if v != "" && strings.Contains(vendor, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// pastDue is the single due-date comparison used both at ingestion and for
// the derived display status: strictly before now
func pastDue(due *time.Time, now time.Time) bool {
	return due != nil && due.Before(now)
}

// DisplayStatus is the status to show for a stored invoice. A pending
// invoice whose due date has passed is reported as overdue; the stored
// record is left untouched.
func DisplayStatus(inv *Invoice, now time.Time) Status {
	if inv.Status == StatusPending && pastDue(inv.DueDate, now) {
		return StatusOverdue
	}
	return inv.Status
}
