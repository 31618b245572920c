package invoice

import (
	"strings"
	"time"
)

// Config holds the per-deployment ingestion policy
type Config struct {
	// DefaultCurrency is used when neither a currency code nor a known
	// symbol can be extracted
	DefaultCurrency string
	// DueDays is added to the invoice date when no due date is extracted.
	// Zero leaves the due date empty.
	DueDays int
	// PaidAfter marks invoices older than this as paid at ingestion.
	// Zero disables the age heuristic.
	PaidAfter time.Duration
	// PrepaidVendors are lower-case vendor name fragments of sources that
	// are paid at purchase time (retail and e-commerce)
	PrepaidVendors []string
	// ExtractionTimeout bounds the extraction backend call. Zero means the
	// caller's context alone decides.
	ExtractionTimeout time.Duration
}

// DefaultConfig returns the documented deployment defaults
func DefaultConfig() Config {
	return Config{
		DefaultCurrency:   "USD",
		DueDays:           30,
		PaidAfter:         60 * 24 * time.Hour,
		PrepaidVendors:    []string{"amazon", "flipkart", "walmart", "target", "ebay", "apple store", "google play"},
		ExtractionTimeout: 60 * time.Second,
	}
}

// ParseVendorList splits a comma separated vendor list into lower-case
// fragments, dropping empty entries
func ParseVendorList(s string) []string {
	var vendors []string
	for _, v := range strings.Split(s, ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			vendors = append(vendors, v)
		}
	}
	return vendors
}
