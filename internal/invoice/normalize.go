package invoice

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/invoiceflow/internal/extraction"
)

// PaymentEvidence collects the payment signals found in an extraction. It
// feeds the status resolver and is not persisted.
type PaymentEvidence struct {
	// Marked is set when the document explicitly says it was paid
	Marked    bool
	Method    string
	Date      *time.Time
	AmountDue *float64
}

// Normalized is the result of normalizing one extraction
type Normalized struct {
	Invoice *Invoice
	// Defaulted lists the fields that were missing or malformed and received
	// a default value
	Defaulted []string
	Payment   PaymentEvidence
	// SuggestedCategory is the category the extraction backend picked, if any
	SuggestedCategory string
}

// WasDefaulted reports whether field received a default value
func (n *Normalized) WasDefaulted(field string) bool {
	for _, f := range n.Defaulted {
		if f == field {
			return true
		}
	}
	return false
}

// rawFields gives case and separator insensitive access to extraction keys,
// so invoiceTotal, invoice_total and InvoiceTotal are the same field
type rawFields map[string]any

func newRawFields(m map[string]any) rawFields {
	out := make(rawFields, len(m))
	for k, v := range m {
		out[fieldKey(k)] = v
	}
	return out
}

func fieldKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	return strings.ReplaceAll(k, " ", "")
}

// get returns the first non-null value among the given keys
func (f rawFields) get(keys ...string) any {
	for _, k := range keys {
		if v, ok := f[fieldKey(k)]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Normalize coerces a raw extraction into a typed invoice. It never fails:
// malformed values become nil or a documented default, and every default
// applied to a field the invoice needs is listed in Defaulted.
func Normalize(raw *extraction.RawExtraction, cfg Config, now time.Time) *Normalized {
	f := newRawFields(raw.Fields)
	n := &Normalized{Invoice: &Invoice{}}
	inv := n.Invoice

	if s, ok := stringValue(f.get("invoiceId", "invoiceNumber", "invoiceNo")); ok {
		inv.InvoiceNumber = &s
	}

	inv.VendorName = n.nameOr(f.get("vendorName", "vendor", "merchantName", "sellerName"), "vendorName")
	inv.CustomerName = n.nameOr(f.get("customerName", "customer", "billTo", "buyerName"), "customerName")

	if d, ok := dateValue(f.get("invoiceDate", "date", "transactionDate")); ok {
		inv.InvoiceDate = d
	} else {
		inv.InvoiceDate = dateOnly(now)
		n.defaulted("invoiceDate")
	}

	if d, ok := dateValue(f.get("dueDate", "paymentDueDate")); ok {
		inv.DueDate = &d
	} else if cfg.DueDays > 0 {
		due := inv.InvoiceDate.AddDate(0, 0, cfg.DueDays)
		inv.DueDate = &due
		n.defaulted("dueDate")
	}

	totalRaw := f.get("invoiceTotal", "total", "grandTotal")
	if total, ok := amountValue(totalRaw); ok {
		inv.InvoiceTotal = total
	} else if due, ok := amountValue(f.get("amountDue")); ok {
		inv.InvoiceTotal = due
	} else {
		inv.InvoiceTotal = 0
		n.defaulted("invoiceTotal")
	}

	inv.SubTotal = optionalAmount(f.get("subTotal", "subtotal"))
	inv.TotalTax = optionalAmount(f.get("totalTax", "tax"))
	inv.TotalDiscount = optionalAmount(f.get("totalDiscount", "discount"))
	inv.AmountPaid = optionalAmount(f.get("amountPaid", "paidAmount"))

	inv.Currency = resolveCurrency(f, totalRaw)
	if inv.Currency == "" {
		inv.Currency = strings.ToUpper(cfg.DefaultCurrency)
		n.defaulted("currency")
	}

	inv.LineItems = lineItems(f.get("lineItems", "items"))

	n.Payment = PaymentEvidence{
		Marked:    paidMarker(f),
		AmountDue: optionalAmount(f.get("amountDue", "balanceDue")),
	}
	if s, ok := stringValue(f.get("paymentMethod", "paidWith")); ok {
		n.Payment.Method = s
	}
	if d, ok := dateValue(f.get("paymentDate", "paidDate")); ok {
		n.Payment.Date = &d
	}

	if s, ok := stringValue(f.get("category")); ok {
		n.SuggestedCategory = s
	}

	return n
}

func (n *Normalized) defaulted(field string) {
	n.Defaulted = append(n.Defaulted, field)
}

func (n *Normalized) nameOr(v any, field string) string {
	if s, ok := stringValue(v); ok {
		return s
	}
	n.defaulted(field)
	return NotAvailable
}

// stringValue accepts trimmed, non-empty strings. Numbers are accepted too
// since invoice numbers often come back as JSON numbers. Placeholder words
// models use for "nothing" count as absent.
func stringValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		return "", false
	}
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "na", "-", "unknown":
		return "", false
	}
	return s, true
}

// amountPattern is the first number in a string amount, with thousands
// separators and an optional fraction
var amountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// amountValue accepts finite, non-negative numbers. Strings may carry
// thousands separators and a currency symbol or code around the number.
// Money objects of the {amount, currencyCode} shape are unwrapped.
func amountValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		loc := amountPattern.FindStringIndex(t)
		if loc == nil {
			return 0, false
		}
		// a minus anywhere before the number, as in "-$5" or "Rs. -5"
		if strings.Contains(t[:loc[0]], "-") {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(strings.ReplaceAll(t[loc[0]:loc[1]], ",", ""), 64); err != nil {
			return 0, false
		}
	case map[string]any:
		return amountValue(newRawFields(t).get("amount", "value"))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func optionalAmount(v any) *float64 {
	if f, ok := amountValue(v); ok {
		return &f
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// dateValue parses a calendar date. Years outside a plausible range are
// treated as nonsense from the backend.
func dateValue(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 1900 || t.Year() > 2200 {
			return time.Time{}, false
		}
		return dateOnly(t), true
	}
	return time.Time{}, false
}

var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"₹":   "INR",
	"RS":  "INR",
	"RS.": "INR",
	"¥":   "JPY",
	"₩":   "KRW",
	"₽":   "RUB",
	"₺":   "TRY",
	"₦":   "NGN",
	"₱":   "PHP",
	"฿":   "THB",
	"₫":   "VND",
	"R$":  "BRL",
	"A$":  "AUD",
	"C$":  "CAD",
	"S$":  "SGD",
	"ZŁ":  "PLN",
}

// currencyCode accepts three-letter codes or known symbols
func currencyCode(v any) string {
	s, ok := stringValue(v)
	if !ok {
		return ""
	}
	s = strings.ToUpper(s)
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	if len(s) == 3 && strings.IndexFunc(s, func(r rune) bool { return r < 'A' || r > 'Z' }) == -1 {
		return s
	}
	return ""
}

// resolveCurrency prefers an explicit code over a symbol, looking at the
// top-level fields first and then at a money object on the total
func resolveCurrency(f rawFields, total any) string {
	candidates := []any{
		f.get("currencyCode"),
		f.get("currency"),
		f.get("currencySymbol"),
	}
	if m, ok := total.(map[string]any); ok {
		tf := newRawFields(m)
		candidates = append(candidates, tf.get("currencyCode"), tf.get("currencySymbol"))
	}
	for _, c := range candidates {
		if code := currencyCode(c); code != "" {
			return code
		}
	}
	return ""
}

// lineItems normalizes each item independently, keeping document order
func lineItems(v any) []LineItem {
	list, ok := v.([]any)
	if !ok {
		return []LineItem{}
	}

	items := make([]LineItem, 0, len(list))
	for _, entry := range list {
		switch t := entry.(type) {
		case map[string]any:
			f := newRawFields(t)
			item := LineItem{
				Description: cleanDescription(f.get("description", "name", "item")),
				Quantity:    optionalAmount(f.get("quantity", "qty")),
				UnitPrice:   optionalAmount(f.get("unitPrice", "price", "rate")),
			}
			if amount, ok := amountValue(f.get("amount", "total", "lineTotal")); ok {
				item.Amount = amount
			}
			items = append(items, item)
		case string:
			items = append(items, LineItem{Description: cleanDescription(t)})
		}
	}
	return items
}

// descriptionStopWords mark where product descriptions turn into
// warranty and serial number noise
var descriptionStopWords = []string{"warranty:", "imei/serial no:", "hsn/sac:", "fsn:"}

func cleanDescription(v any) string {
	desc, ok := stringValue(v)
	if !ok {
		return NotAvailable
	}
	for _, word := range descriptionStopWords {
		if idx := indexFold(desc, word); idx >= 0 {
			desc = desc[:idx]
		}
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return NotAvailable
	}
	return desc
}

// indexFold is a case-insensitive strings.Index for an ASCII word. The
// offset is into s itself, so it is safe to slice s with it.
func indexFold(s, word string) int {
	for i := range s {
		if len(s)-i < len(word) {
			break
		}
		if strings.EqualFold(s[i:i+len(word)], word) {
			return i
		}
	}
	return -1
}

// paidMarker looks for an explicit "this was paid" signal
func paidMarker(f rawFields) bool {
	switch t := f.get("isPaid", "paid").(type) {
	case bool:
		if t {
			return true
		}
	case string:
		if s := strings.ToLower(strings.TrimSpace(t)); s == "true" || s == "yes" || s == "paid" {
			return true
		}
	}
	if s, ok := stringValue(f.get("paymentStatus")); ok && strings.EqualFold(s, "paid") {
		return true
	}
	if s, ok := stringValue(f.get("documentType")); ok && strings.EqualFold(s, "receipt") {
		return true
	}
	return false
}
