package extraction

import (
	"fmt"
	"strings"
)

// invoicePrompt is shared by every LLM backend
const invoicePrompt = `You are analyzing an invoice, bill or receipt. Read all text in the document and extract the following fields.

Return ONLY a JSON object with these keys:
{
  "isInvoice": true,
  "invoiceId": "vendor-issued invoice number or null",
  "vendorName": "name of the business that issued the document",
  "customerName": "name of the billed customer or null",
  "invoiceDate": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD or null",
  "invoiceTotal": 0.00,
  "subTotal": 0.00,
  "totalTax": 0.00,
  "totalDiscount": 0.00,
  "amountPaid": 0.00,
  "amountDue": 0.00,
  "currencyCode": "ISO 4217 code such as USD, EUR, INR",
  "currencySymbol": "symbol printed next to amounts",
  "paymentDate": "YYYY-MM-DD or null",
  "paymentMethod": "card, cash, UPI, bank transfer or null",
  "isPaid": false,
  "lineItems": [
    {"description": "item text", "quantity": 1, "unitPrice": 0.00, "amount": 0.00}
  ]
}

Rules:
- Amounts must be numbers, not strings, without currency symbols
- Dates must be in YYYY-MM-DD format
- Set "isPaid" to true only when the document shows it has been paid (a receipt, a PAID stamp, a zero balance or a completed payment)
- If you cannot find a field, use null for that field
- If the document is not an invoice, bill or receipt, return {"isInvoice": false}
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// buildPrompt returns the extraction prompt, extended with a closed category
// choice when categories are given.
func buildPrompt(categories []string) string {
	if len(categories) == 0 {
		return invoicePrompt
	}

	quoted := make([]string, 0, len(categories))
	for _, c := range categories {
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}

	var b strings.Builder
	b.WriteString(invoicePrompt)
	b.WriteString("\n\nAlso add a \"category\" key. Its value must be exactly one of: ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(". If none of them fits, use \"Uncategorized\".")
	return b.String()
}
