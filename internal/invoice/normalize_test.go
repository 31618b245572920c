package invoice

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoiceflow/internal/extraction"
)

var _ = Describe("Normalize", func() {
	var (
		fields map[string]any
		cfg    Config
		now    time.Time
		n      *Normalized
	)

	BeforeEach(func() {
		fields = map[string]any{}
		cfg = DefaultConfig()
		now = time.Date(2024, 2, 20, 15, 30, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		n = Normalize(&extraction.RawExtraction{Fields: fields}, cfg, now)
	})

	When("every field is present", func() {
		BeforeEach(func() {
			fields = map[string]any{
				"invoiceId":     json.Number("40017"),
				"vendorName":    "  Acme Hosting ",
				"customerName":  "Initech",
				"invoiceDate":   "2024-01-10",
				"dueDate":       "2024-02-09",
				"invoiceTotal":  json.Number("1234.5"),
				"subTotal":      "1,100.00",
				"totalTax":      json.Number("134.5"),
				"totalDiscount": nil,
				"currencyCode":  "eur",
				"lineItems": []any{
					map[string]any{"description": "Hosting", "quantity": json.Number("2"), "unitPrice": "550", "amount": json.Number("1100")},
				},
			}
		})

		It("should not default anything", func() {
			Expect(n.Defaulted).To(BeEmpty())
		})

		It("should coerce the identity fields", func() {
			Expect(*n.Invoice.InvoiceNumber).To(Equal("40017"))
			Expect(n.Invoice.VendorName).To(Equal("Acme Hosting"))
			Expect(n.Invoice.CustomerName).To(Equal("Initech"))
		})

		It("should parse the dates", func() {
			Expect(n.Invoice.InvoiceDate).To(Equal(day(2024, 1, 10)))
			Expect(*n.Invoice.DueDate).To(Equal(day(2024, 2, 9)))
		})

		It("should parse the amounts", func() {
			Expect(n.Invoice.InvoiceTotal).To(Equal(1234.5))
			Expect(*n.Invoice.SubTotal).To(Equal(1100.0))
			Expect(*n.Invoice.TotalTax).To(Equal(134.5))
			Expect(n.Invoice.TotalDiscount).To(BeNil())
		})

		It("should upper-case the currency code", func() {
			Expect(n.Invoice.Currency).To(Equal("EUR"))
		})

		It("should normalize the line items", func() {
			Expect(n.Invoice.LineItems).To(HaveLen(1))
			item := n.Invoice.LineItems[0]
			Expect(item.Description).To(Equal("Hosting"))
			Expect(*item.Quantity).To(Equal(2.0))
			Expect(*item.UnitPrice).To(Equal(550.0))
			Expect(item.Amount).To(Equal(1100.0))
		})
	})

	When("the extraction is empty", func() {
		It("should apply every default", func() {
			Expect(n.Invoice.InvoiceNumber).To(BeNil())
			Expect(n.Invoice.VendorName).To(Equal(NotAvailable))
			Expect(n.Invoice.CustomerName).To(Equal(NotAvailable))
			Expect(n.Invoice.InvoiceDate).To(Equal(day(2024, 2, 20)))
			Expect(*n.Invoice.DueDate).To(Equal(day(2024, 3, 21)))
			Expect(n.Invoice.InvoiceTotal).To(BeZero())
			Expect(n.Invoice.Currency).To(Equal("USD"))
			Expect(n.Invoice.LineItems).NotTo(BeNil())
			Expect(n.Invoice.LineItems).To(BeEmpty())
		})

		It("should report the defaulted fields", func() {
			Expect(n.Defaulted).To(ConsistOf(
				"vendorName", "customerName", "invoiceDate", "dueDate", "invoiceTotal", "currency",
			))
		})
	})

	When("due days are disabled", func() {
		BeforeEach(func() {
			cfg.DueDays = 0
			fields["invoiceDate"] = "2024-01-10"
		})

		It("should leave the due date empty", func() {
			Expect(n.Invoice.DueDate).To(BeNil())
			Expect(n.WasDefaulted("dueDate")).To(BeFalse())
		})
	})

	When("values are placeholders", func() {
		BeforeEach(func() {
			fields = map[string]any{
				"invoiceId":    "null",
				"vendorName":   "N/A",
				"customerName": "",
				"invoiceTotal": "N/A",
				"invoiceDate":  "not a date",
			}
		})

		It("should treat them as absent", func() {
			Expect(n.Invoice.InvoiceNumber).To(BeNil())
			Expect(n.WasDefaulted("vendorName")).To(BeTrue())
			Expect(n.WasDefaulted("customerName")).To(BeTrue())
			Expect(n.WasDefaulted("invoiceTotal")).To(BeTrue())
			Expect(n.WasDefaulted("invoiceDate")).To(BeTrue())
		})
	})

	DescribeTable("amounts",
		func(raw any, expected float64, ok bool) {
			got, gotOK := amountValue(raw)
			Expect(gotOK).To(Equal(ok))
			if ok {
				Expect(got).To(BeNumerically("~", expected, 1e-9))
			}
		},
		Entry("json number", json.Number("42.10"), 42.10, true),
		Entry("float", 7.5, 7.5, true),
		Entry("int", 3, 3.0, true),
		Entry("string with symbol and separators", "$1,234.56", 1234.56, true),
		Entry("string with trailing code", "99.90 EUR", 99.90, true),
		Entry("rupee abbreviation with a space", "Rs. 500", 500.0, true),
		Entry("rupee abbreviation without a space", "Rs.500", 500.0, true),
		Entry("rupee sign with separators", "₹1,200.00", 1200.0, true),
		Entry("leading code", "INR 1,200.00", 1200.0, true),
		Entry("negative string", "-$5.00", 0.0, false),
		Entry("negative after the symbol", "Rs. -5", 0.0, false),
		Entry("money object", map[string]any{"amount": json.Number("12"), "currencyCode": "USD"}, 12.0, true),
		Entry("negative", json.Number("-5"), 0.0, false),
		Entry("prose", "about fifty", 0.0, false),
		Entry("bool", true, 0.0, false),
	)

	DescribeTable("dates",
		func(raw any, expected time.Time, ok bool) {
			got, gotOK := dateValue(raw)
			Expect(gotOK).To(Equal(ok))
			if ok {
				Expect(got).To(Equal(expected))
			}
		},
		Entry("ISO", "2024-03-05", day(2024, 3, 5), true),
		Entry("RFC3339 keeps the calendar date", "2024-03-05T23:10:00-05:00", day(2024, 3, 5), true),
		Entry("US", "03/05/2024", day(2024, 3, 5), true),
		Entry("long form", "March 5, 2024", day(2024, 3, 5), true),
		Entry("day month year", "5 Mar 2024", day(2024, 3, 5), true),
		Entry("implausible year", "0024-03-05", time.Time{}, false),
		Entry("garbage", "yesterday", time.Time{}, false),
		Entry("number", json.Number("20240305"), time.Time{}, false),
	)

	Describe("currency", func() {
		When("only a symbol is present", func() {
			BeforeEach(func() {
				fields["currencySymbol"] = "₹"
			})

			It("should map the symbol to its code", func() {
				Expect(n.Invoice.Currency).To(Equal("INR"))
			})
		})

		When("the total is a money object", func() {
			BeforeEach(func() {
				fields["invoiceTotal"] = map[string]any{"amount": json.Number("80"), "currencyCode": "GBP"}
			})

			It("should take the total and code from it", func() {
				Expect(n.Invoice.InvoiceTotal).To(Equal(80.0))
				Expect(n.Invoice.Currency).To(Equal("GBP"))
			})
		})

		When("the currency is unrecognizable", func() {
			BeforeEach(func() {
				fields["currency"] = "dollars"
				cfg.DefaultCurrency = "cad"
			})

			It("should use the configured default", func() {
				Expect(n.Invoice.Currency).To(Equal("CAD"))
				Expect(n.WasDefaulted("currency")).To(BeTrue())
			})
		})
	})

	When("only the amount due is present", func() {
		BeforeEach(func() {
			fields["amountDue"] = json.Number("75")
		})

		It("should use it as the total", func() {
			Expect(n.Invoice.InvoiceTotal).To(Equal(75.0))
			Expect(n.WasDefaulted("invoiceTotal")).To(BeFalse())
			Expect(*n.Payment.AmountDue).To(Equal(75.0))
		})
	})

	When("keys use other casing", func() {
		BeforeEach(func() {
			fields = map[string]any{
				"Vendor_Name":   "Globex",
				"invoice_total": json.Number("10"),
				"INVOICE-DATE":  "2024-01-02",
			}
		})

		It("should still find them", func() {
			Expect(n.Invoice.VendorName).To(Equal("Globex"))
			Expect(n.Invoice.InvoiceTotal).To(Equal(10.0))
			Expect(n.Invoice.InvoiceDate).To(Equal(day(2024, 1, 2)))
		})
	})

	Describe("line items", func() {
		BeforeEach(func() {
			fields["lineItems"] = []any{
				map[string]any{"description": "Phone X 128GB Warranty: 1 year IMEI/Serial No: 1234", "amount": "499"},
				map[string]any{"quantity": json.Number("1")},
				"Shipping",
				json.Number("3"),
			}
		})

		It("should keep valid entries in document order", func() {
			Expect(n.Invoice.LineItems).To(HaveLen(3))
			Expect(n.Invoice.LineItems[0].Description).To(Equal("Phone X 128GB"))
			Expect(n.Invoice.LineItems[0].Amount).To(Equal(499.0))
			Expect(n.Invoice.LineItems[1].Description).To(Equal(NotAvailable))
			Expect(n.Invoice.LineItems[1].Amount).To(BeZero())
			Expect(n.Invoice.LineItems[2].Description).To(Equal("Shipping"))
		})
	})

	DescribeTable("cleanDescription",
		func(raw, expected string) {
			Expect(cleanDescription(raw)).To(Equal(expected))
		},
		Entry("stop word in another case", "Cable WARRANTY: none", "Cable"),
		Entry("dotted capital I before the stop word", "\u0130stanbul rug Warranty: 1 year", "\u0130stanbul rug"),
		Entry("Kelvin sign before the stop word", "Kettle 373\u212a HSN/SAC: 8516", "Kettle 373\u212a"),
		Entry("only noise", "FSN: ABC123", NotAvailable),
	)

	Describe("payment evidence", func() {
		When("the document is marked paid", func() {
			BeforeEach(func() {
				fields["isPaid"] = "Yes"
				fields["paymentMethod"] = "Visa ending 4242"
				fields["paymentDate"] = "2024-01-12"
			})

			It("should collect the evidence", func() {
				Expect(n.Payment.Marked).To(BeTrue())
				Expect(n.Payment.Method).To(Equal("Visa ending 4242"))
				Expect(*n.Payment.Date).To(Equal(day(2024, 1, 12)))
			})
		})

		When("the document is a receipt", func() {
			BeforeEach(func() {
				fields["documentType"] = "Receipt"
			})

			It("should count as marked paid", func() {
				Expect(n.Payment.Marked).To(BeTrue())
			})
		})

		When("nothing says it was paid", func() {
			BeforeEach(func() {
				fields["isPaid"] = false
			})

			It("should not be marked", func() {
				Expect(n.Payment.Marked).To(BeFalse())
				Expect(n.Payment.Method).To(BeEmpty())
				Expect(n.Payment.Date).To(BeNil())
			})
		})
	})

	It("should carry the suggested category", func() {
		fields["category"] = "Travel"
		n = Normalize(&extraction.RawExtraction{Fields: fields}, cfg, now)
		Expect(n.SuggestedCategory).To(Equal("Travel"))
	})
})
