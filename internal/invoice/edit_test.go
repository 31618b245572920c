package invoice

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EditInvoice", func() {
	var (
		db      *mockDB
		service *Service
		now     time.Time
		edit    InvoiceEdit
		edited  *Invoice
		err     error
	)

	strPtr := func(s string) *string { return &s }

	BeforeEach(func() {
		db = newMockDB()
		db.workspaces["ws-1"] = &Workspace{ID: "ws-1", Categories: []Category{{Name: "Software"}, {Name: "Travel"}}}
		number := "INV-100"
		db.invoices["inv-1"] = &Invoice{
			ID:            "inv-1",
			WorkspaceID:   "ws-1",
			InvoiceNumber: &number,
			VendorName:    "Acme",
			CustomerName:  NotAvailable,
			InvoiceDate:   day(2024, 1, 10),
			DueDate:       ptrTime(day(2024, 2, 9)),
			InvoiceTotal:  500,
			Currency:      "USD",
			LineItems: []LineItem{
				{Description: "Annual License"},
				{Description: NotAvailable},
				{Description: "Support Plan"},
			},
			Category: Uncategorized,
			Status:   StatusPending,
		}
		now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(db, newMockExtractor(nil), newMockArchive(), KeywordCategorizer{}, DefaultConfig(),
			&mockIDGenerator{prefix: "log"}, &mockTimeSource{now: now})
		edit = InvoiceEdit{}
	})

	JustBeforeEach(func() {
		edited, err = service.EditInvoice("ws-1", "inv-1", "user-7", edit)
	})

	When("moving an invoice out of Uncategorized", func() {
		BeforeEach(func() {
			edit.Category = strPtr("Software")
		})

		It("should store the new category", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.Category).To(Equal("Software"))
			Expect(db.invoices["inv-1"].Category).To(Equal("Software"))
		})

		It("should record a correction", func() {
			Expect(db.corrections).To(HaveLen(1))
			c := db.corrections[0]
			Expect(c.ID).To(Equal("log-1"))
			Expect(c.WorkspaceID).To(Equal("ws-1"))
			Expect(c.UserID).To(Equal("user-7"))
			Expect(c.SourceInvoiceID).To(Equal("inv-1"))
			Expect(c.VendorName).To(Equal("Acme"))
			Expect(c.TextFragment).To(Equal("annual license support plan"))
			Expect(c.AssignedCategory).To(Equal("Software"))
			Expect(c.CreatedAt).To(Equal(now))
		})

		It("should keep the natural keys", func() {
			stored := db.invoices["inv-1"]
			Expect(stored.ID).To(Equal("inv-1"))
			Expect(stored.WorkspaceID).To(Equal("ws-1"))
			Expect(*stored.InvoiceNumber).To(Equal("INV-100"))
			Expect(stored.VendorName).To(Equal("Acme"))
			Expect(stored.InvoiceTotal).To(Equal(500.0))
		})
	})

	When("moving a categorized invoice to another category", func() {
		BeforeEach(func() {
			db.invoices["inv-1"].Category = "Travel"
			edit.Category = strPtr("Software")
		})

		It("should not record a correction", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.Category).To(Equal("Software"))
			Expect(db.corrections).To(BeEmpty())
		})
	})

	When("the category is not in the workspace", func() {
		BeforeEach(func() {
			edit.Category = strPtr("Groceries")
		})

		It("should reject the edit and change nothing", func() {
			Expect(err).To(MatchError(ErrInvalidEdit))
			Expect(db.invoices["inv-1"].Category).To(Equal(Uncategorized))
			Expect(db.corrections).To(BeEmpty())
		})
	})

	When("marking the invoice paid", func() {
		BeforeEach(func() {
			paid := StatusPaid
			edit.Status = &paid
		})

		It("should set the payment date to now", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.Status).To(Equal(StatusPaid))
			Expect(*edited.PaymentDate).To(Equal(now))
		})
	})

	When("setting the derived overdue status", func() {
		BeforeEach(func() {
			overdue := StatusOverdue
			edit.Status = &overdue
		})

		It("should reject the edit", func() {
			Expect(err).To(MatchError(ErrInvalidEdit))
		})
	})

	When("setting a payment date on an unpaid invoice", func() {
		BeforeEach(func() {
			edit.PaymentDate = ptrTime(day(2024, 1, 12))
		})

		It("should reject the edit", func() {
			Expect(err).To(MatchError(ErrInvalidEdit))
		})
	})

	When("changing the due date and customer", func() {
		BeforeEach(func() {
			edit.DueDate = ptrTime(time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC))
			edit.CustomerName = strPtr("  Initech ")
			edit.Currency = strPtr("eur")
		})

		It("should store the cleaned values", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*edited.DueDate).To(Equal(day(2024, 3, 1)))
			Expect(edited.CustomerName).To(Equal("Initech"))
			Expect(edited.Currency).To(Equal("EUR"))
		})
	})

	When("the due date is before the invoice date", func() {
		BeforeEach(func() {
			edit.DueDate = ptrTime(day(2024, 1, 1))
		})

		It("should reject the edit", func() {
			Expect(err).To(MatchError(ErrInvalidEdit))
		})
	})

	When("the invoice belongs to another workspace", func() {
		BeforeEach(func() {
			db.invoices["inv-1"].WorkspaceID = "ws-2"
		})

		It("should return ErrInvoiceNotFound", func() {
			Expect(err).To(MatchError(ErrInvoiceNotFound))
		})
	})
})
