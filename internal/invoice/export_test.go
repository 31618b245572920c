package invoice

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("ExportXLSX", func() {
	var (
		db      *mockDB
		service *Service
		filter  AnalyticsFilter
		rows    [][]string
		err     error
	)

	BeforeEach(func() {
		db = newMockDB()
		number := "INV-9"
		tax := 4.5
		db.invoices["a"] = &Invoice{
			ID:               "a",
			WorkspaceID:      "ws-1",
			InvoiceNumber:    &number,
			VendorName:       "Acme",
			CustomerName:     "Initech",
			InvoiceDate:      day(2024, 1, 10),
			InvoiceTotal:     54.5,
			TotalTax:         &tax,
			Currency:         "USD",
			Category:         "Software",
			Status:           StatusPaid,
			OriginalFileName: "acme.pdf",
		}
		db.invoices["b"] = &Invoice{
			ID:          "b",
			WorkspaceID: "ws-1",
			VendorName:  "Globex",
			InvoiceDate: day(2024, 3, 1),
			Category:    "Travel",
			Status:      StatusPending,
		}
		service = NewServiceWithDeps(db, newMockExtractor(nil), newMockArchive(), KeywordCategorizer{}, DefaultConfig(),
			&mockIDGenerator{prefix: "id"}, &mockTimeSource{now: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)})
		filter = AnalyticsFilter{}
	})

	JustBeforeEach(func() {
		var data []byte
		data, err = service.ExportXLSX("ws-1", filter)
		Expect(err).NotTo(HaveOccurred())

		f, openErr := excelize.OpenReader(bytes.NewReader(data))
		Expect(openErr).NotTo(HaveOccurred())
		defer f.Close()
		rows, err = f.GetRows(exportSheet)
	})

	It("should write a header row and one row per invoice", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal(exportHeaders))
	})

	It("should write the invoice fields", func() {
		var acme []string
		for _, row := range rows[1:] {
			if row[2] == "Acme" {
				acme = row
			}
		}
		Expect(acme).NotTo(BeNil())
		Expect(acme[0]).To(Equal("2024-01-10"))
		Expect(acme[1]).To(Equal("INV-9"))
		Expect(acme[4]).To(Equal("Software"))
		Expect(acme[5]).To(Equal("paid"))
		Expect(acme[9]).To(Equal("54.5"))
		Expect(acme[10]).To(Equal("4.5"))
		Expect(acme[11]).To(Equal("acme.pdf"))
	})

	When("filtering by category", func() {
		BeforeEach(func() {
			filter = AnalyticsFilter{Category: "Travel"}
		})

		It("should only export matching invoices", func() {
			Expect(rows).To(HaveLen(2))
			Expect(rows[1][2]).To(Equal("Globex"))
		})
	})
})
