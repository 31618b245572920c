package invoice

import (
	"fmt"
	"sort"
	"time"
)

// recentInvoiceCount is how many uploads the dashboard shows
const recentInvoiceCount = 5

// DashboardStats summarizes a workspace
type DashboardStats struct {
	TotalCount      int        `json:"totalCount"`
	TotalAmountPaid float64    `json:"totalAmountPaid"`
	OverdueCount    int        `json:"overdueCount"`
	RecentInvoices  []*Invoice `json:"recentInvoices"`
}

// DashboardStats computes the workspace dashboard
func (s *Service) DashboardStats(workspaceID string) (*DashboardStats, error) {
	invoices, err := s.ListInvoices(workspaceID)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalCount:     len(invoices),
		RecentInvoices: invoices[:min(len(invoices), recentInvoiceCount)],
	}
	for _, inv := range invoices {
		switch inv.Status {
		case StatusPaid:
			stats.TotalAmountPaid += inv.InvoiceTotal
		case StatusOverdue:
			stats.OverdueCount++
		}
	}
	return stats, nil
}

// AnalyticsFilter narrows the invoices analytics are computed over. Zero
// values do not filter. End is inclusive of the whole day.
type AnalyticsFilter struct {
	Start    time.Time
	End      time.Time
	Category string
}

func (f AnalyticsFilter) matches(inv *Invoice) bool {
	if !f.Start.IsZero() && inv.InvoiceDate.Before(dateOnly(f.Start)) {
		return false
	}
	if !f.End.IsZero() && !inv.InvoiceDate.Before(dateOnly(f.End).AddDate(0, 0, 1)) {
		return false
	}
	return f.Category == "" || inv.Category == f.Category
}

// CategorySpend is the total invoiced in one category
type CategorySpend struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MonthSpend is the total invoiced in one calendar month (YYYY-MM)
type MonthSpend struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// Analytics is the spend breakdown of a workspace
type Analytics struct {
	TotalSpent         float64         `json:"totalSpent"`
	TopCategory        string          `json:"topCategory"`
	OverdueCount       int             `json:"overdueCount"`
	SpendingByCategory []CategorySpend `json:"spendingByCategory"`
	SpendingByMonth    []MonthSpend    `json:"spendingByMonth"`
}

// Analytics computes spend by category and month. Total spent only counts
// paid invoices; the breakdowns count every invoice.
func (s *Service) Analytics(workspaceID string, filter AnalyticsFilter) (*Analytics, error) {
	invoices, err := s.ListInvoices(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("computing analytics: %w", err)
	}

	out := &Analytics{
		TopCategory:        NotAvailable,
		SpendingByCategory: []CategorySpend{},
		SpendingByMonth:    []MonthSpend{},
	}
	byCategory := make(map[string]float64)
	byMonth := make(map[string]float64)
	var categoryOrder []string

	for _, inv := range invoices {
		if !filter.matches(inv) {
			continue
		}
		switch inv.Status {
		case StatusPaid:
			out.TotalSpent += inv.InvoiceTotal
		case StatusOverdue:
			out.OverdueCount++
		}

		category := inv.Category
		if category == "" {
			category = Uncategorized
		}
		if _, ok := byCategory[category]; !ok {
			categoryOrder = append(categoryOrder, category)
		}
		byCategory[category] += inv.InvoiceTotal
		byMonth[inv.InvoiceDate.Format("2006-01")] += inv.InvoiceTotal
	}

	var top float64
	for _, name := range categoryOrder {
		value := byCategory[name]
		out.SpendingByCategory = append(out.SpendingByCategory, CategorySpend{Name: name, Value: value})
		if out.TopCategory == NotAvailable || value > top {
			out.TopCategory, top = name, value
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		out.SpendingByMonth = append(out.SpendingByMonth, MonthSpend{Month: m, Total: byMonth[m]})
	}

	return out, nil
}
