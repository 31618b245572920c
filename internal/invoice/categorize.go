package invoice

import (
	"fmt"
	"strings"
)

// Categorizer assigns one of the workspace categories to an invoice. The
// result is always a configured category name or Uncategorized.
type Categorizer interface {
	Categorize(n *Normalized, categories []Category) string
}

// Categorizer strategy names accepted by NewCategorizer
const (
	StrategyKeyword   = "keyword"
	StrategyDelegated = "delegated"
	StrategyChain     = "chain"
)

// NewCategorizer returns the strategy configured for a deployment
func NewCategorizer(strategy string) (Categorizer, error) {
	switch strategy {
	case StrategyKeyword:
		return KeywordCategorizer{}, nil
	case StrategyDelegated:
		return DelegatedCategorizer{}, nil
	case StrategyChain, "":
		return ChainCategorizer{KeywordCategorizer{}, DelegatedCategorizer{}}, nil
	}
	return nil, fmt.Errorf("unknown categorizer %q (valid: keyword, delegated, chain)", strategy)
}

// KeywordCategorizer matches category tags against the vendor name and the
// line item descriptions. Categories are tried in configured order.
type KeywordCategorizer struct{}

func (KeywordCategorizer) Categorize(n *Normalized, categories []Category) string {
	parts := make([]string, 0, len(n.Invoice.LineItems)+1)
	if n.Invoice.VendorName != NotAvailable {
		parts = append(parts, n.Invoice.VendorName)
	}
	for _, item := range n.Invoice.LineItems {
		if item.Description != NotAvailable {
			parts = append(parts, item.Description)
		}
	}
	text := strings.ToLower(strings.Join(parts, " "))
	if text == "" {
		return Uncategorized
	}

	for _, c := range categories {
		for _, tag := range c.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" && strings.Contains(text, tag) {
				return c.Name
			}
		}
	}
	return Uncategorized
}

// DelegatedCategorizer trusts the category the extraction backend chose
// from the closed list it was given, after checking it really is one of the
// workspace's categories (exact, case-sensitive).
type DelegatedCategorizer struct{}

func (DelegatedCategorizer) Categorize(n *Normalized, categories []Category) string {
	for _, c := range categories {
		if n.SuggestedCategory != "" && c.Name == n.SuggestedCategory {
			return c.Name
		}
	}
	return Uncategorized
}

// ChainCategorizer tries each strategy in turn and keeps the first real
// category
type ChainCategorizer []Categorizer

func (c ChainCategorizer) Categorize(n *Normalized, categories []Category) string {
	for _, strategy := range c {
		if name := strategy.Categorize(n, categories); name != Uncategorized {
			return name
		}
	}
	return Uncategorized
}
