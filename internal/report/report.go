// Package report renders per-month views of the ledger: CSV exports and
// per-category spending summaries used by the chart and overview screens.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"tally/internal/core"
)

var csvHeader = []string{"Date", "Category", "Description", "Amount"}

// CSV serializes expenses in row order. An empty slice still yields the
// header line so the downloaded file opens cleanly in a spreadsheet.
func CSV(expenses []core.Expense) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		row := []string{
			e.Date.Format("2006-01-02"),
			e.Category,
			e.Description,
			e.Amount.Decimal(),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename names the export after the month, e.g. "expenses_March 2024.csv".
func Filename(month core.MonthKey) string {
	return fmt.Sprintf("expenses_%s.csv", month.Label())
}

// CategoryShare is one slice of the monthly total.
type CategoryShare struct {
	Category string
	Amount   core.Money
	Percent  float64
}

// Summary aggregates one month's expenses by category.
type Summary struct {
	Total  core.Money
	Shares []CategoryShare
}

// Summarize groups expenses by category and computes each category's share
// of the total. Categories with nothing spent are omitted. Shares are sorted
// by amount descending, ties broken by category name for stable output.
func Summarize(expenses []core.Expense) Summary {
	totals := make(map[string]int64)
	var grand int64
	for _, e := range expenses {
		totals[e.Category] += e.Amount.Cents
		grand += e.Amount.Cents
	}

	s := Summary{Total: core.Money{Cents: grand}}
	for category, cents := range totals {
		if cents == 0 {
			continue
		}
		share := CategoryShare{Category: category, Amount: core.Money{Cents: cents}}
		if grand > 0 {
			share.Percent = float64(cents) / float64(grand) * 100
		}
		s.Shares = append(s.Shares, share)
	}
	sort.Slice(s.Shares, func(i, j int) bool {
		if s.Shares[i].Amount.Cents != s.Shares[j].Amount.Cents {
			return s.Shares[i].Amount.Cents > s.Shares[j].Amount.Cents
		}
		return s.Shares[i].Category < s.Shares[j].Category
	})
	return s
}
