package ledger

import (
	"sort"

	"tally/internal/core"
)

// Book wraps a profile's month-keyed ledger. It operates on the profile's
// own map, so every mutation is immediately visible through the profile and
// good to persist. Buckets keep insertion order; display order is the
// consumer's choice.
type Book struct {
	months map[core.MonthKey][]core.Expense
}

// NewBook wraps an existing ledger map. A nil map is not accepted here on
// purpose: the profile owns the map and must allocate it.
func NewBook(months map[core.MonthKey][]core.Expense) *Book {
	return &Book{months: months}
}

// Add files the expense under its own month bucket, creating the bucket on
// first use.
func (b *Book) Add(e core.Expense) {
	b.months[e.Month] = append(b.months[e.Month], e)
}

// Find returns the expense with the given id and its month, searching every
// bucket. The second return is false when no expense matches.
func (b *Book) Find(id string) (core.Expense, bool) {
	for _, bucket := range b.months {
		for _, e := range bucket {
			if e.ID == id {
				return e, true
			}
		}
	}
	return core.Expense{}, false
}

// Remove deletes the expense with the given id, dropping its bucket when it
// empties. Reports whether anything was removed.
func (b *Book) Remove(id string) bool {
	for month, bucket := range b.months {
		for i, e := range bucket {
			if e.ID != id {
				continue
			}
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(b.months, month)
			} else {
				b.months[month] = bucket
			}
			return true
		}
	}
	return false
}

// Update replaces the stored expense with the same id. When the edit moved
// the expense to another month, it leaves its old bucket and appends to the
// new one.
func (b *Book) Update(e core.Expense) bool {
	for month, bucket := range b.months {
		for i, old := range bucket {
			if old.ID != e.ID {
				continue
			}
			if month == e.Month {
				bucket[i] = e
				return true
			}
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(b.months, month)
			} else {
				b.months[month] = bucket
			}
			b.Add(e)
			return true
		}
	}
	return false
}

// DeleteCategory removes every expense in every month whose category equals
// label, dropping emptied buckets. This is the cascade half of category
// deletion: it is destructive and has no undo.
func (b *Book) DeleteCategory(label string) int {
	removed := 0
	for month, bucket := range b.months {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.Category == label {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(b.months, month)
		} else {
			b.months[month] = kept
		}
	}
	return removed
}

// MonthExpenses returns a copy of the bucket for the given month. A month
// with no data yields an empty slice, never an error.
func (b *Book) MonthExpenses(k core.MonthKey) []core.Expense {
	bucket := b.months[k]
	out := make([]core.Expense, len(bucket))
	copy(out, bucket)
	return out
}

// Months lists bucket keys sorted descending, which for YYYY-MM keys is
// newest first.
func (b *Book) Months() []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(b.months))
	for k := range b.months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	return keys
}

// TotalSpent sums all amounts in the snapshot. Integer cents keep the
// reduction exact regardless of order.
func TotalSpent(expenses []core.Expense) core.Money {
	var cents int64
	for _, e := range expenses {
		cents += e.Amount.Cents
	}
	return core.Money{Cents: cents}
}

// TotalForCategory sums the amounts of expenses matching the category.
func TotalForCategory(category string, expenses []core.Expense) core.Money {
	var cents int64
	for _, e := range expenses {
		if e.Category == category {
			cents += e.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}
