// Package ledger implements the monthly expense book and the category
// registry as pure in-memory operations. Persistence is the caller's job:
// the session layer mutates a profile through this package and then writes
// the profile through its repository.
package ledger

import "strings"

// DecorationSuffix is appended to user-created category labels, matching the
// product's original presentation. Registries work equally well with plain
// labels when the suffix is disabled in configuration.
const DecorationSuffix = " 🏷️"

// Registry is an ordered set of category labels. Comparison is exact string
// match, decoration included.
type Registry struct {
	labels   []string
	decorate bool
}

func NewRegistry(labels []string, decorate bool) *Registry {
	return &Registry{labels: append([]string(nil), labels...), decorate: decorate}
}

// Add appends a new category. Blank or duplicate labels are a silent no-op,
// not an error: the UI simply shows the unchanged registry.
func (r *Registry) Add(label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if r.decorate {
		label += DecorationSuffix
	}
	if r.Contains(label) {
		return
	}
	r.labels = append(r.labels, label)
}

// Delete removes the label and reports whether it was present. Removing the
// label from expenses is Book.DeleteCategory's job.
func (r *Registry) Delete(label string) bool {
	for i, l := range r.labels {
		if l == label {
			r.labels = append(r.labels[:i], r.labels[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Contains(label string) bool {
	for _, l := range r.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Labels returns a copy preserving insertion order.
func (r *Registry) Labels() []string {
	return append([]string(nil), r.labels...)
}

func (r *Registry) Len() int {
	return len(r.labels)
}
