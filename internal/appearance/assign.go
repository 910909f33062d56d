// Package appearance assigns display colors and names to clusters while
// preserving the ones a user has customized.
package appearance

import (
	"strconv"

	"vaine/pkg/domain"
)

// ColorScale maps a cluster id to a color.
type ColorScale func(domain.ClusterID) string

// Book holds per-cluster colors and names. Entries for clusters that are no
// longer part of the current cut are kept so that switching back to an
// earlier cluster count finds the same colors and names.
type Book struct {
	colors map[domain.ClusterID]domain.AppearanceEntry
	names  map[domain.ClusterID]domain.AppearanceEntry
}

// NewBook returns an empty book.
func NewBook() Book {
	return Book{}
}

// Assign creates default entries for unseen ids and refreshes default entries
// from scale. Custom entries are left untouched. Names default to the decimal
// cluster id.
func Assign(book Book, ids []domain.ClusterID, scale ColorScale) Book {
	next := book.clone()
	for _, id := range ids {
		if e, ok := next.colors[id]; !ok || e.Status == domain.StatusDefault {
			next.colors[id] = domain.AppearanceEntry{Value: scale(id), Status: domain.StatusDefault}
		}
		if e, ok := next.names[id]; !ok || e.Status == domain.StatusDefault {
			next.names[id] = domain.AppearanceEntry{Value: defaultName(id), Status: domain.StatusDefault}
		}
	}
	return next
}

// SetColor records a user-chosen color. An empty color is ignored.
func (b Book) SetColor(id domain.ClusterID, color string) Book {
	if color == "" {
		return b
	}
	next := b.clone()
	next.colors[id] = domain.AppearanceEntry{Value: color, Status: domain.StatusCustom}
	return next
}

// SetName records a user-chosen name. An empty name is ignored.
func (b Book) SetName(id domain.ClusterID, name string) Book {
	if name == "" {
		return b
	}
	next := b.clone()
	next.names[id] = domain.AppearanceEntry{Value: name, Status: domain.StatusCustom}
	return next
}

// Color returns the cluster's color entry.
func (b Book) Color(id domain.ClusterID) (domain.AppearanceEntry, bool) {
	e, ok := b.colors[id]
	return e, ok
}

// Name returns the cluster's name entry.
func (b Book) Name(id domain.ClusterID) (domain.AppearanceEntry, bool) {
	e, ok := b.names[id]
	return e, ok
}

// ColorOf returns the cluster color, or "" when none was assigned.
func (b Book) ColorOf(id domain.ClusterID) string {
	return b.colors[id].Value
}

// NameOf returns the cluster name, falling back to the id itself.
func (b Book) NameOf(id domain.ClusterID) string {
	if e, ok := b.names[id]; ok {
		return e.Value
	}
	return defaultName(id)
}

// Colors returns a copy of every color entry, including stale ids.
func (b Book) Colors() map[domain.ClusterID]domain.AppearanceEntry {
	return cloneEntries(b.colors)
}

// Names returns a copy of every name entry, including stale ids.
func (b Book) Names() map[domain.ClusterID]domain.AppearanceEntry {
	return cloneEntries(b.names)
}

func (b Book) clone() Book {
	return Book{colors: cloneEntries(b.colors), names: cloneEntries(b.names)}
}

func cloneEntries(in map[domain.ClusterID]domain.AppearanceEntry) map[domain.ClusterID]domain.AppearanceEntry {
	out := make(map[domain.ClusterID]domain.AppearanceEntry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func defaultName(id domain.ClusterID) string {
	return strconv.Itoa(int(id))
}
