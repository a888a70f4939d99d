// Package fruit holds the static fruit knowledge the engine relies on:
// nominal shelf life, canonical names and nutritional benefit tags.
package fruit

import "strings"

// DefaultShelfLifeDays is returned for names that match no table entry.
const DefaultShelfLifeDays = 7

// Entry maps a lower-case name fragment to days until spoilage.
type Entry struct {
	Key  string
	Days int
}

// Table is an insertion-ordered shelf-life table. Lookups return the first
// entry whose key is a substring of the lower-cased name, so overlapping
// keys ("grape" / "grapefruit") resolve by table order, not by length.
type Table struct {
	entries  []Entry
	fallback int
}

// NewTable builds a table from entries in lookup order.
func NewTable(entries []Entry, fallback int) *Table {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Table{entries: cp, fallback: fallback}
}

// DefaultTable returns the built-in shelf-life table.
func DefaultTable() *Table {
	return NewTable(defaultEntries, DefaultShelfLifeDays)
}

// ShelfLifeDays returns the nominal days to spoilage for name.
func (t *Table) ShelfLifeDays(name string) int {
	if name == "" {
		return t.fallback
	}
	lower := strings.ToLower(name)
	for _, e := range t.entries {
		if strings.Contains(lower, e.Key) {
			return e.Days
		}
	}
	return t.fallback
}

// Entries returns a copy of the table in lookup order.
func (t *Table) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

var defaultEntries = []Entry{
	{"apple", 14},
	{"apricot", 5},
	{"avocado", 3},
	{"banana", 5},
	{"blackberry", 2},
	{"blueberry", 5},
	{"cantaloupe", 5},
	{"cherry", 3},
	{"coconut", 14},
	{"cranberry", 14},
	{"date", 30},
	{"dragon fruit", 5},
	{"durian", 5},
	{"fig", 3},
	{"grape", 7},
	{"grapefruit", 14},
	{"guava", 3},
	{"honeydew", 5},
	{"kiwi", 7},
	{"lemon", 14},
	{"lime", 14},
	{"lychee", 3},
	{"mango", 5},
	{"melon", 5},
	{"nectarine", 4},
	{"orange", 14},
	{"papaya", 4},
	{"passion fruit", 7},
	{"peach", 4},
	{"pear", 5},
	{"persimmon", 5},
	{"pineapple", 3},
	{"plum", 4},
	{"pomegranate", 14},
	{"raspberry", 2},
	{"strawberry", 3},
	{"tangerine", 14},
	{"watermelon", 7},
}
