// pkg/category/category.go
package category

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical labels shared by several maps
const (
	Unknown  = "Unknown"
	Multiple = "Multiple"
	White    = "White"
)

// Map is a case-insensitive label → canonical label lookup
type Map struct {
	name     string
	entries  map[string]string
	fallback string
}

// Key normalises a raw label for lookup
func Key(label string) string {
	return strings.ToLower(norm.NFKC.String(label))
}

// NewMap builds a map from raw labels. Every canonical value is also added as
// its own label so that remapping canonical output is a no-op.
func NewMap(name string, raw map[string]string, fallback string) *Map {
	m := &Map{
		name:     name,
		entries:  make(map[string]string, len(raw)*2),
		fallback: fallback,
	}
	for label, canonical := range raw {
		m.entries[Key(label)] = canonical
	}
	for _, canonical := range raw {
		m.entries[Key(canonical)] = canonical
	}
	if fallback != "" {
		m.entries[Key(fallback)] = fallback
	}
	return m
}

// Name returns the map name
func (m *Map) Name() string { return m.name }

// Fallback returns the value used for unmapped or missing input
func (m *Map) Fallback() string { return m.fallback }

// Len returns the number of labels
func (m *Map) Len() int { return len(m.entries) }

// Lookup returns the canonical label for a raw label
func (m *Map) Lookup(label string) (string, bool) {
	v, ok := m.entries[Key(label)]
	return v, ok
}

// Resolve returns the canonical label, or the fallback when unmapped
func (m *Map) Resolve(label string) string {
	if v, ok := m.Lookup(label); ok {
		return v
	}
	return m.fallback
}

// Set maps a raw label to a canonical label
func (m *Map) Set(label, canonical string) {
	m.entries[Key(label)] = canonical
}

// Canonical returns the sorted distinct canonical labels
func (m *Map) Canonical() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range m.entries {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (m *Map) Clone() *Map {
	entries := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	return &Map{name: m.name, entries: entries, fallback: m.fallback}
}

// Maps groups the category maps used by one cleaning run
type Maps struct {
	Ethnicity   *Map
	Sex         *Map
	TestResults *Map
}

// Clone returns a deep copy, one per run
func (ms *Maps) Clone() *Maps {
	return &Maps{
		Ethnicity:   ms.Ethnicity.Clone(),
		Sex:         ms.Sex.Clone(),
		TestResults: ms.TestResults.Clone(),
	}
}

// ExtendEthnicity returns a copy of base extended with the labels observed in
// one dataset: anything mentioning "mixed" or "multiple" is Multiple, anything
// mentioning "white" is White (winning over Multiple), and any label still
// unmapped is Unknown. base is not modified.
func ExtendEthnicity(base *Map, observed []string) *Map {
	ext := base.Clone()

	for _, label := range observed {
		key := Key(label)
		if strings.Contains(key, "mixed") || strings.Contains(key, "multiple") {
			ext.Set(label, Multiple)
		}
	}
	for _, label := range observed {
		if strings.Contains(Key(label), "white") {
			ext.Set(label, White)
		}
	}
	for _, label := range observed {
		if _, ok := ext.Lookup(label); !ok {
			ext.Set(label, Unknown)
		}
	}

	return ext
}
