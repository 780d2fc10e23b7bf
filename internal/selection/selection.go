// Package selection tracks which services a customer has picked and the
// resulting duration and price.
package selection

import (
	"fmt"
	"strings"

	"salonbook/internal/catalog"
	"salonbook/internal/model"
)

// ServiceID is a service name known to the catalog.
type ServiceID string

// ParseServiceID validates name against c.
func ParseServiceID(c *catalog.Catalog, name string) (ServiceID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", catalog.ErrUnknownService)
	}
	if _, ok := c.Lookup(name); !ok {
		return "", fmt.Errorf("%w: %q", catalog.ErrUnknownService, name)
	}
	return ServiceID(name), nil
}

// Totals is the fold of the selected services.
type Totals struct {
	DurationMinutes int         `json:"duration"`
	Price           model.Money `json:"total_price"`
	// PriceUpper adds upper bounds of ranged add-ons. Display only.
	PriceUpper model.Money `json:"total_price_max"`
}

// Selection is one customer's service picks. Not safe for concurrent use;
// owners serialize access.
type Selection struct {
	catalog  *catalog.Catalog
	selected map[ServiceID]bool
	totals   Totals
}

// New creates an empty selection over c.
func New(c *catalog.Catalog) *Selection {
	return &Selection{catalog: c, selected: make(map[ServiceID]bool)}
}

// Toggle flips the service and returns the new totals.
func (s *Selection) Toggle(name string) (Totals, error) {
	id, err := ParseServiceID(s.catalog, name)
	if err != nil {
		return s.totals, err
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	s.totals = s.fold()
	return s.totals, nil
}

// Set selects exactly the given services.
func (s *Selection) Set(names []string) (Totals, error) {
	next := make(map[ServiceID]bool, len(names))
	for _, n := range names {
		id, err := ParseServiceID(s.catalog, n)
		if err != nil {
			return s.totals, err
		}
		next[id] = true
	}
	s.selected = next
	s.totals = s.fold()
	return s.totals, nil
}

// Reset clears every selection.
func (s *Selection) Reset() {
	s.selected = make(map[ServiceID]bool)
	s.totals = Totals{}
}

// Totals returns the current totals.
func (s *Selection) Totals() Totals {
	return s.totals
}

// IsSelected reports whether name is picked.
func (s *Selection) IsSelected(name string) bool {
	return s.selected[ServiceID(strings.TrimSpace(name))]
}

// Empty reports whether nothing is picked.
func (s *Selection) Empty() bool {
	return len(s.selected) == 0
}

// Selected returns picked names in menu order.
func (s *Selection) Selected() []string {
	var out []string
	for _, it := range s.catalog.Items() {
		if s.selected[ServiceID(it.Name)] {
			out = append(out, it.Name)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	c := New(s.catalog)
	for id := range s.selected {
		c.selected[id] = true
	}
	c.totals = s.totals
	return c
}

func (s *Selection) fold() Totals {
	return Compute(s.catalog, s.Selected())
}

// Compute folds the named services into totals; unknown names are skipped.
func Compute(c *catalog.Catalog, names []string) Totals {
	var t Totals
	for _, n := range names {
		it, ok := c.Lookup(n)
		if !ok {
			continue
		}
		t.DurationMinutes += it.DurationMinutes
		t.Price += it.Price.TotalContribution()
		t.PriceUpper += it.Price.Upper
	}
	return t
}
