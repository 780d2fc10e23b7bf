// Package catalog holds the static menu of salon services.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownService is returned for names missing from the catalog.
var ErrUnknownService = errors.New("unknown service")

// Item is one bookable service.
type Item struct {
	Name            string `yaml:"name" json:"name"`
	Category        string `yaml:"-" json:"category"`
	DurationMinutes int    `yaml:"duration" json:"duration"`
	Price           Price  `yaml:"price" json:"price"`
}

// Category groups items for display.
type Category struct {
	Name  string `yaml:"name" json:"category"`
	Items []Item `yaml:"services" json:"items"`
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Catalog is the read-only service menu.
type Catalog struct {
	categories []Category
	items      []Item
	byName     map[string]int
}

// New validates categories and builds a catalog.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int)}
	for ci, cat := range categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d: name is required", ci)
		}
		copied := Category{Name: name, Items: make([]Item, 0, len(cat.Items))}
		for _, it := range cat.Items {
			it.Name = strings.TrimSpace(it.Name)
			it.Category = name
			if it.Name == "" {
				return nil, fmt.Errorf("category %q: service without name", name)
			}
			if _, dup := c.byName[it.Name]; dup {
				return nil, fmt.Errorf("duplicate service %q", it.Name)
			}
			if it.DurationMinutes <= 0 {
				return nil, fmt.Errorf("service %q: duration must be positive", it.Name)
			}
			c.byName[it.Name] = len(c.items)
			c.items = append(c.items, it)
			copied.Items = append(copied.Items, it)
		}
		c.categories = append(c.categories, copied)
	}
	if len(c.items) == 0 {
		return nil, errors.New("catalog has no services")
	}
	return c, nil
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Categories)
}

// Categories returns the categories in menu order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Items returns every service in menu order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of services.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Lookup finds a service by name.
func (c *Catalog) Lookup(name string) (Item, bool) {
	i, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Index returns the menu position of name or -1.
func (c *Catalog) Index(name string) int {
	i, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return -1
	}
	return i
}

// At returns the service at menu position i.
func (c *Catalog) At(i int) (Item, bool) {
	if i < 0 || i >= len(c.items) {
		return Item{}, false
	}
	return c.items[i], true
}

// Default returns the salon's standard menu.
func Default() *Catalog {
	c, err := New([]Category{
		{
			Name: "Nature Nails",
			Items: []Item{
				{Name: "Shellac manicure", DurationMinutes: 45, Price: MustParsePrice("30")},
				{Name: "Mini shellac pedicure", DurationMinutes: 40, Price: MustParsePrice("32")},
			},
		},
		{
			Name: "Nails Extension",
			Items: []Item{
				{Name: "New set GEL-X Short/Medium", DurationMinutes: 90, Price: MustParsePrice("50")},
				{Name: "Re-fill GEL-X *Only once*", DurationMinutes: 60, Price: MustParsePrice("45")},
				{Name: "New set Acrylic Short/Medium", DurationMinutes: 75, Price: MustParsePrice("45")},
				{Name: "Re-fill Acrylic", DurationMinutes: 60, Price: MustParsePrice("40")},
				{Name: "Hard gel/Acrylic overlay", DurationMinutes: 60, Price: MustParsePrice("37")},
				{Name: "Long / Extra Long", DurationMinutes: 15, Price: MustParsePrice("+5")},
			},
		},
		{
			Name: "Add On",
			Items: []Item{
				{Name: "Charm/Crystal", DurationMinutes: 15, Price: MustParsePrice("+5~15")},
				{Name: "French tip/Ombre", DurationMinutes: 15, Price: MustParsePrice("+10")},
				{Name: "Chrome/Magnetic Cat-eye polish", DurationMinutes: 15, Price: MustParsePrice("+10")},
				{Name: "Nails Art", DurationMinutes: 15, Price: MustParsePrice("+5~15")},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
