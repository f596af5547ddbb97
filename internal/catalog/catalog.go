package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a product table violates the catalog rules.
var ErrInvalidCatalog = errors.New("catalog: invalid product table")

// Product is one purchasable entry of the read-only catalog.
type Product struct {
	ID          int     `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	Category    string  `json:"category" yaml:"category"`
	Image       string  `json:"image" yaml:"image"`
	Description string  `json:"description" yaml:"description"`
}

// Catalog is an immutable, indexed product table. It is safe for concurrent use.
type Catalog struct {
	products []Product
	byName   map[string]int
	byID     map[int]int
}

// New validates products and builds the lookup indexes. IDs must be positive and
// unique, names non-empty and unique, prices finite and non-negative.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byName:   make(map[string]int, len(products)),
		byID:     make(map[int]int, len(products)),
	}
	for i, p := range products {
		p.Name = strings.TrimSpace(p.Name)
		p.Category = strings.ToLower(strings.TrimSpace(p.Category))
		switch {
		case p.ID <= 0:
			return nil, fmt.Errorf("%w: product %d has non-positive id %d", ErrInvalidCatalog, i, p.ID)
		case p.Name == "":
			return nil, fmt.Errorf("%w: product %d has an empty name", ErrInvalidCatalog, p.ID)
		case math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0:
			return nil, fmt.Errorf("%w: product %q has invalid price %v", ErrInvalidCatalog, p.Name, p.Price)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCatalog, p.Name)
		}
		c.byID[p.ID] = len(c.products)
		c.byName[p.Name] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// LoadFile reads a YAML catalog of the form `products: [{id, name, price, ...}]`.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(file.Products) == 0 {
		return nil, fmt.Errorf("%w: %s lists no products", ErrInvalidCatalog, path)
	}
	return New(file.Products)
}

// FindByName looks a product up by its exact display name.
func (c *Catalog) FindByName(name string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	idx, ok := c.byName[name]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// FindByID looks a product up by its numeric identifier.
func (c *Catalog) FindByID(id int) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// List returns a copy of the products in catalog order.
func (c *Catalog) List() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Search returns the products matching the filter, in catalog order.
func (c *Catalog) Search(f Filter) []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
