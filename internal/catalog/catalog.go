// Package catalog holds the immutable food reference data and its lookup,
// filter and search helpers. Every operation is total over the fixed list.
package catalog

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/nibbleapp/nibble-server/internal/allergen"
	"github.com/nibbleapp/nibble-server/internal/domain"
)

//go:embed foods.yaml
var foodsYAML []byte

// Catalog is a read-only set of food records.
type Catalog struct {
	foods  []domain.FoodRecord
	byID   map[int]int
	byName map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. It panics if the embedded data is
// malformed, which the package tests guard against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(foodsYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded foods.yaml: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse decodes a YAML list of food records.
func Parse(data []byte) (*Catalog, error) {
	var foods []domain.FoodRecord
	if err := yaml.Unmarshal(data, &foods); err != nil {
		return nil, fmt.Errorf("decode foods: %w", err)
	}
	return New(foods)
}

// New builds a catalog from records. IDs and names (case-insensitively)
// must be unique.
func New(foods []domain.FoodRecord) (*Catalog, error) {
	c := &Catalog{
		foods:  make([]domain.FoodRecord, len(foods)),
		byID:   make(map[int]int, len(foods)),
		byName: make(map[string]int, len(foods)),
	}
	for i, f := range foods {
		if f.Allergens == nil {
			f.Allergens = []string{}
		}
		if f.Icon == "" {
			f.Icon = IconFor(f.Name, f.Category)
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate food id %d", f.ID)
		}
		key := fold(f.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate food name %q", f.Name)
		}
		c.foods[i] = f
		c.byID[f.ID] = i
		c.byName[key] = i
	}
	return c, nil
}

// All returns every record in catalog order.
func (c *Catalog) All() []domain.FoodRecord {
	return slices.Clone(c.foods)
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.foods)
}

// Get returns the record with the given ID.
func (c *Catalog) Get(id int) (domain.FoodRecord, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.FoodRecord{}, false
	}
	return c.foods[i], true
}

// Lookup finds a record whose name matches name case-insensitively,
// ignoring surrounding whitespace.
func (c *Catalog) Lookup(name string) (domain.FoodRecord, bool) {
	i, ok := c.byName[fold(strings.TrimSpace(name))]
	if !ok {
		return domain.FoodRecord{}, false
	}
	return c.foods[i], true
}

// Categories returns the distinct category labels, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range c.foods {
		if _, ok := seen[f.Category]; ok {
			continue
		}
		seen[f.Category] = struct{}{}
		out = append(out, f.Category)
	}
	slices.Sort(out)
	return out
}

// ByCategory returns records whose category equals category, ignoring case.
func (c *Catalog) ByCategory(category string) []domain.FoodRecord {
	want := fold(category)
	return c.filter(func(f domain.FoodRecord) bool {
		return fold(f.Category) == want
	})
}

// ByAllergen returns records carrying the allergen. Both the argument and
// the record labels are normalized, so "eggs" matches a food labelled "Egg".
func (c *Catalog) ByAllergen(label string) []domain.FoodRecord {
	want := allergen.Normalize(label)
	return c.filter(func(f domain.FoodRecord) bool {
		return slices.Contains(allergen.NormalizeAll(f.Allergens), want)
	})
}

// ByPetSafe returns records whose pet-safety flag equals safe.
func (c *Catalog) ByPetSafe(safe bool) []domain.FoodRecord {
	return c.filter(func(f domain.FoodRecord) bool {
		return f.PetSafe == safe
	})
}

// AllergenFoods returns records carrying at least one allergen.
func (c *Catalog) AllergenFoods() []domain.FoodRecord {
	return c.filter(domain.FoodRecord.HasAllergens)
}

// Search returns records whose name, description or category contains term
// as a case-insensitive substring. An empty term matches everything.
func (c *Catalog) Search(term string) []domain.FoodRecord {
	term = fold(strings.TrimSpace(term))
	return c.filter(func(f domain.FoodRecord) bool {
		return strings.Contains(fold(f.Name), term) ||
			strings.Contains(fold(f.Description), term) ||
			strings.Contains(fold(f.Category), term)
	})
}

// Filter narrows the catalog. Zero-valued fields do not filter.
type Filter struct {
	Category string
	Allergen string
	PetSafe  *bool
	Query    string
}

// Find applies every set field of f.
func (c *Catalog) Find(f Filter) []domain.FoodRecord {
	out := c.All()
	if f.Category != "" {
		out = intersect(out, c.ByCategory(f.Category))
	}
	if f.Allergen != "" {
		out = intersect(out, c.ByAllergen(f.Allergen))
	}
	if f.PetSafe != nil {
		out = intersect(out, c.ByPetSafe(*f.PetSafe))
	}
	if f.Query != "" {
		out = intersect(out, c.Search(f.Query))
	}
	return out
}

func (c *Catalog) filter(keep func(domain.FoodRecord) bool) []domain.FoodRecord {
	out := []domain.FoodRecord{}
	for _, f := range c.foods {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

func intersect(a, b []domain.FoodRecord) []domain.FoodRecord {
	ids := make(map[int]struct{}, len(b))
	for _, f := range b {
		ids[f.ID] = struct{}{}
	}
	return slices.DeleteFunc(a, func(f domain.FoodRecord) bool {
		_, ok := ids[f.ID]
		return !ok
	})
}

// fold returns the case-folded form of s. Casers are stateful, so one is
// built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
