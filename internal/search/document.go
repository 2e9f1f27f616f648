package search

import (
	"strconv"
	"strings"

	"github.com/nibbleapp/nibble-server/internal/allergen"
	"github.com/nibbleapp/nibble-server/internal/domain"
)

// FoodDocument is the indexed form of a catalog record.
type FoodDocument struct {
	ID            string
	Name          string
	NameExact     string // Lower-cased full name for exact-match boosting
	Category      string // Lower-cased for keyword filtering
	Allergens     []string
	Description   string
	PetSafe       bool
	ChokingHazard bool
}

// ToMap converts the document to a map with lowercase field names
// matching the index mapping.
func (d *FoodDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":             d.ID,
		"name":           d.Name,
		"name_exact":     d.NameExact,
		"category":       d.Category,
		"pet_safe":       d.PetSafe,
		"choking_hazard": d.ChokingHazard,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Allergens) > 0 {
		m["allergens"] = d.Allergens
	}
	return m
}

// FoodToDocument converts a catalog record to a FoodDocument.
func FoodToDocument(f domain.FoodRecord) *FoodDocument {
	return &FoodDocument{
		ID:            strconv.Itoa(f.ID),
		Name:          f.Name,
		NameExact:     strings.ToLower(strings.TrimSpace(f.Name)),
		Category:      strings.ToLower(f.Category),
		Allergens:     allergen.NormalizeAll(f.Allergens),
		Description:   f.Description,
		PetSafe:       f.PetSafe,
		ChokingHazard: f.ChokingHazard,
	}
}
