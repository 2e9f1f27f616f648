package domain

// FoodRecord is one entry of the food catalog. Records are loaded once at
// startup and never mutated.
type FoodRecord struct {
	ID            int      `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Category      string   `json:"category" yaml:"category"`
	Allergens     []string `json:"allergens" yaml:"allergens"` // Free-form labels, e.g. "Egg", "Dairy"
	ChokingHazard bool     `json:"choking_hazard" yaml:"choking_hazard"`
	PetSafe       bool     `json:"pet_safe" yaml:"pet_safe"`
	Description   string   `json:"description" yaml:"description"`
	Icon          string   `json:"icon" yaml:"-"`
}

// HasAllergens reports whether the food carries any allergen label.
func (f FoodRecord) HasAllergens() bool {
	return len(f.Allergens) > 0
}
