package domain

// AllergenStatus is the dashboard classification of an allergen.
type AllergenStatus string

// Allergen statuses.
const (
	StatusUntried  AllergenStatus = "untried"
	StatusUnknown  AllergenStatus = "unknown" // tried, but nothing logged against it
	StatusAllergic AllergenStatus = "allergic"
	StatusSafe     AllergenStatus = "safe"
)

// RecognizedAllergens are the canonical allergen tags tracked on the
// dashboard, in display order.
var RecognizedAllergens = []string{
	"eggs",
	"milk",
	"peanuts",
	"tree nuts",
	"fish",
	"shellfish",
	"soy",
	"wheat",
}

// HistoryEntry is one exposure to an allergen.
type HistoryEntry struct {
	EventID     string `json:"event_id,omitempty"`
	Date        string `json:"date"`
	HadReaction bool   `json:"had_reaction"`
	Notes       string `json:"notes"`
}

// AllergenTrialRecord tracks exposure history for one allergen tag.
//
// Tried is true when History is non-empty or the allergen was marked by hand
// (MarkedOn set). LastTried is the latest History date, or MarkedOn when
// History is empty.
type AllergenTrialRecord struct {
	Tag       string         `json:"tag"`
	Tried     bool           `json:"tried"`
	LastTried *string        `json:"last_tried"`
	Reactions string         `json:"reactions"`
	MarkedOn  *string        `json:"marked_on,omitempty"`
	History   []HistoryEntry `json:"history"`
}

// Annotation is the user-authored part of an allergen record: the manual
// mark and the reaction summary. It is persisted separately because the rest
// of the record is derived from feeding events.
type Annotation struct {
	MarkedOn  *string `json:"marked_on,omitempty"`
	Reactions string  `json:"reactions,omitempty"`
}

// IsZero reports whether the annotation carries nothing.
func (a Annotation) IsZero() bool {
	return a.MarkedOn == nil && a.Reactions == ""
}
