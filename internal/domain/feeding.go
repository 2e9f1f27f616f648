package domain

import (
	"slices"
	"time"
)

// Calendar layouts for FeedingEvent.Date and FeedingEvent.Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Reaction is how the baby received a food.
type Reaction string

// Reactions, from least to most enthusiastic.
const (
	ReactionDisliked Reaction = "disliked"
	ReactionMixed    Reaction = "mixed"
	ReactionLiked    Reaction = "liked"
	ReactionLoved    Reaction = "loved"
)

// Reactions lists every valid reaction in display order.
var Reactions = []Reaction{ReactionDisliked, ReactionMixed, ReactionLiked, ReactionLoved}

// Valid reports whether r is one of the known reactions.
func (r Reaction) Valid() bool {
	return slices.Contains(Reactions, r)
}

// PreparationMethods are the preparation choices offered when logging a food.
var PreparationMethods = []string{
	"Purée",
	"Mashed",
	"Soft-cooked",
	"Steamed",
	"Boiled",
	"Roasted",
	"Baked",
	"Sautéed",
	"Minced",
	"Grated",
	"Sliced/Strips",
	"Cubed",
}

// FeedingEvent is one logged feeding. Date and Time are calendar strings
// (DateLayout, TimeLayout) so they order lexicographically.
type FeedingEvent struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	FoodName    string    `json:"food_name"`
	Preparation string    `json:"preparation,omitempty"`
	Reaction    Reaction  `json:"baby_reaction"`
	HadReaction bool      `json:"had_reaction"`
	Notes       string    `json:"notes,omitempty"`
	IsAllergen  bool      `json:"is_allergen"`
	Allergens   []string  `json:"allergens"`
	CreatedAt   time.Time `json:"created_at"`
}

// SortNewestFirst orders events by date, then time, both descending.
// Ties keep their relative order.
func SortNewestFirst(events []FeedingEvent) {
	slices.SortStableFunc(events, func(a, b FeedingEvent) int {
		if a.Date != b.Date {
			if a.Date > b.Date {
				return -1
			}
			return 1
		}
		switch {
		case a.Time > b.Time:
			return -1
		case a.Time < b.Time:
			return 1
		}
		return 0
	})
}
