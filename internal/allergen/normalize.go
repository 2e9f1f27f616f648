// Package allergen derives allergen trial records from feeding events.
// Everything here is a pure function of its arguments.
package allergen

import (
	"slices"
	"strings"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// canonical maps free-form labels (lower-cased) to allergen tags.
var canonical = map[string]string{
	"egg":       "eggs",
	"eggs":      "eggs",
	"dairy":     "milk",
	"milk":      "milk",
	"peanut":    "peanuts",
	"peanuts":   "peanuts",
	"tree nut":  "tree nuts",
	"tree nuts": "tree nuts",
	"fish":      "fish",
	"shellfish": "shellfish",
	"soy":       "soy",
	"wheat":     "wheat",
}

// Normalize maps a free-form allergen label to its canonical tag.
// Labels missing from the table pass through lower-cased.
func Normalize(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if tag, ok := canonical[key]; ok {
		return tag
	}
	return key
}

// NormalizeAll normalizes labels, dropping blanks and duplicates while
// keeping first-seen order.
func NormalizeAll(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		tag := Normalize(l)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// Recognized reports whether tag is one of the tracked allergen tags.
func Recognized(tag string) bool {
	return slices.Contains(domain.RecognizedAllergens, tag)
}
