package catalog

import "strings"

// nameIcons is checked in order; the first keyword contained in the food
// name wins.
var nameIcons = []struct {
	keywords []string
	icon     string
}{
	{[]string{"apple"}, "🍎"},
	{[]string{"banana"}, "🍌"},
	{[]string{"strawberry"}, "🍓"},
	{[]string{"orange"}, "🍊"},
	{[]string{"grape"}, "🍇"},
	{[]string{"avocado"}, "🥑"},
	{[]string{"tomato"}, "🍅"},
	{[]string{"carrot"}, "🥕"},
	{[]string{"broccoli"}, "🥦"},
	{[]string{"corn"}, "🌽"},
	{[]string{"egg"}, "🥚"},
	{[]string{"cheese"}, "🧀"},
	{[]string{"bread"}, "🍞"},
	{[]string{"rice"}, "🍚"},
	{[]string{"potato"}, "🥔"},
	{[]string{"chicken"}, "🍗"},
	{[]string{"beef", "steak"}, "🥩"},
	{[]string{"fish", "salmon", "tuna"}, "🐟"},
	{[]string{"shrimp", "crab", "lobster"}, "🦐"},
	{[]string{"mushroom"}, "🍄"},
	{[]string{"pumpkin"}, "🎃"},
	{[]string{"lemon"}, "🍋"},
	{[]string{"lime"}, "🟢"},
	{[]string{"coconut"}, "🥥"},
	{[]string{"pasta", "noodle"}, "🍝"},
	{[]string{"pizza"}, "🍕"},
}

var categoryIcons = map[string]string{
	"fruit":      "🍎",
	"vegetable":  "🥬",
	"meat":       "🥩",
	"fish":       "🐟",
	"shellfish":  "🦐",
	"dairy":      "🥛",
	"grain":      "🌾",
	"legume":     "🫘",
	"egg":        "🥚",
	"fungi":      "🍄",
	"herb/spice": "🌿",
	"seed":       "🌰",
	"tree nut":   "🥜",
	"prepared":   "🍽️",
	"condiment":  "🧂",
	"sweetener":  "🍯",
	"oil":        "🫒",
}

const defaultIcon = "🥄"

// IconFor picks a display emoji from the food name, falling back to the
// category.
func IconFor(name, category string) string {
	lower := strings.ToLower(name)
	for _, ni := range nameIcons {
		for _, kw := range ni.keywords {
			if strings.Contains(lower, kw) {
				return ni.icon
			}
		}
	}
	// "nut" without "butter" keeps peanut butter on the category icon.
	if strings.Contains(lower, "nut") && !strings.Contains(lower, "butter") {
		return "🥜"
	}
	if icon, ok := categoryIcons[strings.ToLower(category)]; ok {
		return icon
	}
	return defaultIcon
}
