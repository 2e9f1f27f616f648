// Package diary computes the per-day and trailing-week views of a feeding
// log.
package diary

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// WindowDays is the length of the weekly window, reference day included.
const WindowDays = 7

// Week summarizes the window ending on a reference day.
type Week struct {
	Start             string                  `json:"start"`
	End               string                  `json:"end"`
	NewFoods          []string                `json:"new_foods"`
	TotalMeals        int                     `json:"total_meals"`
	AllergicReactions int                     `json:"allergic_reactions"`
	DaysLogged        int                     `json:"days_logged"`
	Reactions         map[domain.Reaction]int `json:"reactions"`
}

// Day returns the events logged on date, in input order. No match yields an
// empty, non-nil slice.
func Day(events []domain.FeedingEvent, date string) []domain.FeedingEvent {
	out := []domain.FeedingEvent{}
	for _, ev := range events {
		if ev.Date == date {
			out = append(out, ev)
		}
	}
	return out
}

// WindowStart returns the first day of the week ending on ref.
func WindowStart(ref string) (string, error) {
	day, err := time.Parse(domain.DateLayout, ref)
	if err != nil {
		return "", fmt.Errorf("parse reference date %q: %w", ref, err)
	}
	return day.AddDate(0, 0, -(WindowDays - 1)).Format(domain.DateLayout), nil
}

// Summarize computes the week ending on ref.
//
// A food is new when its first-ever logged date, across the whole list,
// falls inside the window. Foods are matched ignoring case and surrounding
// space; the first-logged spelling is reported.
func Summarize(events []domain.FeedingEvent, ref string) (Week, error) {
	start, err := WindowStart(ref)
	if err != nil {
		return Week{}, err
	}

	type firstSeen struct {
		date string
		name string
	}
	first := make(map[string]firstSeen)
	for _, ev := range events {
		key := foodKey(ev.FoodName)
		if key == "" {
			continue
		}
		if cur, ok := first[key]; !ok || ev.Date < cur.date {
			first[key] = firstSeen{date: ev.Date, name: strings.TrimSpace(ev.FoodName)}
		}
	}

	week := Week{
		Start:     start,
		End:       ref,
		NewFoods:  []string{},
		Reactions: make(map[domain.Reaction]int),
	}
	days := make(map[string]struct{})
	for _, ev := range events {
		if ev.Date < start || ev.Date > ref {
			continue
		}
		week.TotalMeals++
		if ev.HadReaction {
			week.AllergicReactions++
		}
		if ev.Reaction != "" {
			week.Reactions[ev.Reaction]++
		}
		days[ev.Date] = struct{}{}
	}
	week.DaysLogged = len(days)

	for _, fs := range first {
		if fs.date >= start && fs.date <= ref {
			week.NewFoods = append(week.NewFoods, fs.name)
		}
	}
	slices.SortFunc(week.NewFoods, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return week, nil
}

func foodKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
