package allergen

import (
	"errors"
	"slices"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

var (
	// ErrUnknownTag is returned for tags outside domain.RecognizedAllergens.
	ErrUnknownTag = errors.New("unknown allergen tag")
	// ErrLoggedExposures is returned when unmarking an allergen whose tried
	// state comes from logged feedings rather than a manual mark.
	ErrLoggedExposures = errors.New("allergen has logged exposures")
)

// NewTable returns one untried record per recognized tag.
func NewTable() []domain.AllergenTrialRecord {
	records := make([]domain.AllergenTrialRecord, len(domain.RecognizedAllergens))
	for i, tag := range domain.RecognizedAllergens {
		records[i] = domain.AllergenTrialRecord{Tag: tag, History: []domain.HistoryEntry{}}
	}
	return records
}

// Derive builds the table from scratch. Events are applied oldest first.
func Derive(events []domain.FeedingEvent) []domain.AllergenTrialRecord {
	ordered := slices.Clone(events)
	domain.SortNewestFirst(ordered)
	slices.Reverse(ordered)

	records := NewTable()
	for _, ev := range ordered {
		records = ApplyAdd(records, ev)
	}
	return records
}

// ApplyAdd records ev against every tag it carries.
func ApplyAdd(records []domain.AllergenTrialRecord, ev domain.FeedingEvent) []domain.AllergenTrialRecord {
	out := clone(records)
	tags := NormalizeAll(ev.Allergens)
	for i := range out {
		if slices.Contains(tags, out[i].Tag) {
			insert(&out[i], ev)
		}
	}
	return out
}

// ApplyEdit replaces before's history entries with after's. The food name,
// and with it the tags, may have changed between the two.
func ApplyEdit(records []domain.AllergenTrialRecord, before, after domain.FeedingEvent) []domain.AllergenTrialRecord {
	out := clone(records)
	oldTags := NormalizeAll(before.Allergens)
	newTags := NormalizeAll(after.Allergens)
	for i := range out {
		r := &out[i]
		if slices.Contains(oldTags, r.Tag) {
			remove(r, before)
		}
		if slices.Contains(newTags, r.Tag) {
			remove(r, after)
			insert(r, after)
		}
		refresh(r)
	}
	return out
}

// ApplyDelete drops ev's history entries and recomputes tried state.
func ApplyDelete(records []domain.AllergenTrialRecord, ev domain.FeedingEvent) []domain.AllergenTrialRecord {
	out := clone(records)
	tags := NormalizeAll(ev.Allergens)
	for i := range out {
		if slices.Contains(tags, out[i].Tag) {
			remove(&out[i], ev)
			refresh(&out[i])
		}
	}
	return out
}

// ToggleTried flips the manual mark on tag. Marking sets today as the mark
// date; unmarking is refused while the tried state comes only from logged
// feedings.
func ToggleTried(records []domain.AllergenTrialRecord, tag, today string) ([]domain.AllergenTrialRecord, error) {
	i := index(records, tag)
	if i < 0 {
		return nil, ErrUnknownTag
	}
	out := clone(records)
	r := &out[i]
	switch {
	case r.MarkedOn != nil:
		r.MarkedOn = nil
	case len(r.History) > 0:
		return nil, ErrLoggedExposures
	default:
		r.MarkedOn = &today
	}
	refresh(r)
	return out, nil
}

// SetReactions replaces the free-text reaction summary for tag.
func SetReactions(records []domain.AllergenTrialRecord, tag, text string) ([]domain.AllergenTrialRecord, error) {
	i := index(records, tag)
	if i < 0 {
		return nil, ErrUnknownTag
	}
	out := clone(records)
	out[i].Reactions = text
	return out, nil
}

// Find returns the record for tag.
func Find(records []domain.AllergenTrialRecord, tag string) (domain.AllergenTrialRecord, bool) {
	i := index(records, tag)
	if i < 0 {
		return domain.AllergenTrialRecord{}, false
	}
	return records[i], true
}

// Status classifies a record for display.
func Status(r domain.AllergenTrialRecord) domain.AllergenStatus {
	switch {
	case !r.Tried:
		return domain.StatusUntried
	case len(r.History) == 0:
		return domain.StatusUnknown
	case r.History[len(r.History)-1].HadReaction:
		return domain.StatusAllergic
	default:
		return domain.StatusSafe
	}
}

// Summary counts records by outcome.
type Summary struct {
	Tried     int `json:"tried"`
	Remaining int `json:"remaining"`
	Allergic  int `json:"allergic"`
}

// Summarize counts tried, remaining and allergic records.
func Summarize(records []domain.AllergenTrialRecord) Summary {
	var s Summary
	for _, r := range records {
		if r.Tried {
			s.Tried++
		}
		if Status(r) == domain.StatusAllergic {
			s.Allergic++
		}
	}
	s.Remaining = len(records) - s.Tried
	return s
}

func insert(r *domain.AllergenTrialRecord, ev domain.FeedingEvent) {
	r.History = append(r.History, domain.HistoryEntry{
		EventID:     ev.ID,
		Date:        ev.Date,
		HadReaction: ev.HadReaction,
		Notes:       ev.Notes,
	})
	slices.SortStableFunc(r.History, func(a, b domain.HistoryEntry) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})
	refresh(r)
}

// remove drops the first entry belonging to ev. Entries written without an
// event ID are matched by date.
func remove(r *domain.AllergenTrialRecord, ev domain.FeedingEvent) {
	i := slices.IndexFunc(r.History, func(h domain.HistoryEntry) bool {
		if h.EventID != "" {
			return h.EventID == ev.ID
		}
		return h.Date == ev.Date
	})
	if i >= 0 {
		r.History = slices.Delete(r.History, i, i+1)
	}
}

// refresh restores Tried and LastTried from History and the manual mark.
func refresh(r *domain.AllergenTrialRecord) {
	r.Tried = len(r.History) > 0 || r.MarkedOn != nil
	switch {
	case len(r.History) > 0:
		last := r.History[len(r.History)-1].Date
		r.LastTried = &last
	case r.MarkedOn != nil:
		marked := *r.MarkedOn
		r.LastTried = &marked
	default:
		r.LastTried = nil
	}
}

func index(records []domain.AllergenTrialRecord, tag string) int {
	tag = Normalize(tag)
	return slices.IndexFunc(records, func(r domain.AllergenTrialRecord) bool {
		return r.Tag == tag
	})
}

func clone(records []domain.AllergenTrialRecord) []domain.AllergenTrialRecord {
	out := make([]domain.AllergenTrialRecord, len(records))
	for i, r := range records {
		r.History = append([]domain.HistoryEntry{}, r.History...)
		if r.MarkedOn != nil {
			m := *r.MarkedOn
			r.MarkedOn = &m
		}
		if r.LastTried != nil {
			l := *r.LastTried
			r.LastTried = &l
		}
		out[i] = r
	}
	return out
}

// Annotations extracts the user-authored fields keyed by tag. Records with
// nothing authored are omitted.
func Annotations(records []domain.AllergenTrialRecord) map[string]domain.Annotation {
	out := make(map[string]domain.Annotation)
	for _, r := range records {
		a := domain.Annotation{Reactions: r.Reactions}
		if r.MarkedOn != nil {
			m := *r.MarkedOn
			a.MarkedOn = &m
		}
		if !a.IsZero() {
			out[r.Tag] = a
		}
	}
	return out
}

// Overlay applies annotations onto records. Unknown tags are ignored.
func Overlay(records []domain.AllergenTrialRecord, notes map[string]domain.Annotation) []domain.AllergenTrialRecord {
	out := clone(records)
	for i := range out {
		a, ok := notes[out[i].Tag]
		if !ok {
			continue
		}
		out[i].Reactions = a.Reactions
		if a.MarkedOn != nil {
			m := *a.MarkedOn
			out[i].MarkedOn = &m
		}
		refresh(&out[i])
	}
	return out
}
