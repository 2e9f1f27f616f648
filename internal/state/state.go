// Package state holds the per-session view of entries and the allergen table
// derived from them. Changes go through Reduce, a pure function of the
// current state and an action.
package state

import (
	"slices"

	"github.com/nibbleapp/nibble-server/internal/allergen"
	"github.com/nibbleapp/nibble-server/internal/domain"
)

// State is one session's entries, newest first, and its allergen table.
type State struct {
	Entries   []domain.FeedingEvent
	Allergens []domain.AllergenTrialRecord
}

// Empty returns a state with no entries and an untried allergen table.
func Empty() State {
	return State{Entries: []domain.FeedingEvent{}, Allergens: allergen.NewTable()}
}

// Action is a change applied by Reduce.
type Action interface {
	reduce(State) (State, error)
}

// Loaded replaces the state with data read from the backing stores.
type Loaded struct {
	Entries     []domain.FeedingEvent
	Annotations map[string]domain.Annotation
}

// EntryAdded records a newly stored entry.
type EntryAdded struct {
	Entry domain.FeedingEvent
}

// EntryUpdated records an edit. Before is the entry as it was stored.
type EntryUpdated struct {
	Before domain.FeedingEvent
	After  domain.FeedingEvent
}

// EntryRemoved records a deletion.
type EntryRemoved struct {
	Entry domain.FeedingEvent
}

// TriedToggled flips the manual mark on an allergen.
type TriedToggled struct {
	Tag   string
	Today string
}

// ReactionsSaved sets an allergen's reaction summary.
type ReactionsSaved struct {
	Tag  string
	Text string
}

// Cleared empties the entries. Annotations survive.
type Cleared struct{}

// Reduce applies a to s and returns the new state. s is not modified. An
// error leaves nothing changed.
func Reduce(s State, a Action) (State, error) {
	return a.reduce(s)
}

func (a Loaded) reduce(State) (State, error) {
	entries := slices.Clone(a.Entries)
	if entries == nil {
		entries = []domain.FeedingEvent{}
	}
	domain.SortNewestFirst(entries)
	return State{
		Entries:   entries,
		Allergens: allergen.Overlay(allergen.Derive(entries), a.Annotations),
	}, nil
}

func (a EntryAdded) reduce(s State) (State, error) {
	entries := append([]domain.FeedingEvent{a.Entry}, s.Entries...)
	domain.SortNewestFirst(entries)
	return State{Entries: entries, Allergens: allergen.ApplyAdd(s.Allergens, a.Entry)}, nil
}

func (a EntryUpdated) reduce(s State) (State, error) {
	entries := slices.Clone(s.Entries)
	i := slices.IndexFunc(entries, func(e domain.FeedingEvent) bool { return e.ID == a.After.ID })
	if i < 0 {
		entries = append(entries, a.After)
	} else {
		entries[i] = a.After
	}
	domain.SortNewestFirst(entries)
	return State{Entries: entries, Allergens: allergen.ApplyEdit(s.Allergens, a.Before, a.After)}, nil
}

func (a EntryRemoved) reduce(s State) (State, error) {
	entries := slices.DeleteFunc(slices.Clone(s.Entries), func(e domain.FeedingEvent) bool {
		return e.ID == a.Entry.ID
	})
	return State{Entries: entries, Allergens: allergen.ApplyDelete(s.Allergens, a.Entry)}, nil
}

func (a TriedToggled) reduce(s State) (State, error) {
	records, err := allergen.ToggleTried(s.Allergens, a.Tag, a.Today)
	if err != nil {
		return s, err
	}
	return State{Entries: s.Entries, Allergens: records}, nil
}

func (a ReactionsSaved) reduce(s State) (State, error) {
	records, err := allergen.SetReactions(s.Allergens, a.Tag, a.Text)
	if err != nil {
		return s, err
	}
	return State{Entries: s.Entries, Allergens: records}, nil
}

func (Cleared) reduce(s State) (State, error) {
	return State{
		Entries:   []domain.FeedingEvent{},
		Allergens: allergen.Overlay(allergen.NewTable(), allergen.Annotations(s.Allergens)),
	}, nil
}
