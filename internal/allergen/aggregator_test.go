package allergen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

func ptr(s string) *string { return &s }

func eggEvent(id, date string, reacted bool, notes string) domain.FeedingEvent {
	return domain.FeedingEvent{
		ID:          id,
		Date:        date,
		Time:        "08:00",
		FoodName:    "Egg",
		Preparation: "Soft-cooked",
		Reaction:    domain.ReactionLiked,
		HadReaction: reacted,
		Notes:       notes,
		IsAllergen:  true,
		Allergens:   []string{"Egg"},
	}
}

func mustFind(t *testing.T, records []domain.AllergenTrialRecord, tag string) domain.AllergenTrialRecord {
	t.Helper()
	r, ok := Find(records, tag)
	require.True(t, ok, "missing record for %s", tag)
	return r
}

// ignoreEventIDs compares history content only.
var ignoreEventIDs = cmpopts.IgnoreFields(domain.HistoryEntry{}, "EventID")

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Egg":       "eggs",
		"eggs":      "eggs",
		"Dairy":     "milk",
		"MILK":      "milk",
		"Peanut":    "peanuts",
		"Tree Nut":  "tree nuts",
		"Tree Nuts": "tree nuts",
		"Fish":      "fish",
		"Shellfish": "shellfish",
		"Soy":       "soy",
		"Wheat":     "wheat",
		" Sesame ":  "sesame",
		"Mustard":   "mustard",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}

	assert.Equal(t, []string{"eggs", "milk"}, NormalizeAll([]string{"Egg", "eggs", "", "Dairy"}))
}

func TestApplyAdd_EggScenario(t *testing.T) {
	records := ApplyAdd(NewTable(), eggEvent("ent-1", "2024-02-01", false, "first try"))

	want := domain.AllergenTrialRecord{
		Tag:       "eggs",
		Tried:     true,
		LastTried: ptr("2024-02-01"),
		History: []domain.HistoryEntry{
			{EventID: "ent-1", Date: "2024-02-01", HadReaction: false, Notes: "first try"},
		},
	}
	if diff := cmp.Diff(want, mustFind(t, records, "eggs")); diff != "" {
		t.Errorf("eggs record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.StatusSafe, Status(mustFind(t, records, "eggs")))
}

func TestDerive_UntouchedTagsStayUntried(t *testing.T) {
	events := []domain.FeedingEvent{
		eggEvent("ent-1", "2024-02-01", false, ""),
		{ID: "ent-2", Date: "2024-02-02", FoodName: "Banana", Allergens: []string{}},
		{ID: "ent-3", Date: "2024-02-03", FoodName: "Cheese", Allergens: []string{"Dairy"}},
	}

	records := Derive(events)
	require.Len(t, records, len(domain.RecognizedAllergens))

	for _, r := range records {
		if r.Tag == "eggs" || r.Tag == "milk" {
			assert.True(t, r.Tried, r.Tag)
			continue
		}
		assert.False(t, r.Tried, r.Tag)
		assert.Nil(t, r.LastTried, r.Tag)
		assert.Empty(t, r.History, r.Tag)
		assert.Equal(t, domain.StatusUntried, Status(r), r.Tag)
	}
}

func TestApplyAdd_LastTriedIsChronologicalMax(t *testing.T) {
	records := NewTable()
	records = ApplyAdd(records, eggEvent("ent-2", "2024-02-10", false, "later"))
	records = ApplyAdd(records, eggEvent("ent-1", "2024-02-01", true, "earlier"))

	eggs := mustFind(t, records, "eggs")
	require.NotNil(t, eggs.LastTried)
	assert.Equal(t, "2024-02-10", *eggs.LastTried)
	assert.Equal(t, []string{"2024-02-01", "2024-02-10"}, []string{eggs.History[0].Date, eggs.History[1].Date})
	// Most recent by date had no reaction.
	assert.Equal(t, domain.StatusSafe, Status(eggs))
}

func TestApplyAdd_IncrementalMatchesDerive(t *testing.T) {
	events := []domain.FeedingEvent{
		eggEvent("ent-1", "2024-02-01", false, "a"),
		{ID: "ent-2", Date: "2024-02-02", Allergens: []string{"Wheat", "Egg"}, Notes: "pancake"},
		{ID: "ent-3", Date: "2024-02-03", Allergens: []string{"Fish"}, HadReaction: true},
		eggEvent("ent-4", "2024-02-05", true, "hives"),
	}

	incremental := NewTable()
	for _, ev := range events {
		incremental = ApplyAdd(incremental, ev)
	}

	if diff := cmp.Diff(Derive(events), incremental); diff != "" {
		t.Errorf("incremental table differs from derived (-derived +incremental):\n%s", diff)
	}
}

func TestApplyDelete_RecomputesTriedAndLastTried(t *testing.T) {
	first := eggEvent("ent-1", "2024-02-01", false, "first")
	second := eggEvent("ent-2", "2024-02-05", true, "second")
	records := ApplyAdd(ApplyAdd(NewTable(), first), second)

	records = ApplyDelete(records, second)
	eggs := mustFind(t, records, "eggs")
	assert.True(t, eggs.Tried)
	assert.Equal(t, "2024-02-01", *eggs.LastTried)
	assert.Equal(t, domain.StatusSafe, Status(eggs))

	records = ApplyDelete(records, first)
	eggs = mustFind(t, records, "eggs")
	assert.False(t, eggs.Tried)
	assert.Nil(t, eggs.LastTried)
	assert.Empty(t, eggs.History)
}

func TestApplyDelete_ThenReAddRestoresHistory(t *testing.T) {
	events := []domain.FeedingEvent{
		eggEvent("ent-1", "2024-02-01", false, "first"),
		eggEvent("ent-2", "2024-02-03", true, "rash"),
	}
	before := Derive(events)

	records := ApplyDelete(before, events[1])
	readded := events[1]
	readded.ID = "ent-99"
	records = ApplyAdd(records, readded)

	if diff := cmp.Diff(before, records, ignoreEventIDs); diff != "" {
		t.Errorf("history not restored (-before +after):\n%s", diff)
	}
}

func TestApplyDelete_LegacyEntriesMatchByDate(t *testing.T) {
	records := NewTable()
	records[0].History = []domain.HistoryEntry{{Date: "2024-01-01"}, {Date: "2024-01-02"}}
	records[0].Tried = true

	records = ApplyDelete(records, eggEvent("ent-x", "2024-01-01", false, ""))

	eggs := mustFind(t, records, "eggs")
	require.Len(t, eggs.History, 1)
	assert.Equal(t, "2024-01-02", eggs.History[0].Date)
	assert.Equal(t, "2024-01-02", *eggs.LastTried)
}

func TestApplyEdit(t *testing.T) {
	original := eggEvent("ent-1", "2024-02-01", false, "first try")
	sameDay := eggEvent("ent-2", "2024-02-01", false, "second helping")
	records := ApplyAdd(ApplyAdd(NewTable(), original), sameDay)

	t.Run("date and reaction change", func(t *testing.T) {
		edited := original
		edited.Date = "2024-02-07"
		edited.HadReaction = true
		edited.Notes = "hives"

		got := mustFind(t, ApplyEdit(records, original, edited), "eggs")
		want := []domain.HistoryEntry{
			{EventID: "ent-2", Date: "2024-02-01", Notes: "second helping"},
			{EventID: "ent-1", Date: "2024-02-07", HadReaction: true, Notes: "hives"},
		}
		if diff := cmp.Diff(want, got.History); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, "2024-02-07", *got.LastTried)
		assert.Equal(t, domain.StatusAllergic, Status(got))
	})

	t.Run("food change moves the exposure", func(t *testing.T) {
		edited := original
		edited.FoodName = "Yogurt"
		edited.Allergens = []string{"Dairy"}

		out := ApplyEdit(records, original, edited)
		eggs := mustFind(t, out, "eggs")
		require.Len(t, eggs.History, 1)
		assert.Equal(t, "ent-2", eggs.History[0].EventID)

		milk := mustFind(t, out, "milk")
		require.Len(t, milk.History, 1)
		assert.Equal(t, "ent-1", milk.History[0].EventID)
		assert.True(t, milk.Tried)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		snapshot := Derive([]domain.FeedingEvent{sameDay, original})
		edited := original
		edited.Notes = "changed"
		ApplyEdit(records, original, edited)

		if diff := cmp.Diff(snapshot, records); diff != "" {
			t.Errorf("ApplyEdit mutated its input:\n%s", diff)
		}
	})
}

func TestToggleTried(t *testing.T) {
	records, err := ToggleTried(NewTable(), "peanuts", "2024-03-01")
	require.NoError(t, err)

	peanuts := mustFind(t, records, "peanuts")
	assert.True(t, peanuts.Tried)
	assert.Equal(t, "2024-03-01", *peanuts.LastTried)
	assert.Equal(t, domain.StatusUnknown, Status(peanuts))

	records, err = ToggleTried(records, "Peanut", "2024-03-02")
	require.NoError(t, err)
	peanuts = mustFind(t, records, "peanuts")
	assert.False(t, peanuts.Tried)
	assert.Nil(t, peanuts.LastTried)

	_, err = ToggleTried(records, "kiwi", "2024-03-02")
	assert.ErrorIs(t, err, ErrUnknownTag)

	logged := ApplyAdd(NewTable(), eggEvent("ent-1", "2024-02-01", false, ""))
	_, err = ToggleTried(logged, "eggs", "2024-03-02")
	assert.ErrorIs(t, err, ErrLoggedExposures)
}

func TestToggleTried_MarkSurvivesHistoryRemoval(t *testing.T) {
	ev := eggEvent("ent-1", "2024-02-01", false, "")
	records, err := ToggleTried(NewTable(), "eggs", "2024-01-15")
	require.NoError(t, err)

	records = ApplyAdd(records, ev)
	assert.Equal(t, "2024-02-01", *mustFind(t, records, "eggs").LastTried)

	records = ApplyDelete(records, ev)
	eggs := mustFind(t, records, "eggs")
	assert.True(t, eggs.Tried)
	assert.Equal(t, "2024-01-15", *eggs.LastTried)
}

func TestSetReactions(t *testing.T) {
	records, err := SetReactions(NewTable(), "fish", "mild redness around mouth")
	require.NoError(t, err)
	assert.Equal(t, "mild redness around mouth", mustFind(t, records, "fish").Reactions)

	_, err = SetReactions(records, "celery", "x")
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestStatusAndSummary(t *testing.T) {
	records := Derive([]domain.FeedingEvent{
		eggEvent("ent-1", "2024-02-01", true, "hives"),
		{ID: "ent-2", Date: "2024-02-02", Allergens: []string{"Wheat"}},
	})
	records, err := ToggleTried(records, "soy", "2024-02-03")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAllergic, Status(mustFind(t, records, "eggs")))
	assert.Equal(t, domain.StatusSafe, Status(mustFind(t, records, "wheat")))
	assert.Equal(t, domain.StatusUnknown, Status(mustFind(t, records, "soy")))
	assert.Equal(t, domain.StatusUntried, Status(mustFind(t, records, "fish")))

	assert.Equal(t, Summary{Tried: 3, Remaining: 5, Allergic: 1}, Summarize(records))
}

func TestRecognized(t *testing.T) {
	assert.True(t, Recognized("tree nuts"))
	assert.False(t, Recognized("Tree Nut"))
	assert.False(t, Recognized("sesame"))
}

func TestAnnotationsRoundTripThroughOverlay(t *testing.T) {
	records, err := ToggleTried(NewTable(), "soy", "2024-03-01")
	require.NoError(t, err)
	records, err = SetReactions(records, "fish", "red cheeks")
	require.NoError(t, err)

	notes := Annotations(records)
	require.Len(t, notes, 2)
	assert.Equal(t, "2024-03-01", *notes["soy"].MarkedOn)
	assert.Equal(t, "red cheeks", notes["fish"].Reactions)

	rebuilt := Overlay(Derive(nil), notes)
	if diff := cmp.Diff(records, rebuilt); diff != "" {
		t.Errorf("overlay differs (-want +got):\n%s", diff)
	}

	unknown := Overlay(NewTable(), map[string]domain.Annotation{"kiwi": {Reactions: "x"}})
	if diff := cmp.Diff(NewTable(), unknown); diff != "" {
		t.Errorf("unknown tag changed the table:\n%s", diff)
	}
}
