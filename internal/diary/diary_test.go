package diary

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

func ev(id, date, food string, reacted bool) domain.FeedingEvent {
	return domain.FeedingEvent{ID: id, Date: date, Time: "12:00", FoodName: food, Reaction: domain.ReactionLiked, HadReaction: reacted}
}

func TestDay(t *testing.T) {
	events := []domain.FeedingEvent{
		ev("1", "2024-01-20", "Pea", false),
		ev("2", "2024-01-19", "Carrot", false),
		ev("3", "2024-01-20", "Egg", true),
	}

	tests := []struct {
		date string
		want []string
	}{
		{"2024-01-20", []string{"1", "3"}},
		{"2024-01-19", []string{"2"}},
		{"2024-01-01", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got := Day(events, tt.date)
			require.NotNil(t, got)
			ids := []string{}
			for _, e := range got {
				assert.Equal(t, tt.date, e.Date)
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestWindowStart(t *testing.T) {
	start, err := WindowStart("2024-01-20")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-14", start)

	start, err = WindowStart("2024-03-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-26", start, "crosses a leap-year February")

	_, err = WindowStart("20/01/2024")
	assert.Error(t, err)
}

func TestSummarize_NewFoodInWindow(t *testing.T) {
	events := []domain.FeedingEvent{
		ev("1", "2024-01-14", "Pea", false),
		ev("2", "2024-01-20", "Pea", false),
	}

	week, err := Summarize(events, "2024-01-20")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-14", week.Start)
	assert.Equal(t, "2024-01-20", week.End)
	assert.Equal(t, []string{"Pea"}, week.NewFoods)
	assert.Equal(t, 2, week.TotalMeals)
}

func TestSummarize_FirstEverBeforeWindowExcludesFood(t *testing.T) {
	events := []domain.FeedingEvent{
		ev("1", "2024-01-14", "Pea", false),
		ev("2", "2024-01-20", "Pea", false),
		ev("3", "2024-01-01", "pea", false),
	}

	week, err := Summarize(events, "2024-01-20")
	require.NoError(t, err)

	assert.NotContains(t, week.NewFoods, "Pea")
	assert.Empty(t, week.NewFoods)
	assert.Equal(t, 2, week.TotalMeals, "the out-of-window event is not counted")
}

func TestSummarize_Counts(t *testing.T) {
	events := []domain.FeedingEvent{
		ev("1", "2024-01-13", "Rice", true), // day before the window
		ev("2", "2024-01-14", "Egg", true),
		ev("3", "2024-01-15", "Banana", false),
		ev("4", "2024-01-15", "Avocado", false),
		ev("5", "2024-01-20", "Salmon", true),
		ev("6", "2024-01-21", "Kiwi", true), // day after the reference
	}
	events[3].Reaction = domain.ReactionDisliked

	week, err := Summarize(events, "2024-01-20")
	require.NoError(t, err)

	want := Week{
		Start:             "2024-01-14",
		End:               "2024-01-20",
		NewFoods:          []string{"Avocado", "Banana", "Egg", "Salmon"},
		TotalMeals:        4,
		AllergicReactions: 2,
		DaysLogged:        3,
		Reactions: map[domain.Reaction]int{
			domain.ReactionLiked:    3,
			domain.ReactionDisliked: 1,
		},
	}
	if diff := cmp.Diff(want, week); diff != "" {
		t.Errorf("week mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_EmptyLog(t *testing.T) {
	week, err := Summarize(nil, "2024-01-20")
	require.NoError(t, err)

	assert.NotNil(t, week.NewFoods)
	assert.Zero(t, week.TotalMeals)
	assert.Zero(t, week.AllergicReactions)
}

func TestSummarize_BadReference(t *testing.T) {
	_, err := Summarize(nil, "yesterday")
	assert.Error(t, err)
}
