package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
)

func TestDiaryService(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)

	mustCreate(t, env.entries, guest, input("2024-02-20", "08:00", "Banana"))
	mustCreate(t, env.entries, guest, input("2024-03-01", "08:00", "Egg"))
	reacted := input("2024-03-02", "12:00", "Salmon")
	reacted.HadReaction = true
	mustCreate(t, env.entries, guest, reacted)
	mustCreate(t, env.entries, guest, input("2024-03-02", "18:00", "banana"))

	day, err := env.diary.Day(ctx, guest, "2024-03-02")
	require.NoError(t, err)
	assert.Len(t, day.Entries, 2)

	empty, err := env.diary.Day(ctx, guest, "2024-01-01")
	require.NoError(t, err)
	assert.NotNil(t, empty.Entries)
	assert.Empty(t, empty.Entries)

	week, err := env.diary.Week(ctx, guest, "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-25", week.Start)
	assert.Equal(t, []string{"Egg", "Salmon"}, week.NewFoods)
	assert.Equal(t, 3, week.TotalMeals)
	assert.Equal(t, 1, week.AllergicReactions)

	_, err = env.diary.Week(ctx, guest, "yesterday")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	_, err = env.diary.Day(ctx, guest, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
