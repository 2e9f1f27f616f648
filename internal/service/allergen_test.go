package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
)

func TestAllergenService_Dashboard(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)

	mustCreate(t, env.entries, guest, input("2024-03-01", "08:00", "Egg"))
	reacted := input("2024-03-02", "08:00", "Peanut")
	reacted.HadReaction = true
	mustCreate(t, env.entries, guest, reacted)

	dash, err := env.allergen.Dashboard(ctx, guest)
	require.NoError(t, err)
	require.Len(t, dash.Allergens, len(domain.RecognizedAllergens))

	statuses := map[string]domain.AllergenStatus{}
	for _, v := range dash.Allergens {
		statuses[v.Tag] = v.Status
	}
	assert.Equal(t, domain.StatusSafe, statuses["eggs"])
	assert.Equal(t, domain.StatusAllergic, statuses["peanuts"])
	assert.Equal(t, domain.StatusUntried, statuses["soy"])

	assert.Equal(t, 2, dash.Summary.Tried)
	assert.Equal(t, 6, dash.Summary.Remaining)
	assert.Equal(t, 1, dash.Summary.Allergic)
}

func TestAllergenService_ToggleTried(t *testing.T) {
	env := setupTestServices(t, nil)
	env.allergen.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)

	v, err := env.allergen.ToggleTried(ctx, guest, "Soy")
	require.NoError(t, err)
	assert.True(t, v.Tried)
	assert.Equal(t, domain.StatusUnknown, v.Status)
	require.NotNil(t, v.LastTried)
	assert.Equal(t, "2024-03-05", *v.LastTried)

	// The mark survives a reload from storage.
	env.states.Forget(guest)
	dash, err := env.allergen.Dashboard(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Summary.Tried)

	v, err = env.allergen.ToggleTried(ctx, guest, "soy")
	require.NoError(t, err)
	assert.False(t, v.Tried)
	assert.Equal(t, domain.StatusUntried, v.Status)

	notes, err := env.guests.Annotations(ctx, guest.Key())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestAllergenService_ToggleTriedErrors(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)

	_, err := env.allergen.ToggleTried(ctx, guest, "kiwi")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	mustCreate(t, env.entries, guest, input("2024-03-01", "08:00", "Egg"))
	_, err = env.allergen.ToggleTried(ctx, guest, "eggs")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
}

func TestAllergenService_SaveReactions(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	account := domain.AccountSession(testAccountID)

	v, err := env.allergen.SaveReactions(ctx, account, "Tree Nut", "  mild rash  ")
	require.NoError(t, err)
	assert.Equal(t, "tree nuts", v.Tag)
	assert.Equal(t, "mild rash", v.Reactions)

	env.states.Forget(account)
	st, err := env.states.Get(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "mild rash", st.Allergens[3].Reactions)

	_, err = env.allergen.SaveReactions(ctx, account, "milk", strings.Repeat("x", 2001))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAllergenService_ReactionsSurviveMigration(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)

	mustCreate(t, env.entries, guest, input("2024-03-01", "08:00", "Egg"))
	_, err := env.allergen.SaveReactions(ctx, guest, "eggs", "fine")
	require.NoError(t, err)

	_, err = env.entries.Migrate(ctx, testGuestID, testAccountID)
	require.NoError(t, err)

	st, err := env.states.Get(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, st.Entries)
	assert.Equal(t, "fine", st.Allergens[0].Reactions)

	st, err = env.states.Get(ctx, domain.AccountSession(testAccountID))
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, "fine", st.Allergens[0].Reactions)
	assert.True(t, st.Allergens[0].Tried)
}

func TestAllergenService_MigrationKeepsAccountNotes(t *testing.T) {
	env := setupTestServices(t, nil)
	ctx := context.Background()
	guest := domain.GuestSession(testGuestID)
	account := domain.AccountSession(testAccountID)

	_, err := env.allergen.SaveReactions(ctx, account, "eggs", "account note")
	require.NoError(t, err)

	mustCreate(t, env.entries, guest, input("2024-03-01", "08:00", "Egg"))
	_, err = env.allergen.SaveReactions(ctx, guest, "eggs", "guest note")
	require.NoError(t, err)
	_, err = env.allergen.SaveReactions(ctx, guest, "milk", "guest milk")
	require.NoError(t, err)

	_, err = env.entries.Migrate(ctx, testGuestID, testAccountID)
	require.NoError(t, err)

	notes, err := env.guests.Annotations(ctx, account.Key())
	require.NoError(t, err)
	assert.Equal(t, "account note", notes["eggs"].Reactions)
	assert.Equal(t, "guest milk", notes["milk"].Reactions)
}
