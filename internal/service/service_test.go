package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/sse"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/store"
	"github.com/nibbleapp/nibble-server/internal/store/sqlite"
	"github.com/nibbleapp/nibble-server/internal/validation"
)

const (
	testGuestID   = "3b0f8f7e-5d1c-4a57-9a0e-0d6f4c7d2a11"
	testAccountID = "acct-1"
)

type testEnv struct {
	entries  *EntryService
	allergen *AllergenService
	diary    *DiaryService
	guests   *store.Store
	accounts *sqlite.Store
	states   *state.Store
	metrics  *metrics.Collector
	sse      *sse.Manager
}

// failingRemote rejects batch inserts and otherwise delegates.
type failingRemote struct {
	store.RemoteStore
}

func (f failingRemote) AddBatch(context.Context, string, []domain.FeedingEvent) ([]domain.FeedingEvent, error) {
	return nil, store.ErrUnavailable.WithMessage("remote down")
}

func setupTestServices(t *testing.T, wrap func(store.RemoteStore) store.RemoteStore) *testEnv {
	t.Helper()

	log := logger.Discard().Logger
	dir := t.TempDir()

	guests, err := store.New(filepath.Join(dir, "guests"), log)
	require.NoError(t, err)
	t.Cleanup(func() { guests.Close() })

	accounts, err := sqlite.Open(filepath.Join(dir, "entries.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { accounts.Close() })

	var remote store.RemoteStore = accounts
	if wrap != nil {
		remote = wrap(accounts)
	}

	m := metrics.NewCollector()
	backends := Backends{Guests: guests, Accounts: remote}
	states := state.NewStore(backends.StateLoader(m))
	manager := sse.NewManager(log)
	v := validation.New()

	return &testEnv{
		entries:  NewEntryService(backends, states, catalog.Default(), v, manager, m, log, 0),
		allergen: NewAllergenService(states, guests, manager, log),
		diary:    NewDiaryService(states, v),
		guests:   guests,
		accounts: accounts,
		states:   states,
		metrics:  m,
		sse:      manager,
	}
}

func input(date, tm, food string) EntryInput {
	return EntryInput{Date: date, Time: tm, FoodName: food, Reaction: domain.ReactionLiked}
}

func mustCreate(t *testing.T, svc *EntryService, session domain.Session, in EntryInput) domain.FeedingEvent {
	t.Helper()
	ev, err := svc.Create(context.Background(), session, in)
	require.NoError(t, err)
	return ev
}

var errBoom = errors.New("boom")
