package service

import (
	"context"
	"errors"
	"time"

	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/store"
)

// guestBackend names the badger guest store in logs and metrics.
const guestBackend = "badger"

// Backends routes a session to the store that owns its entries. Guests
// live in the badger store; accounts live in the remote table. The badger
// store also keeps allergen annotations for both kinds of session.
type Backends struct {
	Guests   *store.Store
	Accounts store.RemoteStore // nil when no account table is configured
}

// entries returns the store and backend name serving session.
func (b Backends) entries(session domain.Session) (store.EntryStore, string, error) {
	if session.IsGuest() {
		return b.Guests, guestBackend, nil
	}
	if b.Accounts == nil {
		return nil, "", domainerrors.Unavailable("account storage is not configured")
	}
	return b.Accounts, b.Accounts.Name(), nil
}

// StateLoader returns a state.Loader reading a session's entries from its
// backend and overlaying the saved allergen annotations.
func (b Backends) StateLoader(m *metrics.Collector) state.Loader {
	return func(ctx context.Context, session domain.Session) (state.State, error) {
		entries, backend, err := b.entries(session)
		if err != nil {
			return state.State{}, err
		}

		start := time.Now()
		list, err := entries.List(ctx, session.ID)
		observe(m, backend, "list", start, err)
		if err != nil {
			return state.State{}, storeError(err, "load entries")
		}

		notes, err := b.Guests.Annotations(ctx, session.Key())
		if err != nil {
			return state.State{}, storeError(err, "load allergen notes")
		}

		return state.Reduce(state.Empty(), state.Loaded{Entries: list, Annotations: notes})
	}
}

// storeError translates store sentinels into coded domain errors.
// Context errors pass through untouched.
func storeError(err error, action string) error {
	var domainErr *domainerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound("entry not found").WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.Conflict("entry already exists").WithCause(err)
	case errors.Is(err, store.ErrUnavailable):
		return domainerrors.Unavailable("entry storage is unavailable").WithCause(err)
	case errors.As(err, &domainErr):
		return err
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, action)
	}
}

// observe records one store call. A nil collector records nothing.
func observe(m *metrics.Collector, backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, store.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	m.RecordStoreOperation(backend, op, outcome, time.Since(start))
}
