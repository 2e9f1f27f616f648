// Package store defines the feeding-event persistence capability and the
// badger-backed guest store.
package store

import (
	"context"
	"time"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/id"
)

// EntryStore persists feeding events for one owner at a time. The owner is
// a guest ID for the local store and an account ID for remote stores; the
// caller holding the session picks which store to use.
type EntryStore interface {
	// Add assigns an ID (when empty) and CreatedAt, persists the event and
	// returns the stored record.
	Add(ctx context.Context, owner string, event domain.FeedingEvent) (domain.FeedingEvent, error)
	// Update replaces the event with the same ID. ErrNotFound if unknown.
	Update(ctx context.Context, owner string, event domain.FeedingEvent) error
	// Remove deletes the event with the given ID. ErrNotFound if unknown.
	Remove(ctx context.Context, owner, id string) error
	// List returns the owner's events, newest date and time first.
	List(ctx context.Context, owner string) ([]domain.FeedingEvent, error)
}

// RemoteStore is an account table. AddBatch inserts every event in one
// request or transaction, used when migrating guest data.
type RemoteStore interface {
	EntryStore
	AddBatch(ctx context.Context, owner string, events []domain.FeedingEvent) ([]domain.FeedingEvent, error)
	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Stamp fills in the ID and creation time for a new event.
func Stamp(event domain.FeedingEvent, now time.Time) (domain.FeedingEvent, error) {
	if event.ID == "" {
		entryID, err := id.NewEntryID()
		if err != nil {
			return domain.FeedingEvent{}, err
		}
		event.ID = entryID
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now.UTC()
	}
	if event.Allergens == nil {
		event.Allergens = []string{}
	}
	return event, nil
}
