package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// Store wraps a Badger database holding guest slots. It implements
// EntryStore with the guest ID as owner.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ EntryStore = (*Store)(nil)

// Slot is everything stored for one guest.
type Slot struct {
	Entries []domain.FeedingEvent `json:"entries"`
	Count   int                   `json:"count"`
}

// New opens (or creates) the guest store at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// OpenReadOnly opens an existing guest store without taking the write lock,
// for inspection tools.
func OpenReadOnly(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ReadOnly = true
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger != nil {
		logger.Info("Guest store opened", "path", opts.Dir, "read_only", opts.ReadOnly)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing guest store")
	}
	return s.db.Close()
}

// Add prepends event to the guest's list and increments the guest counter
// in one transaction.
func (s *Store) Add(ctx context.Context, guestID string, event domain.FeedingEvent) (domain.FeedingEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedingEvent{}, err
	}
	stored, err := Stamp(event, s.now())
	if err != nil {
		return domain.FeedingEvent{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entries, err := readEntries(txn, guestID)
		if err != nil {
			return err
		}
		count, err := readCount(txn, guestID)
		if err != nil {
			return err
		}
		entries = slices.Insert(entries, 0, stored)
		if err := writeEntries(txn, guestID, entries); err != nil {
			return err
		}
		return writeCount(txn, guestID, count+1)
	})
	if err != nil {
		return domain.FeedingEvent{}, fmt.Errorf("add guest entry: %w", err)
	}
	return stored, nil
}

// Update replaces the guest entry with event.ID.
func (s *Store) Update(ctx context.Context, guestID string, event domain.FeedingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entries, err := readEntries(txn, guestID)
		if err != nil {
			return err
		}
		i := indexOf(entries, event.ID)
		if i < 0 {
			return ErrNotFound.WithMessage(fmt.Sprintf("entry %s not found", event.ID))
		}
		if event.Allergens == nil {
			event.Allergens = []string{}
		}
		entries[i] = event
		return writeEntries(txn, guestID, entries)
	})
}

// Remove deletes the guest entry with id. The counter is left untouched: it
// counts entries ever logged.
func (s *Store) Remove(ctx context.Context, guestID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entries, err := readEntries(txn, guestID)
		if err != nil {
			return err
		}
		i := indexOf(entries, id)
		if i < 0 {
			return ErrNotFound.WithMessage(fmt.Sprintf("entry %s not found", id))
		}
		return writeEntries(txn, guestID, slices.Delete(entries, i, i+1))
	})
}

// List returns the guest's entries, newest first.
func (s *Store) List(ctx context.Context, guestID string) ([]domain.FeedingEvent, error) {
	slot, err := s.Slot(ctx, guestID)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(slot.Entries)
	return slot.Entries, nil
}

// Count returns how many entries the guest has logged.
func (s *Store) Count(ctx context.Context, guestID string) (int, error) {
	slot, err := s.Slot(ctx, guestID)
	if err != nil {
		return 0, err
	}
	return slot.Count, nil
}

// Slot reads the entry list and counter together. A guest with no data gets
// an empty slot.
func (s *Store) Slot(ctx context.Context, guestID string) (Slot, error) {
	if err := ctx.Err(); err != nil {
		return Slot{}, err
	}
	var slot Slot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if slot.Entries, err = readEntries(txn, guestID); err != nil {
			return err
		}
		slot.Count, err = readCount(txn, guestID)
		return err
	})
	if err != nil {
		return Slot{}, fmt.Errorf("read guest slot: %w", err)
	}
	return slot, nil
}

// Clear empties the guest's entry list and resets the counter to zero.
func (s *Store) Clear(ctx context.Context, guestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(entriesKey(guestID)); err != nil {
			return err
		}
		return writeCount(txn, guestID, 0)
	})
}

// Exists reports whether the guest has ever stored anything.
func (s *Store) Exists(ctx context.Context, guestID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(countKey(guestID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Guests lists every guest ID with a slot.
func (s *Store) Guests(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(guestPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if guestID, ok := strings.CutSuffix(key[len(guestPrefix):], countSuffix); ok {
				ids = append(ids, guestID)
			}
		}
		return nil
	})
	return ids, err
}

func readEntries(txn *badger.Txn, guestID string) ([]domain.FeedingEvent, error) {
	entries := []domain.FeedingEvent{}
	item, err := txn.Get(entriesKey(guestID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entries)
	})
	return entries, err
}

func writeEntries(txn *badger.Txn, guestID string, entries []domain.FeedingEvent) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	return txn.Set(entriesKey(guestID), data)
}

func readCount(txn *badger.Txn, guestID string) (int, error) {
	item, err := txn.Get(countKey(guestID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		count, err = strconv.Atoi(string(val))
		return err
	})
	return count, err
}

func writeCount(txn *badger.Txn, guestID string, count int) error {
	return txn.Set(countKey(guestID), []byte(strconv.Itoa(count)))
}

func indexOf(entries []domain.FeedingEvent, id string) int {
	return slices.IndexFunc(entries, func(e domain.FeedingEvent) bool {
		return e.ID == id
	})
}
