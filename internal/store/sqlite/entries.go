package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/store"
)

// entryColumns is the ordered list of columns selected in food_entries queries.
const entryColumns = `id, entry_date, entry_time, food_name, preparation, reaction,
	had_reaction, is_allergen, notes, allergens, created_at`

const insertEntrySQL = `
	INSERT INTO food_entries (
		id, user_id, entry_date, entry_time, food_name, preparation, reaction,
		had_reaction, is_allergen, notes, allergens, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanEntry scans a sql.Row (or sql.Rows via its Scan method) into a domain.FeedingEvent.
func scanEntry(scanner interface{ Scan(dest ...any) error }) (domain.FeedingEvent, error) {
	var (
		ev        domain.FeedingEvent
		reaction  string
		allergens string
		createdAt string
	)

	err := scanner.Scan(
		&ev.ID,
		&ev.Date,
		&ev.Time,
		&ev.FoodName,
		&ev.Preparation,
		&reaction,
		&ev.HadReaction,
		&ev.IsAllergen,
		&ev.Notes,
		&allergens,
		&createdAt,
	)
	if err != nil {
		return domain.FeedingEvent{}, err
	}

	ev.Reaction = domain.Reaction(reaction)
	if err := json.Unmarshal([]byte(allergens), &ev.Allergens); err != nil {
		return domain.FeedingEvent{}, fmt.Errorf("decode allergens for %s: %w", ev.ID, err)
	}
	if ev.Allergens == nil {
		ev.Allergens = []string{}
	}
	ev.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return domain.FeedingEvent{}, err
	}
	return ev, nil
}

func insertEntry(ctx context.Context, db execer, owner string, ev domain.FeedingEvent) error {
	allergens, err := json.Marshal(ev.Allergens)
	if err != nil {
		return fmt.Errorf("encode allergens: %w", err)
	}
	_, err = db.ExecContext(ctx, insertEntrySQL,
		ev.ID,
		owner,
		ev.Date,
		ev.Time,
		ev.FoodName,
		ev.Preparation,
		string(ev.Reaction),
		ev.HadReaction,
		ev.IsAllergen,
		ev.Notes,
		string(allergens),
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage(fmt.Sprintf("entry %s already exists", ev.ID))
		}
		return err
	}
	return nil
}

// Add inserts a new entry for the account.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) Add(ctx context.Context, owner string, event domain.FeedingEvent) (domain.FeedingEvent, error) {
	stored, err := store.Stamp(event, s.now())
	if err != nil {
		return domain.FeedingEvent{}, err
	}
	if err := insertEntry(ctx, s.db, owner, stored); err != nil {
		return domain.FeedingEvent{}, err
	}
	return stored, nil
}

// AddBatch inserts every event in a single transaction. Either all rows land
// or none do.
func (s *Store) AddBatch(ctx context.Context, owner string, events []domain.FeedingEvent) ([]domain.FeedingEvent, error) {
	if len(events) == 0 {
		return []domain.FeedingEvent{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	stored := make([]domain.FeedingEvent, 0, len(events))
	for _, ev := range events {
		ev, err := store.Stamp(ev, now)
		if err != nil {
			return nil, err
		}
		if err := insertEntry(ctx, tx, owner, ev); err != nil {
			return nil, err
		}
		stored = append(stored, ev)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	s.logger.Debug("Inserted entry batch", "owner", owner, "count", len(stored))
	return stored, nil
}

// Update replaces the entry with event.ID.
// Returns store.ErrNotFound if the account has no such entry.
func (s *Store) Update(ctx context.Context, owner string, event domain.FeedingEvent) error {
	allergens, err := json.Marshal(event.Allergens)
	if err != nil {
		return fmt.Errorf("encode allergens: %w", err)
	}
	if event.Allergens == nil {
		allergens = []byte("[]")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE food_entries SET
			entry_date = ?, entry_time = ?, food_name = ?, preparation = ?,
			reaction = ?, had_reaction = ?, is_allergen = ?, notes = ?, allergens = ?
		WHERE id = ? AND user_id = ?`,
		event.Date,
		event.Time,
		event.FoodName,
		event.Preparation,
		string(event.Reaction),
		event.HadReaction,
		event.IsAllergen,
		event.Notes,
		string(allergens),
		event.ID,
		owner,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, event.ID)
}

// Remove deletes the entry with id.
// Returns store.ErrNotFound if the account has no such entry.
func (s *Store) Remove(ctx context.Context, owner, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM food_entries WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return err
	}
	return expectOneRow(result, id)
}

// List returns the account's entries ordered by date then time, newest first.
func (s *Store) List(ctx context.Context, owner string) ([]domain.FeedingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM food_entries
		WHERE user_id = ?
		ORDER BY entry_date DESC, entry_time DESC, created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.FeedingEvent{}
	for rows.Next() {
		ev, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ev)
	}
	return entries, rows.Err()
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage(fmt.Sprintf("entry %s not found", id))
	}
	return nil
}
