// Package supabase is the hosted account table for feeding entries, reached
// through the Supabase REST API.
package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/store"
)

// DefaultTable is the hosted table name.
const DefaultTable = "food_entries"

// Postgres unique_violation.
const uniqueViolation = "23505"

// Config holds the connection settings.
type Config struct {
	URL     string
	Key     string
	Table   string
	Breaker BreakerConfig
}

// Store implements store.RemoteStore against a Supabase project. Every call
// goes through a circuit breaker; an open breaker fails fast with
// store.ErrUnavailable.
type Store struct {
	client  *supa.Client
	table   string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

var _ store.RemoteStore = (*Store)(nil)

// entryRow is the wire shape of a food_entries row.
type entryRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	EntryDate   string    `json:"entry_date"`
	EntryTime   string    `json:"entry_time"`
	FoodName    string    `json:"food_name"`
	Preparation string    `json:"preparation"`
	Reaction    string    `json:"reaction"`
	HadReaction bool      `json:"had_reaction"`
	IsAllergen  bool      `json:"is_allergen"`
	Notes       string    `json:"notes"`
	Allergens   []string  `json:"allergens"`
	CreatedAt   time.Time `json:"created_at"`
}

func toRow(owner string, ev domain.FeedingEvent) entryRow {
	allergens := ev.Allergens
	if allergens == nil {
		allergens = []string{}
	}
	return entryRow{
		ID:          ev.ID,
		UserID:      owner,
		EntryDate:   ev.Date,
		EntryTime:   ev.Time,
		FoodName:    ev.FoodName,
		Preparation: ev.Preparation,
		Reaction:    string(ev.Reaction),
		HadReaction: ev.HadReaction,
		IsAllergen:  ev.IsAllergen,
		Notes:       ev.Notes,
		Allergens:   allergens,
		CreatedAt:   ev.CreatedAt.UTC(),
	}
}

func (r entryRow) toEvent() domain.FeedingEvent {
	allergens := r.Allergens
	if allergens == nil {
		allergens = []string{}
	}
	return domain.FeedingEvent{
		ID:          r.ID,
		Date:        r.EntryDate,
		Time:        r.EntryTime,
		FoodName:    r.FoodName,
		Preparation: r.Preparation,
		Reaction:    domain.Reaction(r.Reaction),
		HadReaction: r.HadReaction,
		IsAllergen:  r.IsAllergen,
		Notes:       r.Notes,
		Allergens:   allergens,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// New creates a Supabase-backed store. No request is made until first use.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client, err := supa.NewClient(strings.TrimSuffix(cfg.URL, "/"), cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	logger.Info("Account store configured", "backend", "supabase", "table", cfg.Table)
	return &Store{
		client:  client,
		table:   cfg.Table,
		breaker: newBreaker("supabase:"+cfg.Table, cfg.Breaker, logger),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Name identifies the backend.
func (s *Store) Name() string { return "supabase" }

// Close is a no-op; the REST client holds no connections of its own.
func (s *Store) Close() error { return nil }

// Add inserts one row and returns it as stored.
func (s *Store) Add(ctx context.Context, owner string, event domain.FeedingEvent) (domain.FeedingEvent, error) {
	stored, err := store.Stamp(event, s.now())
	if err != nil {
		return domain.FeedingEvent{}, err
	}
	rows, err := s.insert(ctx, []entryRow{toRow(owner, stored)})
	if err != nil {
		return domain.FeedingEvent{}, err
	}
	if len(rows) == 1 {
		return rows[0].toEvent(), nil
	}
	return stored, nil
}

// AddBatch inserts every event in one request.
func (s *Store) AddBatch(ctx context.Context, owner string, events []domain.FeedingEvent) ([]domain.FeedingEvent, error) {
	if len(events) == 0 {
		return []domain.FeedingEvent{}, nil
	}

	now := s.now()
	rows := make([]entryRow, 0, len(events))
	stored := make([]domain.FeedingEvent, 0, len(events))
	for _, ev := range events {
		ev, err := store.Stamp(ev, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, toRow(owner, ev))
		stored = append(stored, ev)
	}

	if _, err := s.insert(ctx, rows); err != nil {
		return nil, err
	}
	s.logger.Debug("Inserted entry batch", "owner", owner, "count", len(stored))
	return stored, nil
}

func (s *Store) insert(ctx context.Context, rows []entryRow) ([]entryRow, error) {
	var out []entryRow
	err := s.do(ctx, "insert", func() error {
		_, err := s.client.From(s.table).
			Insert(rows, false, "", "representation", "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}

// Update replaces the row with event.ID owned by owner.
func (s *Store) Update(ctx context.Context, owner string, event domain.FeedingEvent) error {
	row := toRow(owner, event)
	patch := map[string]any{
		"entry_date":   row.EntryDate,
		"entry_time":   row.EntryTime,
		"food_name":    row.FoodName,
		"preparation":  row.Preparation,
		"reaction":     row.Reaction,
		"had_reaction": row.HadReaction,
		"is_allergen":  row.IsAllergen,
		"notes":        row.Notes,
		"allergens":    row.Allergens,
	}

	var out []entryRow
	err := s.do(ctx, "update", func() error {
		_, err := s.client.From(s.table).
			Update(patch, "representation", "").
			Eq("id", event.ID).
			Eq("user_id", owner).
			ExecuteTo(&out)
		return err
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return store.ErrNotFound.WithMessage(fmt.Sprintf("entry %s not found", event.ID))
	}
	return nil
}

// Remove deletes the row with id owned by owner.
func (s *Store) Remove(ctx context.Context, owner, id string) error {
	var out []entryRow
	err := s.do(ctx, "delete", func() error {
		_, err := s.client.From(s.table).
			Delete("representation", "").
			Eq("id", id).
			Eq("user_id", owner).
			ExecuteTo(&out)
		return err
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return store.ErrNotFound.WithMessage(fmt.Sprintf("entry %s not found", id))
	}
	return nil
}

// List returns the owner's rows, newest date and time first.
func (s *Store) List(ctx context.Context, owner string) ([]domain.FeedingEvent, error) {
	var rows []entryRow
	err := s.do(ctx, "select", func() error {
		_, err := s.client.From(s.table).
			Select("*", "", false).
			Eq("user_id", owner).
			Order("entry_date", &postgrest.OrderOpts{Ascending: false}).
			Order("entry_time", &postgrest.OrderOpts{Ascending: false}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	events := make([]domain.FeedingEvent, len(rows))
	for i, r := range rows {
		events[i] = r.toEvent()
	}
	// The server orders by date; time breaks ties here.
	domain.SortNewestFirst(events)
	return events, nil
}

// Ping issues a one-row select.
func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func() error {
		_, _, err := s.client.From(s.table).
			Select("id", "", false).
			Limit(1, "").
			Execute()
		return err
	})
}

// do runs fn through the breaker and classifies its error.
func (s *Store) do(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, classify(fn())
	})
	if err != nil {
		s.logger.Debug("Supabase call failed", "op", op, "error", err)
		return breakerError(err)
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), uniqueViolation) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return store.ErrUnavailable.WithCause(err)
}
