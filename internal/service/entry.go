package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nibbleapp/nibble-server/internal/allergen"
	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
	"github.com/nibbleapp/nibble-server/internal/id"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/sse"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/validation"
)

// DefaultSavePromptThreshold is the guest entry count at which clients are
// told to offer account creation.
const DefaultSavePromptThreshold = 3

// EntryInput is the feeding form. It is validated before anything reaches
// a store.
type EntryInput struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string          `json:"time" validate:"required,datetime=15:04"`
	FoodName    string          `json:"food_name" validate:"notblank,max=100"`
	Preparation string          `json:"preparation,omitempty" validate:"max=50"`
	Reaction    domain.Reaction `json:"baby_reaction" validate:"required,oneof=disliked mixed liked loved"`
	HadReaction bool            `json:"had_reaction"`
	Notes       string          `json:"notes,omitempty" validate:"max=2000"`
}

func (in EntryInput) trimmed() EntryInput {
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.FoodName = strings.TrimSpace(in.FoodName)
	in.Preparation = strings.TrimSpace(in.Preparation)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

// MigrationResult reports a guest to account migration.
type MigrationResult struct {
	GuestID   string                `json:"guest_id"`
	AccountID string                `json:"account_id"`
	Migrated  int                   `json:"migrated"`
	Entries   []domain.FeedingEvent `json:"entries"`
}

// Progress is a guest's logging counter and whether to suggest saving.
type Progress struct {
	GuestID          string `json:"guest_id"`
	Count            int    `json:"count"`
	Threshold        int    `json:"threshold"`
	ShouldPromptSave bool   `json:"should_prompt_save"`
}

// EntryService orchestrates feeding entry CRUD across the guest and account
// stores, keeps session state current and emits change events.
type EntryService struct {
	backends   Backends
	states     *state.Store
	catalog    *catalog.Catalog
	validator  *validation.Validator
	sseManager *sse.Manager
	metrics    *metrics.Collector
	logger     *slog.Logger
	threshold  int
}

// NewEntryService creates a new entry service. A non-positive threshold
// falls back to DefaultSavePromptThreshold.
func NewEntryService(
	backends Backends,
	states *state.Store,
	cat *catalog.Catalog,
	v *validation.Validator,
	sseManager *sse.Manager,
	m *metrics.Collector,
	logger *slog.Logger,
	threshold int,
) *EntryService {
	if threshold < 1 {
		threshold = DefaultSavePromptThreshold
	}
	return &EntryService{
		backends:   backends,
		states:     states,
		catalog:    cat,
		validator:  v,
		sseManager: sseManager,
		metrics:    m,
		logger:     logger,
		threshold:  threshold,
	}
}

// NewGuest issues a fresh guest session ID. Nothing is stored until the
// guest logs a first entry.
func (s *EntryService) NewGuest() domain.Session {
	guest := domain.GuestSession(id.NewGuestID())
	if s.metrics != nil {
		s.metrics.GuestsCreated.Inc()
	}
	s.logger.Info("guest session issued", "guest_id", guest.ID)
	return guest
}

// List returns the session's entries, newest first.
func (s *EntryService) List(ctx context.Context, session domain.Session) ([]domain.FeedingEvent, error) {
	st, err := s.states.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.Entries), nil
}

// Create validates and logs a feeding.
func (s *EntryService) Create(ctx context.Context, session domain.Session, in EntryInput) (domain.FeedingEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedingEvent{}, err
	}

	in = in.trimmed()
	if err := s.validator.Validate(in); err != nil {
		return domain.FeedingEvent{}, err
	}

	entries, backend, err := s.backends.entries(session)
	if err != nil {
		return domain.FeedingEvent{}, err
	}

	event := s.withAllergens(domain.FeedingEvent{
		Date:        in.Date,
		Time:        in.Time,
		FoodName:    in.FoodName,
		Preparation: in.Preparation,
		Reaction:    in.Reaction,
		HadReaction: in.HadReaction,
		Notes:       in.Notes,
	})

	start := time.Now()
	stored, err := entries.Add(ctx, session.ID, event)
	observe(s.metrics, backend, "add", start, err)
	if err != nil {
		s.logger.Error("failed to create entry",
			"session", session.Key(),
			"backend", backend,
			"error", err,
		)
		return domain.FeedingEvent{}, storeError(err, "create entry")
	}

	st, cached := s.dispatch(session, state.EntryAdded{Entry: stored})
	if s.metrics != nil {
		s.metrics.EntriesLogged.WithLabelValues(string(session.Kind)).Inc()
	}

	s.logger.Info("entry created",
		"entry_id", stored.ID,
		"session", session.Key(),
		"food", stored.FoodName,
		"is_allergen", stored.IsAllergen,
	)

	s.sseManager.Emit(sse.NewEntryCreatedEvent(session.Key(), stored))
	if cached {
		s.emitAllergens(session, st, stored.Allergens)
	}

	return stored, nil
}

// Update replaces an entry's fields. Allergens are derived again only when
// the food name changes.
func (s *EntryService) Update(ctx context.Context, session domain.Session, entryID string, in EntryInput) (domain.FeedingEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedingEvent{}, err
	}

	in = in.trimmed()
	if err := s.validator.Validate(in); err != nil {
		return domain.FeedingEvent{}, err
	}
	if strings.TrimSpace(entryID) == "" {
		return domain.FeedingEvent{}, domainerrors.Validation("entry id is required")
	}

	entries, backend, err := s.backends.entries(session)
	if err != nil {
		return domain.FeedingEvent{}, err
	}

	current, err := s.states.Get(ctx, session)
	if err != nil {
		return domain.FeedingEvent{}, err
	}
	before, known := findEntry(current.Entries, entryID)

	after := before
	after.ID = entryID
	after.Date = in.Date
	after.Time = in.Time
	after.FoodName = in.FoodName
	after.Preparation = in.Preparation
	after.Reaction = in.Reaction
	after.HadReaction = in.HadReaction
	after.Notes = in.Notes
	if !known || !strings.EqualFold(before.FoodName, after.FoodName) {
		after = s.withAllergens(after)
	}

	start := time.Now()
	err = entries.Update(ctx, session.ID, after)
	observe(s.metrics, backend, "update", start, err)
	if err != nil {
		return domain.FeedingEvent{}, storeError(err, "update entry")
	}

	if !known {
		// The store had an entry the cached state did not.
		s.states.Forget(session)
		s.sseManager.Emit(sse.NewEntryUpdatedEvent(session.Key(), after))
		return after, nil
	}

	st, cached := s.dispatch(session, state.EntryUpdated{Before: before, After: after})

	s.logger.Info("entry updated",
		"entry_id", entryID,
		"session", session.Key(),
	)

	s.sseManager.Emit(sse.NewEntryUpdatedEvent(session.Key(), after))
	if cached {
		s.emitAllergens(session, st, append(slices.Clone(before.Allergens), after.Allergens...))
	}

	return after, nil
}

// Delete removes an entry.
func (s *EntryService) Delete(ctx context.Context, session domain.Session, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, backend, err := s.backends.entries(session)
	if err != nil {
		return err
	}

	current, err := s.states.Get(ctx, session)
	if err != nil {
		return err
	}
	before, known := findEntry(current.Entries, entryID)

	start := time.Now()
	err = entries.Remove(ctx, session.ID, entryID)
	observe(s.metrics, backend, "remove", start, err)
	if err != nil {
		return storeError(err, "delete entry")
	}

	s.logger.Info("entry deleted",
		"entry_id", entryID,
		"session", session.Key(),
	)
	s.sseManager.Emit(sse.NewEntryDeletedEvent(session.Key(), entryID))

	if !known {
		s.states.Forget(session)
		return nil
	}
	if st, cached := s.dispatch(session, state.EntryRemoved{Entry: before}); cached {
		s.emitAllergens(session, st, before.Allergens)
	}
	return nil
}

// Migrate moves every guest entry into the account. The guest slot is
// cleared only after the account store accepted the whole batch, so a
// failed migration can be retried. An empty guest is a no-op.
func (s *EntryService) Migrate(ctx context.Context, guestID, accountID string) (MigrationResult, error) {
	result := MigrationResult{GuestID: guestID, AccountID: accountID, Entries: []domain.FeedingEvent{}}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !id.ValidGuestID(guestID) {
		return result, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"guest_id": "guest_id must be a valid UUID",
		})
	}
	if strings.TrimSpace(accountID) == "" {
		return result, domainerrors.Validation("account id is required")
	}
	if s.backends.Accounts == nil {
		return result, domainerrors.Unavailable("account storage is not configured")
	}

	slot, err := s.backends.Guests.Slot(ctx, guestID)
	if err != nil {
		return result, storeError(err, "read guest entries")
	}
	if len(slot.Entries) == 0 {
		s.countMigration("noop", 0)
		s.logger.Debug("nothing to migrate", "guest_id", guestID)
		return result, nil
	}

	batch := make([]domain.FeedingEvent, len(slot.Entries))
	for i, ev := range slot.Entries {
		ev.ID = ""
		batch[i] = ev
	}

	remote := s.backends.Accounts
	start := time.Now()
	added, err := remote.AddBatch(ctx, accountID, batch)
	observe(s.metrics, remote.Name(), "add_batch", start, err)
	if err != nil {
		s.countMigration(metrics.OutcomeError, 0)
		s.logger.Error("migration failed, guest entries kept",
			"guest_id", guestID,
			"account_id", accountID,
			"entries", len(batch),
			"error", err,
		)
		return result, storeError(err, "migrate entries")
	}

	if err := s.backends.Guests.Clear(ctx, guestID); err != nil {
		s.countMigration(metrics.OutcomeError, 0)
		return result, storeError(fmt.Errorf("clear guest slot after migration: %w", err), "clear guest entries")
	}

	guest := domain.GuestSession(guestID)
	account := domain.AccountSession(accountID)
	if err := s.carryAnnotations(ctx, guest, account); err != nil {
		s.logger.Warn("allergen notes not carried over", "guest_id", guestID, "account_id", accountID, "error", err)
	}
	s.dispatch(guest, state.Cleared{})
	s.states.Forget(account)
	s.countMigration(metrics.OutcomeOK, len(added))

	s.logger.Info("guest entries migrated",
		"guest_id", guestID,
		"account_id", accountID,
		"migrated", len(added),
	)

	s.sseManager.Emit(sse.NewEntriesMigratedEvent(guest.Key(), guestID, accountID, len(added)))
	s.sseManager.Emit(sse.NewEntriesMigratedEvent(account.Key(), guestID, accountID, len(added)))

	result.Migrated = len(added)
	result.Entries = added
	return result, nil
}

// Progress reports how many entries a guest has logged and whether the
// client should suggest saving them to an account. The counter survives
// deletes and resets only on migration.
func (s *EntryService) Progress(ctx context.Context, guestID string) (Progress, error) {
	if !id.ValidGuestID(guestID) {
		return Progress{}, domainerrors.Validation("guest id must be a valid UUID")
	}
	count, err := s.backends.Guests.Count(ctx, guestID)
	if err != nil {
		return Progress{}, storeError(err, "read guest counter")
	}
	return Progress{
		GuestID:          guestID,
		Count:            count,
		Threshold:        s.threshold,
		ShouldPromptSave: count >= s.threshold,
	}, nil
}

// withAllergens sets IsAllergen and Allergens from the catalog record with
// the same name. Unknown foods carry no allergens.
func (s *EntryService) withAllergens(ev domain.FeedingEvent) domain.FeedingEvent {
	ev.IsAllergen = false
	ev.Allergens = []string{}
	if food, ok := s.catalog.Lookup(ev.FoodName); ok && food.HasAllergens() {
		ev.IsAllergen = true
		ev.Allergens = slices.Clone(food.Allergens)
	}
	return ev
}

// dispatch applies an action to the cached state. A failing action drops
// the cached state so the next read reloads from the store.
func (s *EntryService) dispatch(session domain.Session, action state.Action) (state.State, bool) {
	st, cached, err := s.states.Dispatch(session, action)
	if err != nil {
		s.logger.Warn("state update failed, dropping cached state",
			"session", session.Key(),
			"error", err,
		)
		s.states.Forget(session)
		return state.State{}, false
	}
	return st, cached
}

// emitAllergens sends allergen.updated for each recognized tag among labels.
func (s *EntryService) emitAllergens(session domain.Session, st state.State, labels []string) {
	for _, tag := range allergen.NormalizeAll(labels) {
		if rec, ok := allergen.Find(st.Allergens, tag); ok {
			s.sseManager.Emit(sse.NewAllergenUpdatedEvent(session.Key(), rec, allergen.Status(rec)))
		}
	}
}

// carryAnnotations copies the guest's allergen marks and notes to the
// account. Tags the account already annotated keep the account's version.
func (s *EntryService) carryAnnotations(ctx context.Context, guest, account domain.Session) error {
	from, err := s.backends.Guests.Annotations(ctx, guest.Key())
	if err != nil || len(from) == 0 {
		return err
	}
	to, err := s.backends.Guests.Annotations(ctx, account.Key())
	if err != nil {
		return err
	}
	if to == nil {
		to = make(map[string]domain.Annotation, len(from))
	}
	for tag, note := range from {
		if _, ok := to[tag]; !ok {
			to[tag] = note
		}
	}
	return s.backends.Guests.SaveAnnotations(ctx, account.Key(), to)
}

func (s *EntryService) countMigration(outcome string, moved int) {
	if s.metrics == nil {
		return
	}
	s.metrics.Migrations.WithLabelValues(outcome).Inc()
	if moved > 0 {
		s.metrics.MigratedEntries.Add(float64(moved))
	}
}

func findEntry(entries []domain.FeedingEvent, entryID string) (domain.FeedingEvent, bool) {
	for _, e := range entries {
		if e.ID == entryID {
			return e, true
		}
	}
	return domain.FeedingEvent{}, false
}
