package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nibbleapp/nibble-server/internal/allergen"
	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
	"github.com/nibbleapp/nibble-server/internal/sse"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/store"
)

// AllergenView is one dashboard row.
type AllergenView struct {
	domain.AllergenTrialRecord
	Status domain.AllergenStatus `json:"status"`
}

// Dashboard is the allergen overview for a session.
type Dashboard struct {
	Allergens []AllergenView   `json:"allergens"`
	Summary   allergen.Summary `json:"summary"`
}

// AllergenService serves the allergen dashboard and its manual edits.
type AllergenService struct {
	states     *state.Store
	notes      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
	now        func() time.Time
}

// NewAllergenService creates a new allergen service. Annotations are saved
// in notes, keyed by session.
func NewAllergenService(states *state.Store, notes *store.Store, sseManager *sse.Manager, logger *slog.Logger) *AllergenService {
	return &AllergenService{
		states:     states,
		notes:      notes,
		sseManager: sseManager,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard returns every tracked allergen with its status and counts.
func (s *AllergenService) Dashboard(ctx context.Context, session domain.Session) (Dashboard, error) {
	st, err := s.states.Get(ctx, session)
	if err != nil {
		return Dashboard{}, err
	}
	views := make([]AllergenView, len(st.Allergens))
	for i, r := range st.Allergens {
		views[i] = view(r)
	}
	return Dashboard{Allergens: views, Summary: allergen.Summarize(st.Allergens)}, nil
}

// ToggleTried flips the manual "tried" mark on an allergen.
func (s *AllergenService) ToggleTried(ctx context.Context, session domain.Session, tag string) (AllergenView, error) {
	tag, err := recognizedTag(tag)
	if err != nil {
		return AllergenView{}, err
	}
	today := s.now().Format(domain.DateLayout)
	return s.apply(ctx, session, tag, state.TriedToggled{Tag: tag, Today: today})
}

// SaveReactions replaces the free-text reaction summary of an allergen.
func (s *AllergenService) SaveReactions(ctx context.Context, session domain.Session, tag, text string) (AllergenView, error) {
	tag, err := recognizedTag(tag)
	if err != nil {
		return AllergenView{}, err
	}
	text = strings.TrimSpace(text)
	if len(text) > 2000 {
		return AllergenView{}, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"reactions": "reactions must not exceed 2000 characters",
		})
	}
	return s.apply(ctx, session, tag, state.ReactionsSaved{Tag: tag, Text: text})
}

// apply reduces the action against the current state, persists the
// resulting annotations and only then updates the cached state.
func (s *AllergenService) apply(ctx context.Context, session domain.Session, tag string, action state.Action) (AllergenView, error) {
	if err := ctx.Err(); err != nil {
		return AllergenView{}, err
	}

	current, err := s.states.Get(ctx, session)
	if err != nil {
		return AllergenView{}, err
	}

	next, err := state.Reduce(current, action)
	if err != nil {
		return AllergenView{}, allergenError(err)
	}

	if err := s.notes.SaveAnnotations(ctx, session.Key(), allergen.Annotations(next.Allergens)); err != nil {
		return AllergenView{}, storeError(err, "save allergen notes")
	}

	if st, cached, err := s.states.Dispatch(session, action); err != nil {
		s.logger.Warn("state update failed, dropping cached state",
			"session", session.Key(),
			"error", err,
		)
		s.states.Forget(session)
	} else if cached {
		next = st
	}

	rec, _ := allergen.Find(next.Allergens, tag)
	s.logger.Info("allergen updated",
		"session", session.Key(),
		"tag", tag,
		"tried", rec.Tried,
	)
	s.sseManager.Emit(sse.NewAllergenUpdatedEvent(session.Key(), rec, allergen.Status(rec)))

	return view(rec), nil
}

func recognizedTag(tag string) (string, error) {
	normalized := allergen.Normalize(tag)
	if !allergen.Recognized(normalized) {
		return "", domainerrors.NotFoundf("unknown allergen %q", tag)
	}
	return normalized, nil
}

func allergenError(err error) error {
	switch {
	case errors.Is(err, allergen.ErrUnknownTag):
		return domainerrors.NotFound("unknown allergen").WithCause(err)
	case errors.Is(err, allergen.ErrLoggedExposures):
		return domainerrors.Conflict("allergen has logged feedings; delete them to mark it untried").WithCause(err)
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "update allergen")
	}
}

func view(r domain.AllergenTrialRecord) AllergenView {
	return AllergenView{AllergenTrialRecord: r, Status: allergen.Status(r)}
}
