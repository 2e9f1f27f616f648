package service

import (
	"context"

	"github.com/nibbleapp/nibble-server/internal/diary"
	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/validation"
)

// DayView lists the feedings logged on one date.
type DayView struct {
	Date    string                `json:"date"`
	Entries []domain.FeedingEvent `json:"entries"`
}

// DiaryService serves the per-day and weekly diary views.
type DiaryService struct {
	states    *state.Store
	validator *validation.Validator
}

// NewDiaryService creates a new diary service.
func NewDiaryService(states *state.Store, v *validation.Validator) *DiaryService {
	return &DiaryService{states: states, validator: v}
}

// Day returns the session's entries for date. A day without entries is
// not an error.
func (s *DiaryService) Day(ctx context.Context, session domain.Session, date string) (DayView, error) {
	if err := s.validator.Var("date", date, "required,datetime=2006-01-02"); err != nil {
		return DayView{}, err
	}
	st, err := s.states.Get(ctx, session)
	if err != nil {
		return DayView{}, err
	}
	return DayView{Date: date, Entries: diary.Day(st.Entries, date)}, nil
}

// Week summarizes the seven days ending on date.
func (s *DiaryService) Week(ctx context.Context, session domain.Session, date string) (diary.Week, error) {
	if err := s.validator.Var("date", date, "required,datetime=2006-01-02"); err != nil {
		return diary.Week{}, err
	}
	st, err := s.states.Get(ctx, session)
	if err != nil {
		return diary.Week{}, err
	}
	return diary.Summarize(st.Entries, date)
}
