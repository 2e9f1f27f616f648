package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/diary"
	"github.com/nibbleapp/nibble-server/internal/service"
)

func (s *Server) registerDiaryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getDiaryDay",
		Method:      http.MethodGet,
		Path:        "/api/v1/diary/day",
		Summary:     "Diary day",
		Description: "Returns the feedings logged on one date, today by default",
		Tags:        []string{"Diary"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleDiaryDay)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDiaryWeek",
		Method:      http.MethodGet,
		Path:        "/api/v1/diary/week",
		Summary:     "Weekly summary",
		Description: "Summarizes the seven days ending on a date, today by default",
		Tags:        []string{"Diary"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleDiaryWeek)
}

// DiaryInput selects the session and date.
type DiaryInput struct {
	SessionHeaders
	Date string `query:"date" doc:"Date, YYYY-MM-DD. Defaults to today."`
}

// DayOutput wraps a day view for Huma.
type DayOutput struct {
	Body service.DayView
}

// WeekOutput wraps a weekly summary for Huma.
type WeekOutput struct {
	Body diary.Week
}

func (s *Server) diaryDate(date string) string {
	if date = strings.TrimSpace(date); date != "" {
		return date
	}
	return s.now().Format("2006-01-02")
}

func (s *Server) handleDiaryDay(ctx context.Context, input *DiaryInput) (*DayOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	day, err := s.services.Diary.Day(ctx, session, s.diaryDate(input.Date))
	if err != nil {
		return nil, err
	}
	return &DayOutput{Body: day}, nil
}

func (s *Server) handleDiaryWeek(ctx context.Context, input *DiaryInput) (*WeekOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	week, err := s.services.Diary.Week(ctx, session, s.diaryDate(input.Date))
	if err != nil {
		return nil, err
	}
	return &WeekOutput{Body: week}, nil
}
