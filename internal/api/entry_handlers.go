package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/service"
)

func (s *Server) registerEntryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listEntries",
		Method:      http.MethodGet,
		Path:        "/api/v1/entries",
		Summary:     "List entries",
		Description: "Returns the session's feeding entries, newest first",
		Tags:        []string{"Entries"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleListEntries)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createEntry",
		Method:        http.MethodPost,
		Path:          "/api/v1/entries",
		Summary:       "Log a feeding",
		Description:   "Records a feeding. Allergens are derived from the food name.",
		Tags:          []string{"Entries"},
		Security:      []map[string][]string{{"bearer": {}}, {"guest": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateEntry)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateEntry",
		Method:      http.MethodPut,
		Path:        "/api/v1/entries/{id}",
		Summary:     "Update entry",
		Description: "Replaces the editable fields of an entry",
		Tags:        []string{"Entries"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleUpdateEntry)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEntry",
		Method:      http.MethodDelete,
		Path:        "/api/v1/entries/{id}",
		Summary:     "Delete entry",
		Description: "Removes an entry",
		Tags:        []string{"Entries"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleDeleteEntry)
}

// === DTOs ===

// EntryRequest is the feeding form body. Missing fields are reported by
// field-level validation rather than schema errors.
type EntryRequest struct {
	Date        string          `json:"date,omitempty" doc:"Feeding date, YYYY-MM-DD"`
	Time        string          `json:"time,omitempty" doc:"Feeding time, HH:MM"`
	FoodName    string          `json:"food_name,omitempty" maxLength:"100" doc:"Food name"`
	Preparation string          `json:"preparation,omitempty" doc:"Preparation method"`
	Reaction    domain.Reaction `json:"baby_reaction,omitempty" doc:"disliked, mixed, liked or loved"`
	HadReaction bool            `json:"had_reaction,omitempty" doc:"Whether an allergic reaction was observed"`
	Notes       string          `json:"notes,omitempty" doc:"Free-form notes"`
}

func (r EntryRequest) toInput() service.EntryInput {
	return service.EntryInput{
		Date:        r.Date,
		Time:        r.Time,
		FoodName:    r.FoodName,
		Preparation: r.Preparation,
		Reaction:    r.Reaction,
		HadReaction: r.HadReaction,
		Notes:       r.Notes,
	}
}

// ListEntriesInput identifies the session.
type ListEntriesInput struct {
	SessionHeaders
}

// EntriesResponse contains a session's entries.
type EntriesResponse struct {
	Entries []domain.FeedingEvent `json:"entries" doc:"Feeding entries"`
	Total   int                   `json:"total" doc:"Number of entries"`
}

// EntriesOutput wraps an entry list for Huma.
type EntriesOutput struct {
	Body EntriesResponse
}

// CreateEntryInput contains a new feeding.
type CreateEntryInput struct {
	SessionHeaders
	Body EntryRequest
}

// UpdateEntryInput contains an entry edit.
type UpdateEntryInput struct {
	SessionHeaders
	ID   string `path:"id" doc:"Entry ID"`
	Body EntryRequest
}

// EntryOutput wraps one entry for Huma.
type EntryOutput struct {
	Body domain.FeedingEvent
}

// DeleteEntryInput identifies the entry to delete.
type DeleteEntryInput struct {
	SessionHeaders
	ID string `path:"id" doc:"Entry ID"`
}

// DeleteEntryOutput confirms a deletion.
type DeleteEntryOutput struct {
	Body struct {
		ID      string `json:"id" doc:"Deleted entry ID"`
		Deleted bool   `json:"deleted" doc:"Always true"`
	}
}

// === Handlers ===

func (s *Server) handleListEntries(ctx context.Context, input *ListEntriesInput) (*EntriesOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	entries, err := s.services.Entries.List(ctx, session)
	if err != nil {
		return nil, err
	}
	return &EntriesOutput{Body: EntriesResponse{Entries: entries, Total: len(entries)}}, nil
}

func (s *Server) handleCreateEntry(ctx context.Context, input *CreateEntryInput) (*EntryOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	entry, err := s.services.Entries.Create(ctx, session, input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &EntryOutput{Body: entry}, nil
}

func (s *Server) handleUpdateEntry(ctx context.Context, input *UpdateEntryInput) (*EntryOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	entry, err := s.services.Entries.Update(ctx, session, input.ID, input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &EntryOutput{Body: entry}, nil
}

func (s *Server) handleDeleteEntry(ctx context.Context, input *DeleteEntryInput) (*DeleteEntryOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	if err := s.services.Entries.Delete(ctx, session, input.ID); err != nil {
		return nil, err
	}
	out := &DeleteEntryOutput{}
	out.Body.ID = input.ID
	out.Body.Deleted = true
	return out, nil
}
