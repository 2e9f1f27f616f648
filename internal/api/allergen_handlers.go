package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/service"
)

func (s *Server) registerAllergenRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAllergenDashboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/allergens",
		Summary:     "Allergen dashboard",
		Description: "Returns every tracked allergen with its status, history and notes",
		Tags:        []string{"Allergens"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleAllergenDashboard)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleAllergenTried",
		Method:      http.MethodPost,
		Path:        "/api/v1/allergens/{tag}/tried",
		Summary:     "Toggle tried",
		Description: "Marks an allergen tried without a logged feeding, or clears that mark",
		Tags:        []string{"Allergens"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleToggleTried)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveAllergenReactions",
		Method:      http.MethodPut,
		Path:        "/api/v1/allergens/{tag}/reactions",
		Summary:     "Save reaction notes",
		Description: "Replaces the free-form reaction notes of an allergen",
		Tags:        []string{"Allergens"},
		Security:    []map[string][]string{{"bearer": {}}, {"guest": {}}},
	}, s.handleSaveReactions)
}

// === DTOs ===

// AllergenDashboardInput identifies the session.
type AllergenDashboardInput struct {
	SessionHeaders
}

// AllergenDashboardOutput wraps the dashboard for Huma.
type AllergenDashboardOutput struct {
	Body service.Dashboard
}

// AllergenTagInput addresses one allergen.
type AllergenTagInput struct {
	SessionHeaders
	Tag string `path:"tag" doc:"Allergen tag or label, e.g. eggs or tree-nuts"`
}

// SaveReactionsInput contains reaction notes.
type SaveReactionsInput struct {
	SessionHeaders
	Tag  string `path:"tag" doc:"Allergen tag or label"`
	Body struct {
		Reactions string `json:"reactions,omitempty" doc:"Reaction notes; empty clears them"`
	}
}

// AllergenOutput wraps one allergen row for Huma.
type AllergenOutput struct {
	Body service.AllergenView
}

// === Handlers ===

// pathTag turns a URL-friendly tag such as "tree-nuts" into "tree nuts".
func pathTag(tag string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(tag)
}

func (s *Server) handleAllergenDashboard(ctx context.Context, input *AllergenDashboardInput) (*AllergenDashboardOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	dash, err := s.services.Allergens.Dashboard(ctx, session)
	if err != nil {
		return nil, err
	}
	return &AllergenDashboardOutput{Body: dash}, nil
}

func (s *Server) handleToggleTried(ctx context.Context, input *AllergenTagInput) (*AllergenOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	row, err := s.services.Allergens.ToggleTried(ctx, session, pathTag(input.Tag))
	if err != nil {
		return nil, err
	}
	return &AllergenOutput{Body: row}, nil
}

func (s *Server) handleSaveReactions(ctx context.Context, input *SaveReactionsInput) (*AllergenOutput, error) {
	session, err := s.resolveSession(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	row, err := s.services.Allergens.SaveReactions(ctx, session, pathTag(input.Tag), input.Body.Reactions)
	if err != nil {
		return nil, err
	}
	return &AllergenOutput{Body: row}, nil
}
