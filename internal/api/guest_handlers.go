package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/service"
)

func (s *Server) registerGuestRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createGuest",
		Method:        http.MethodPost,
		Path:          "/api/v1/guests",
		Summary:       "Start guest session",
		Description:   "Issues a guest ID to send in the X-Guest-Session header",
		Tags:          []string{"Guests"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateGuest)

	huma.Register(s.api, huma.Operation{
		OperationID: "getGuestProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/guests/progress",
		Summary:     "Guest progress",
		Description: "Returns how many entries the guest has logged and whether to suggest saving them to an account",
		Tags:        []string{"Guests"},
		Security:    []map[string][]string{{"guest": {}}},
	}, s.handleGuestProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "migrateGuest",
		Method:      http.MethodPost,
		Path:        "/api/v1/migrate",
		Summary:     "Migrate guest entries",
		Description: "Moves every guest entry into the account. Requires both the bearer token and the guest header.",
		Tags:        []string{"Guests"},
		Security:    []map[string][]string{{"bearer": {}, "guest": {}}},
	}, s.handleMigrate)
}

// === DTOs ===

// GuestResponse contains a new guest session.
type GuestResponse struct {
	GuestID string `json:"guest_id" doc:"Guest session ID"`
	Header  string `json:"header" doc:"Header to send the ID in"`
}

// GuestOutput wraps a new guest for Huma.
type GuestOutput struct {
	Body GuestResponse
}

// GuestProgressInput identifies the guest.
type GuestProgressInput struct {
	SessionHeaders
}

// GuestProgressOutput wraps guest progress for Huma.
type GuestProgressOutput struct {
	Body service.Progress
}

// MigrateInput carries both the account and the guest session.
type MigrateInput struct {
	SessionHeaders
}

// MigrateOutput wraps the migration result for Huma.
type MigrateOutput struct {
	Body service.MigrationResult
}

// === Handlers ===

func (s *Server) handleCreateGuest(_ context.Context, _ *struct{}) (*GuestOutput, error) {
	guest := s.services.Entries.NewGuest()
	return &GuestOutput{Body: GuestResponse{GuestID: guest.ID, Header: GuestSessionHeader}}, nil
}

func (s *Server) handleGuestProgress(ctx context.Context, input *GuestProgressInput) (*GuestProgressOutput, error) {
	guest, err := s.requireGuest(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	progress, err := s.services.Entries.Progress(ctx, guest.ID)
	if err != nil {
		return nil, err
	}
	return &GuestProgressOutput{Body: progress}, nil
}

func (s *Server) handleMigrate(ctx context.Context, input *MigrateInput) (*MigrateOutput, error) {
	account, err := s.requireAccount(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	guest, err := s.requireGuest(input.SessionHeaders)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Entries.Migrate(ctx, guest.ID, account.ID)
	if err != nil {
		return nil, err
	}
	return &MigrateOutput{Body: result}, nil
}
