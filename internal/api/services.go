package api

import (
	"context"

	"github.com/nibbleapp/nibble-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Entries   *service.EntryService
	Allergens *service.AllergenService
	Diary     *service.DiaryService
	Foods     *service.FoodService
}

// HealthCheck probes one backing component. A nil error means healthy.
type HealthCheck func(ctx context.Context) error
