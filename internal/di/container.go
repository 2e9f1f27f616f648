// Package di provides dependency injection configuration for the Nibble server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/nibbleapp/nibble-server/internal/auth"
	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/config"
	"github.com/nibbleapp/nibble-server/internal/di/providers"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/service"
	"github.com/nibbleapp/nibble-server/internal/state"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideGuestStore)
	do.Provide(injector, providers.ProvideRemoteStore)
	do.Provide(injector, providers.ProvideBackends)
	do.Provide(injector, providers.ProvideStateStore)

	// Catalog and search
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideEntryService)
	do.Provide(injector, providers.ProvideAllergenService)
	do.Provide(injector, providers.ProvideDiaryService)
	do.Provide(injector, providers.ProvideFoodService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services, starting the HTTP server last.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Collector](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.GuestStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.RemoteStoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*state.Store](injector)
	_ = do.MustInvoke[*catalog.Catalog](injector)
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*service.EntryService](injector)
	_ = do.MustInvoke[*service.AllergenService](injector)
	_ = do.MustInvoke[*service.DiaryService](injector)
	_ = do.MustInvoke[*service.FoodService](injector)

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
