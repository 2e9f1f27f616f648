package providers

import (
	"github.com/samber/do/v2"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/config"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/service"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideBackends pairs the guest and account stores.
func ProvideBackends(i do.Injector) (service.Backends, error) {
	guests := do.MustInvoke[*GuestStoreHandle](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)

	return service.Backends{Guests: guests.Store, Accounts: remote.RemoteStore}, nil
}

// ProvideStateStore provides the per-session state cache.
func ProvideStateStore(i do.Injector) (*state.Store, error) {
	backends := do.MustInvoke[service.Backends](i)
	m := do.MustInvoke[*metrics.Collector](i)

	states := state.NewStore(backends.StateLoader(m))
	m.RegisterGauge("nibble_cached_sessions", "Sessions with state held in memory.", func() float64 {
		return float64(states.Len())
	})

	return states, nil
}

// ProvideEntryService provides the feeding entry service.
func ProvideEntryService(i do.Injector) (*service.EntryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	return service.NewEntryService(
		do.MustInvoke[service.Backends](i),
		do.MustInvoke[*state.Store](i),
		do.MustInvoke[*catalog.Catalog](i),
		do.MustInvoke[*validation.Validator](i),
		sseHandle.Manager,
		do.MustInvoke[*metrics.Collector](i),
		log.Logger,
		cfg.App.SavePromptThreshold,
	), nil
}

// ProvideAllergenService provides the allergen dashboard service.
func ProvideAllergenService(i do.Injector) (*service.AllergenService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	guests := do.MustInvoke[*GuestStoreHandle](i)

	return service.NewAllergenService(do.MustInvoke[*state.Store](i), guests.Store, sseHandle.Manager, log.Logger), nil
}

// ProvideDiaryService provides the diary service.
func ProvideDiaryService(i do.Injector) (*service.DiaryService, error) {
	return service.NewDiaryService(do.MustInvoke[*state.Store](i), do.MustInvoke[*validation.Validator](i)), nil
}

// ProvideFoodService provides the catalog service.
func ProvideFoodService(i do.Injector) (*service.FoodService, error) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	return service.NewFoodService(do.MustInvoke[*catalog.Catalog](i), index.FoodIndex), nil
}
