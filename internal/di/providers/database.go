package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/nibbleapp/nibble-server/internal/config"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/sse"
	"github.com/nibbleapp/nibble-server/internal/store"
	"github.com/nibbleapp/nibble-server/internal/store/sqlite"
	"github.com/nibbleapp/nibble-server/internal/store/supabase"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// ProvideMetrics provides the Prometheus collector.
func ProvideMetrics(i do.Injector) (*metrics.Collector, error) {
	return metrics.NewCollector(), nil
}

// GuestStoreHandle wraps the badger guest store with shutdown capability.
type GuestStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *GuestStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideGuestStore provides the local guest entry store.
func ProvideGuestStore(i do.Injector) (*GuestStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.GuestStorePath()
	db, err := store.New(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Guest store initialized", "path", path)

	return &GuestStoreHandle{Store: db}, nil
}

// RemoteStoreHandle wraps the account entry backend with shutdown capability.
type RemoteStoreHandle struct {
	store.RemoteStore
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *RemoteStoreHandle) Shutdown() error {
	return h.close()
}

// ProvideRemoteStore provides the account entry backend selected by
// configuration.
func ProvideRemoteStore(i do.Injector) (*RemoteStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Remote.Backend {
	case config.RemoteSupabase:
		remote, err := supabase.New(supabase.Config{
			URL:     cfg.Remote.SupabaseURL,
			Key:     cfg.Remote.SupabaseKey,
			Table:   cfg.Remote.Table,
			Breaker: supabase.DefaultBreakerConfig(),
		}, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Remote store initialized", "backend", remote.Name(), "table", cfg.Remote.Table)
		return &RemoteStoreHandle{RemoteStore: remote, close: remote.Close}, nil

	case config.RemoteSQLite:
		remote, err := sqlite.Open(cfg.Remote.SQLitePath, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Remote store initialized", "backend", remote.Name(), "path", cfg.Remote.SQLitePath)
		return &RemoteStoreHandle{RemoteStore: remote, close: remote.Close}, nil

	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}
