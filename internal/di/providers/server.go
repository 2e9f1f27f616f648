package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/nibbleapp/nibble-server/internal/api"
	"github.com/nibbleapp/nibble-server/internal/auth"
	"github.com/nibbleapp/nibble-server/internal/config"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/service"
)

// shutdownTimeout bounds each Shutdownable provider's graceful stop.
const shutdownTimeout = 30 * time.Second

// healthProbeGuest is a syntactically valid guest ID used to exercise the
// guest store read path.
const healthProbeGuest = "00000000-0000-4000-8000-000000000000"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	guests := do.MustInvoke[*GuestStoreHandle](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	m := do.MustInvoke[*metrics.Collector](i)

	services := &api.Services{
		Entries:   do.MustInvoke[*service.EntryService](i),
		Allergens: do.MustInvoke[*service.AllergenService](i),
		Diary:     do.MustInvoke[*service.DiaryService](i),
		Foods:     do.MustInvoke[*service.FoodService](i),
	}

	m.RegisterGauge("nibble_sse_clients", "Connected event stream clients.", func() float64 {
		return float64(sseHandle.ClientCount())
	})

	handler := api.NewServer(services, do.MustInvoke[*auth.TokenService](i), sseHandle.Manager, m, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Checks: map[string]api.HealthCheck{
			"guest_store": func(ctx context.Context) error {
				_, err := guests.Exists(ctx, healthProbeGuest)
				return err
			},
			"remote_store": remote.Ping,
			"search": func(context.Context) error {
				count, err := index.DocumentCount()
				if err != nil {
					return err
				}
				if count == 0 {
					return errors.New("search index is empty")
				}
				return nil
			},
		},
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
