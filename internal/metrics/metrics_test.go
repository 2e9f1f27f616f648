package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector()

	c.RecordHTTPRequest(http.MethodPost, "/api/v1/entries", http.StatusCreated, 20*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, "/api/v1/entries", http.StatusCreated, 10*time.Millisecond)
	c.RecordStoreOperation("guest", "add", OutcomeOK, time.Millisecond)
	c.RecordStoreOperation("supabase", "list", OutcomeError, time.Second)
	c.EntriesLogged.WithLabelValues("guest").Inc()
	c.MigratedEntries.Add(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("POST", "/api/v1/entries", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("supabase", "list", OutcomeError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.MigratedEntries))
	assert.Equal(t, 2, testutil.CollectAndCount(c.StoreDuration))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.GuestsCreated.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.GuestsCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GuestsCreated))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RegisterGauge("sse_clients", "Connected SSE clients", func() float64 { return 4 })
	c.GuestsCreated.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "nibble_guests_created_total 1")
	assert.Contains(t, string(body), "nibble_sse_clients 4")
	assert.Contains(t, string(body), "go_goroutines")
}
