package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibbleapp/nibble-server/internal/auth"
	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/search"
	"github.com/nibbleapp/nibble-server/internal/service"
	"github.com/nibbleapp/nibble-server/internal/sse"
	"github.com/nibbleapp/nibble-server/internal/state"
	"github.com/nibbleapp/nibble-server/internal/store"
	"github.com/nibbleapp/nibble-server/internal/store/sqlite"
	"github.com/nibbleapp/nibble-server/internal/validation"
)

const testGuestID = "3b0f8f7e-5d1c-4a57-9a0e-0d6f4c7d2a11"

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api     humatest.TestAPI
	tokens  *auth.TokenService
	metrics *metrics.Collector
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()

	log := logger.Discard().Logger
	dir := t.TempDir()

	guests, err := store.New(filepath.Join(dir, "guests"), log)
	require.NoError(t, err)
	t.Cleanup(func() { guests.Close() })

	accounts, err := sqlite.Open(filepath.Join(dir, "entries.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { accounts.Close() })

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute)
	require.NoError(t, err)

	index, err := search.NewFoodIndex(search.Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	cat := catalog.Default()
	require.NoError(t, index.IndexFoods(cat.All()))

	m := metrics.NewCollector()
	backends := service.Backends{Guests: guests, Accounts: accounts}
	states := state.NewStore(backends.StateLoader(m))
	manager := sse.NewManager(log)
	v := validation.New()

	services := &Services{
		Entries:   service.NewEntryService(backends, states, cat, v, manager, m, log, 0),
		Allergens: service.NewAllergenService(states, guests, manager, log),
		Diary:     service.NewDiaryService(states, v),
		Foods:     service.NewFoodService(cat, index),
	}

	s := NewServer(services, tokens, manager, m, opts, log)
	t.Cleanup(s.Close)
	s.now = func() time.Time { return time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC) }

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.API()),
		tokens:  tokens,
		metrics: m,
	}
}

type testEnvelope struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details map[string]any  `json:"details"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.Equal(t, EnvelopeVersion, env.Version)
	return env
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success, resp.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func guestHeader(guestID string) string {
	return GuestSessionHeader + ": " + guestID
}

func (ts *testServer) bearer(t *testing.T, accountID string) string {
	t.Helper()
	token, err := ts.tokens.GenerateAccessToken(accountID, 0)
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

func entryBody(date, tm, food string) map[string]any {
	return map[string]any{
		"date":          date,
		"time":          tm,
		"food_name":     food,
		"baby_reaction": "liked",
	}
}

func TestEntries_RequireSession(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name    string
		headers []any
	}{
		{"no headers", nil},
		{"malformed guest id", []any{guestHeader("not-a-uuid")}},
		{"invalid bearer without guest", []any{"Authorization: Bearer garbage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Get("/api/v1/entries", tt.headers...)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)

			env := decodeEnvelope(t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, "UNAUTHORIZED", env.Code)
		})
	}
}

func TestEntries_InvalidBearerFallsBackToGuest(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/entries", "Authorization: Bearer garbage", guestHeader(testGuestID))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestEntries_GuestLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	guest := guestHeader(testGuestID)

	// Create.
	resp := ts.api.Post("/api/v1/entries", guest, entryBody("2024-03-01", "08:00", "Egg"))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decodeData[domain.FeedingEvent](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsAllergen)
	assert.Equal(t, []string{"Egg"}, created.Allergens)

	// List.
	resp = ts.api.Get("/api/v1/entries", guest)
	require.Equal(t, http.StatusOK, resp.Code)
	list := decodeData[EntriesResponse](t, resp)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Entries[0].ID)

	// Update to a food without allergens.
	resp = ts.api.Put("/api/v1/entries/"+created.ID, guest, entryBody("2024-03-01", "09:30", "Banana"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decodeData[domain.FeedingEvent](t, resp)
	assert.Equal(t, "09:30", updated.Time)
	assert.False(t, updated.IsAllergen)
	assert.Empty(t, updated.Allergens)

	// Delete.
	resp = ts.api.Delete("/api/v1/entries/"+created.ID, guest)
	require.Equal(t, http.StatusOK, resp.Code)
	deleted := decodeData[map[string]any](t, resp)
	assert.Equal(t, created.ID, deleted["id"])
	assert.Equal(t, true, deleted["deleted"])

	resp = ts.api.Get("/api/v1/entries", guest)
	assert.Equal(t, 0, decodeData[EntriesResponse](t, resp).Total)
}

func TestEntries_UnknownIDIsNotFound(t *testing.T) {
	ts := setupTestServer(t)
	guest := guestHeader(testGuestID)

	resp := ts.api.Put("/api/v1/entries/missing", guest, entryBody("2024-03-01", "08:00", "Egg"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, resp).Code)

	resp = ts.api.Delete("/api/v1/entries/missing", guest)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEntries_ValidationDetails(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing date", entryBody("", "08:00", "Egg"), "date"},
		{"bad time", entryBody("2024-03-01", "8am", "Egg"), "time"},
		{"blank food", entryBody("2024-03-01", "08:00", "  "), "food_name"},
		{"unknown reaction", map[string]any{
			"date": "2024-03-01", "time": "08:00", "food_name": "Egg", "baby_reaction": "meh",
		}, "baby_reaction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/entries", guestHeader(testGuestID), tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			env := decodeEnvelope(t, resp)
			assert.Equal(t, "VALIDATION_ERROR", env.Code)
			assert.Contains(t, env.Details, tt.field)
		})
	}
}

func TestEntries_AccountUsesBearer(t *testing.T) {
	ts := setupTestServer(t)
	account := ts.bearer(t, "acct-1")

	resp := ts.api.Post("/api/v1/entries", account, entryBody("2024-03-01", "08:00", "Salmon"))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	// Same request as a guest sees nothing.
	resp = ts.api.Get("/api/v1/entries", guestHeader(testGuestID))
	assert.Equal(t, 0, decodeData[EntriesResponse](t, resp).Total)

	// Bearer wins when both are sent.
	resp = ts.api.Get("/api/v1/entries", account, guestHeader(testGuestID))
	assert.Equal(t, 1, decodeData[EntriesResponse](t, resp).Total)
}

func TestGuests_CreateAndProgress(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/guests")
	require.Equal(t, http.StatusCreated, resp.Code)
	guest := decodeData[GuestResponse](t, resp)
	assert.Len(t, guest.GuestID, 36)
	assert.Equal(t, GuestSessionHeader, guest.Header)

	header := guestHeader(guest.GuestID)
	for i, food := range []string{"Egg", "Banana", "Avocado"} {
		resp = ts.api.Post("/api/v1/entries", header, entryBody("2024-03-01", "0"+string(rune('7'+i))+":00", food))
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		resp = ts.api.Get("/api/v1/guests/progress", header)
		require.Equal(t, http.StatusOK, resp.Code)
		progress := decodeData[service.Progress](t, resp)
		assert.Equal(t, i+1, progress.Count)
		assert.Equal(t, i+1 >= service.DefaultSavePromptThreshold, progress.ShouldPromptSave)
	}

	resp = ts.api.Get("/api/v1/guests/progress")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMigrate(t *testing.T) {
	ts := setupTestServer(t)
	guest := guestHeader(testGuestID)
	account := ts.bearer(t, "acct-9")

	for _, food := range []string{"Egg", "Peanut"} {
		resp := ts.api.Post("/api/v1/entries", guest, entryBody("2024-03-02", "12:00", food))
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	t.Run("requires account", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/migrate", guest)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("requires guest", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/migrate", account)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("moves entries", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/migrate", account, guest)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		result := decodeData[service.MigrationResult](t, resp)
		assert.Equal(t, 2, result.Migrated)
		assert.Equal(t, testGuestID, result.GuestID)
		assert.Equal(t, "acct-9", result.AccountID)

		resp = ts.api.Get("/api/v1/entries", guest)
		assert.Equal(t, 0, decodeData[EntriesResponse](t, resp).Total)

		resp = ts.api.Get("/api/v1/entries", account)
		assert.Equal(t, 2, decodeData[EntriesResponse](t, resp).Total)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/migrate", account, guest)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 0, decodeData[service.MigrationResult](t, resp).Migrated)
	})
}

func TestAllergens_DashboardAndEdits(t *testing.T) {
	ts := setupTestServer(t)
	guest := guestHeader(testGuestID)

	resp := ts.api.Post("/api/v1/entries", guest, entryBody("2024-03-01", "08:00", "Egg"))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.api.Get("/api/v1/allergens", guest)
	require.Equal(t, http.StatusOK, resp.Code)
	dash := decodeData[service.Dashboard](t, resp)
	require.Len(t, dash.Allergens, len(domain.RecognizedAllergens))
	assert.Equal(t, "eggs", dash.Allergens[0].Tag)
	assert.Equal(t, domain.StatusSafe, dash.Allergens[0].Status)

	t.Run("toggle tried with dashed tag", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/allergens/tree-nuts/tried", guest)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		row := decodeData[service.AllergenView](t, resp)
		assert.Equal(t, "tree nuts", row.Tag)
		assert.True(t, row.Tried)
	})

	t.Run("save reactions", func(t *testing.T) {
		resp := ts.api.Put("/api/v1/allergens/milk/reactions", guest, map[string]any{"reactions": " mild rash "})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, "mild rash", decodeData[service.AllergenView](t, resp).Reactions)
	})

	t.Run("unknown allergen", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/allergens/kiwi/tried", guest)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("unmarking logged allergen conflicts", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/allergens/eggs/tried", guest)
		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "CONFLICT", decodeEnvelope(t, resp).Code)
	})
}

func TestDiary(t *testing.T) {
	ts := setupTestServer(t)
	guest := guestHeader(testGuestID)

	for _, e := range []struct{ date, food string }{
		{"2024-03-07", "Egg"},
		{"2024-03-07", "Banana"},
		{"2024-03-05", "Salmon"},
		{"2024-02-20", "Peanut"},
	} {
		resp := ts.api.Post("/api/v1/entries", guest, entryBody(e.date, "10:00", e.food))
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	t.Run("day defaults to today", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/diary/day", guest)
		require.Equal(t, http.StatusOK, resp.Code)
		day := decodeData[service.DayView](t, resp)
		assert.Equal(t, "2024-03-07", day.Date)
		assert.Len(t, day.Entries, 2)
	})

	t.Run("explicit empty day", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/diary/day?date=2024-01-01", guest)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Empty(t, decodeData[service.DayView](t, resp).Entries)
	})

	t.Run("week", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/diary/week?date=2024-03-07", guest)
		require.Equal(t, http.StatusOK, resp.Code)
		body := resp.Body.String()
		assert.Contains(t, body, `"total_meals":3`)
		assert.Contains(t, body, `"days_logged":2`)
	})

	t.Run("bad date", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/diary/week?date=07-03-2024", guest)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestFoods(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("list with filters", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods?allergen=fish")
		require.Equal(t, http.StatusOK, resp.Code)
		foods := decodeData[FoodsResponse](t, resp)
		require.NotZero(t, foods.Total)
		for _, f := range foods.Foods {
			assert.Contains(t, f.Allergens, "Fish")
		}
	})

	t.Run("bad petSafe", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods?petSafe=maybe")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("search ranks exact name first", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods/search?q=peanut")
		require.Equal(t, http.StatusOK, resp.Code)
		foods := decodeData[FoodsResponse](t, resp)
		require.NotEmpty(t, foods.Foods)
		assert.Equal(t, "Peanut", foods.Foods[0].Name)
	})

	t.Run("search requires query", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods/search")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods/1")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 1, decodeData[domain.FoodRecord](t, resp).ID)

		resp = ts.api.Get("/api/v1/foods/99999")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("categories", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/foods/categories")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.NotEmpty(t, decodeData[map[string][]string](t, resp)["categories"])
	})

	t.Run("preparations", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/preparations")
		require.Equal(t, http.StatusOK, resp.Code)
		prep := decodeData[PreparationsResponse](t, resp)
		assert.Equal(t, domain.PreparationMethods, prep.Preparations)
		assert.Equal(t, domain.Reactions, prep.Reactions)
	})
}

func TestRateLimit_WritesOnly(t *testing.T) {
	ts := setupTestServerWithOptions(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/guests", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		ts.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, post().Code)

	limited := post()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeEnvelope(t, limited).Code)

	// Reads are never limited.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/foods/categories", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	ts.api.Get("/api/v1/foods/categories")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "/api/v1/foods/categories"), "route pattern should be recorded")
}
