package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fruition-api/internal/cache"
	"fruition-api/internal/fruit"
	"fruition-api/internal/geo"
	"fruition-api/internal/handler"
	"fruition-api/internal/middleware"
	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/repository"
	"fruition-api/internal/router"
	"fruition-api/internal/service"
	"fruition-api/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "admin-secret"

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type apiEnv struct {
	server   *httptest.Server
	store    *repository.SQLStore
	sessions *service.SessionManager
	tokens   *service.TokenService
}

func newAPIEnv(t *testing.T, apiKeys ...string) *apiEnv {
	t.Helper()

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "fruition.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewManual(testNow)
	broker := pubsub.NewMemoryBroker()
	kv := cache.NewMemoryCacheWithClock(clk)

	feed := service.NewDirectFeed(store)
	identity := service.NewIdentityService(store, geo.Nop{}, clk)
	households := service.NewHouseholdService(store, store, clk)
	ledger := service.NewLedger(store, store, broker, service.NewFeedBroadcaster(feed, clk, 1), clk)
	history := notify.NewHistory(kv, clk, notify.DefaultHistoryLimit)
	tokens := service.NewTokenService(kv, clk, service.TokenTTL)

	sessions := service.NewSessionManager(service.SessionDeps{
		Identity:   identity,
		Households: households,
		Ledger:     ledger,
		Source:     store,
		Broker:     broker,
		ShelfLife:  fruit.DefaultTable(),
		Notify: notify.Config{
			KV:      kv,
			History: history,
			Alerter: notify.LogAlerter{},
			Clock:   clk,
			Broker:  broker,
		},
		Clock: clk,
	})
	reaper := service.NewSessionReaper(sessions, service.DefaultReaperConfig())
	validate := handler.NewValidator()

	r := router.New(router.Config{
		Handler:             handler.New(store, kv),
		InventoryHandler:    handler.NewInventoryHandler(sessions, validate),
		StatsHandler:        handler.NewStatsHandler(sessions, service.NewStatsAggregator(store, clk)),
		NotificationHandler: handler.NewNotificationHandler(sessions, history, kv, validate),
		ProfileHandler:      handler.NewProfileHandler(sessions, households, validate),
		EventsHandler:       handler.NewEventsHandler(sessions, broker, time.Second),
		FeedHandler:         handler.NewFeedHandler(feed),
		AuthHandler:         handler.NewAuthHandler(sessions, tokens),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Store:    store,
			Identity: identity,
			Sessions: sessions,
			Reaper:   reaper,
			Validate: validate,
			DBType:   "sqlite",
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			TokenService: tokens,
			APIKeys:      apiKeys,
		}),
		AdminMiddleware: middleware.NewAdminMiddleware([]string{adminKey}),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
		kv.Close()
		broker.Close()
	})
	return &apiEnv{server: srv, store: store, sessions: sessions, tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Limit int `json:"limit"`
		Count int `json:"count"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
		req.Header.Set(middleware.HeaderUserEmail, userID+"@example.com")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (e *apiEnv) inventory(t *testing.T, userID string) handler.InventoryResponse {
	t.Helper()
	status, env := e.do(t, http.MethodGet, "/api/v1/inventory", userID, nil)
	require.Equal(t, http.StatusOK, status)
	var inv handler.InventoryResponse
	decodeData(t, env, &inv)
	return inv
}

func (e *apiEnv) waitForItems(t *testing.T, userID string, n int) handler.InventoryResponse {
	t.Helper()
	var inv handler.InventoryResponse
	require.Eventually(t, func() bool {
		inv = e.inventory(t, userID)
		return len(inv.Items) == n
	}, 2*time.Second, 20*time.Millisecond, "inventory never reached %d items", n)
	return inv
}

func TestHealthIsPublic(t *testing.T) {
	e := newAPIEnv(t, "key-1")

	status, _ := e.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestInventoryRequiresIdentity(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	e := newAPIEnv(t, "key-1")

	status, _ := e.do(t, http.MethodGet, "/api/v1/inventory", "u1", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/inventory", "u1", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/inventory", "u1", nil, "X-API-Key", "key-1")
	assert.Equal(t, http.StatusOK, status)
}

func TestInventoryFlow(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/v1/inventory", "u1", handler.AddItemRequest{
		Name: "  banana ", Quantity: 3,
	})
	require.Equal(t, http.StatusCreated, status)
	var added model.InventoryItem
	decodeData(t, env, &added)
	assert.Equal(t, "Banana", added.Name)
	assert.Equal(t, model.DefaultUnit, added.Unit)

	inv := e.waitForItems(t, "u1", 1)
	assert.Equal(t, "users/u1/inventory", inv.Scope)
	assert.Equal(t, model.FreshnessGood, inv.Items[0].Freshness)

	status, env = e.do(t, http.MethodPost, "/api/v1/inventory/"+added.ID+"/consume", "u1", handler.AmountRequest{Amount: 2})
	require.Equal(t, http.StatusOK, status)
	var consumed model.ConsumptionEvent
	decodeData(t, env, &consumed)
	assert.Equal(t, "Banana", consumed.FruitName)
	assert.Equal(t, 2, consumed.Amount)

	require.Eventually(t, func() bool {
		inv := e.inventory(t, "u1")
		return len(inv.Items) == 1 && inv.Items[0].Quantity == 1
	}, 2*time.Second, 20*time.Millisecond)

	status, env = e.do(t, http.MethodPost, "/api/v1/inventory/"+added.ID+"/waste", "u1", handler.AmountRequest{Amount: 1, Reason: "bruised"})
	require.Equal(t, http.StatusOK, status)
	var wasted model.WasteEvent
	decodeData(t, env, &wasted)
	assert.Equal(t, "bruised", wasted.Reason)
	e.waitForItems(t, "u1", 0)

	status, env = e.do(t, http.MethodGet, "/api/v1/stats/summary", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var summary service.Summary
	decodeData(t, env, &summary)
	assert.Equal(t, 2, summary.TotalConsumed)
	assert.Equal(t, 1, summary.TotalWasted)
	assert.Equal(t, 67, summary.Efficiency)

	// The public feed carries both events without identity.
	status, env = e.do(t, http.MethodGet, "/api/v1/feed?limit=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	var feed []model.FeedEvent
	decodeData(t, env, &feed)
	require.Len(t, feed, 2)
	for _, ev := range feed {
		assert.Equal(t, "Member #1", ev.MemberLabel)
		assert.Equal(t, "Banana", ev.FruitName)
	}
	require.NotNil(t, env.Meta)
	assert.Equal(t, 5, env.Meta.Limit)
	assert.Equal(t, 2, env.Meta.Count)
}

func TestInventoryValidation(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/v1/inventory", "u1", map[string]interface{}{"name": "Kiwi"})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "quantity", env.Error.Details[0].Field)

	status, env = e.do(t, http.MethodPost, "/api/v1/inventory", "u1", map[string]interface{}{
		"name": "Kiwi", "quantity": 1, "purchase_date": "10/06/2025",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/inventory", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsumeUnknownItem(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/v1/inventory/missing/consume", "u1", handler.AmountRequest{Amount: 1})
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	unknown := "0b0c8a5e-9f3e-4a57-8a44-3c1f5d2f7e10"
	status, _ = e.do(t, http.MethodPost, "/api/v1/inventory/"+unknown+"/consume", "u1", handler.AmountRequest{Amount: 1})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPost, "/api/v1/inventory/"+unknown+"/consume", "u1", handler.AmountRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodDelete, "/api/v1/inventory/not-a-uuid", "u1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHouseholdFlow(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/household", "owner", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = e.do(t, http.MethodPost, "/api/v1/household", "owner", handler.CreateHouseholdRequest{Name: "Flat 3"})
	require.Equal(t, http.StatusCreated, status)
	var created handler.HouseholdResponse
	decodeData(t, env, &created)
	require.NotNil(t, created.Household)
	assert.Equal(t, "households/"+created.Household.ID+"/inventory", created.Scope)

	status, env = e.do(t, http.MethodPost, "/api/v1/household/join", "guest", handler.JoinHouseholdRequest{Code: "nope"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = e.do(t, http.MethodPost, "/api/v1/household/join", "guest", handler.JoinHouseholdRequest{Code: created.Household.ID})
	require.Equal(t, http.StatusOK, status)
	var joined handler.HouseholdResponse
	decodeData(t, env, &joined)
	assert.Equal(t, created.Scope, joined.Scope)
	assert.Len(t, joined.Members, 2)

	// An item added by one member shows up for the other.
	status, _ = e.do(t, http.MethodPost, "/api/v1/inventory", "owner", handler.AddItemRequest{Name: "Mango", Quantity: 2})
	require.Equal(t, http.StatusCreated, status)
	e.waitForItems(t, "guest", 1)

	status, env = e.do(t, http.MethodPost, "/api/v1/household/leave", "guest", nil)
	require.Equal(t, http.StatusOK, status)
	var left handler.ProfileResponse
	decodeData(t, env, &left)
	assert.Equal(t, "users/guest/inventory", left.Scope)
	assert.Empty(t, left.Profile.HouseholdID)
	e.waitForItems(t, "guest", 0)
}

func TestProfileAndSettings(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/profile", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var p handler.ProfileResponse
	decodeData(t, env, &p)
	assert.Equal(t, int64(1), p.Profile.MemberID)
	assert.Equal(t, "u1@example.com", p.Profile.Email)

	status, _ = e.do(t, http.MethodPut, "/api/v1/profile/settings", "u1", handler.SettingsRequest{TimeZone: "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPut, "/api/v1/profile/settings", "u1", handler.SettingsRequest{HourCycle: "h99"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = e.do(t, http.MethodPut, "/api/v1/profile/settings", "u1", handler.SettingsRequest{TimeZone: "Asia/Tokyo", HourCycle: "h23"})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &p)
	assert.Equal(t, "Asia/Tokyo", p.Profile.Settings.TimeZone)

	status, _ = e.do(t, http.MethodPost, "/api/v1/session/logout", "u1", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0, e.sessions.Count())
}

func TestNotificationsFlow(t *testing.T) {
	e := newAPIEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/notifications", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var list handler.NotificationList
	decodeData(t, env, &list)
	assert.Empty(t, list.Notifications)
	assert.Equal(t, notify.PermissionDefault, list.Permission)

	// Bought 13 days ago: one day of shelf life left.
	bought := testNow.AddDate(0, 0, -13).Format("2006-01-02")
	status, _ = e.do(t, http.MethodPost, "/api/v1/inventory", "u1", handler.AddItemRequest{
		Name: "Apple", Quantity: 1, PurchaseDate: bought,
	})
	require.Equal(t, http.StatusCreated, status)

	require.Eventually(t, func() bool {
		_, env := e.do(t, http.MethodGet, "/api/v1/notifications", "u1", nil)
		decodeData(t, env, &list)
		return list.Unread == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Your Apple expires in 1 days.", list.Notifications[0].Body)

	status, _ = e.do(t, http.MethodPost, "/api/v1/notifications/"+list.Notifications[0].ID+"/read", "u1", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = e.do(t, http.MethodPost, "/api/v1/notifications/unknown/read", "u1", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPut, "/api/v1/notifications/permission", "u1", handler.PermissionRequest{Permission: "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = e.do(t, http.MethodPut, "/api/v1/notifications/permission", "u1", handler.PermissionRequest{Permission: "granted"})
	require.Equal(t, http.StatusOK, status)

	_, env = e.do(t, http.MethodGet, "/api/v1/notifications", "u1", nil)
	decodeData(t, env, &list)
	assert.Equal(t, 0, list.Unread)
	assert.Equal(t, notify.PermissionGranted, list.Permission)

	status, _ = e.do(t, http.MethodDelete, "/api/v1/notifications", "u1", nil)
	assert.Equal(t, http.StatusNoContent, status)
	_, env = e.do(t, http.MethodGet, "/api/v1/notifications", "u1", nil)
	decodeData(t, env, &list)
	assert.Empty(t, list.Notifications)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	e := newAPIEnv(t)

	status, _ := e.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil, middleware.HeaderAdminKey, "guess")
	assert.Equal(t, http.StatusForbidden, status)

	status, env := e.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil, middleware.HeaderAdminKey, adminKey)
	require.Equal(t, http.StatusOK, status)
	var stats map[string]interface{}
	decodeData(t, env, &stats)
	assert.Equal(t, "sqlite", stats["db_type"])
}

func TestAdminDisableClosesSession(t *testing.T) {
	e := newAPIEnv(t)

	status, _ := e.do(t, http.MethodGet, "/api/v1/profile", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, e.sessions.Count())

	status, _ = e.do(t, http.MethodGet, "/api/v1/admin/users/nobody", "", nil, middleware.HeaderAdminKey, adminKey)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPut, "/api/v1/admin/users/u1/disabled", "", map[string]interface{}{},
		middleware.HeaderAdminKey, adminKey)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPut, "/api/v1/admin/users/u1/disabled", "", handler.DisabledRequest{Disabled: boolPtr(true)},
		middleware.HeaderAdminKey, adminKey)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, e.sessions.Count())

	status, env := e.do(t, http.MethodGet, "/api/v1/profile", "u1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestAdminMemberIDOverride(t *testing.T) {
	e := newAPIEnv(t)

	status, _ := e.do(t, http.MethodGet, "/api/v1/profile", "u1", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodPut, "/api/v1/admin/users/u1/member-id", "", handler.MemberIDRequest{MemberID: 42},
		middleware.HeaderAdminKey, adminKey)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodGet, "/api/v1/profile", "u1", nil)
	require.Equal(t, http.StatusOK, status)
	var p handler.ProfileResponse
	decodeData(t, env, &p)
	assert.Equal(t, int64(42), p.Profile.MemberID)
}

func TestStreamTokenFlow(t *testing.T) {
	e := newAPIEnv(t, "key-1")

	status, env := e.do(t, http.MethodPost, "/api/v1/session/token", "u1", nil, "X-API-Key", "key-1")
	require.Equal(t, http.StatusOK, status)
	var tok handler.TokenResponse
	decodeData(t, env, &tok)
	assert.Contains(t, tok.Token, service.TokenPrefix)
	assert.Equal(t, int(service.TokenTTL.Seconds()), tok.ExpiresIn)

	// The token alone identifies the caller, without key or headers.
	status, env = e.do(t, http.MethodGet, "/api/v1/profile?token="+tok.Token, "", nil)
	require.Equal(t, http.StatusOK, status)
	var p handler.ProfileResponse
	decodeData(t, env, &p)
	assert.Equal(t, "u1", p.Profile.UserID)

	status, _ = e.do(t, http.MethodPost, "/api/v1/session/token/refresh", "", nil, middleware.HeaderToken, tok.Token)
	assert.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodPost, "/api/v1/session/token/revoke", "", nil, middleware.HeaderToken, tok.Token)
	assert.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodGet, "/api/v1/profile?token="+tok.Token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestEventStreamSendsInventory(t *testing.T) {
	e := newAPIEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderUserID, "u1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: inventory")

	s, ok := e.sessions.Get("u1")
	require.True(t, ok)
	assert.True(t, s.Foreground())
}

func boolPtr(b bool) *bool { return &b }
