package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"psymatch/internal/bot"
	"psymatch/internal/config"
	"psymatch/internal/models"
	"psymatch/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	testSecret   = "gateway-secret-at-least-32-chars-long"
	testAdminKey = "admin-key-for-tests"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		Port:                  "0",
		Env:                   "test",
		GatewaySecret:         testSecret,
		AdminKeyHash:          string(hash),
		SessionTTL:            time.Hour,
		NotifyBreakerFailures: 5,
	}
}

func newTestApp(t *testing.T, cfg *config.Config, db *gorm.DB) *fiber.App {
	t.Helper()
	return NewServerWithDeps(cfg, db, nil).NewApp()
}

func gatewayToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "telegram",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func postUpdate(t *testing.T, app *fiber.App, token string, u bot.Update) *http.Response {
	t.Helper()
	body, err := json.Marshal(u)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/updates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func registerSeeker(t *testing.T, app *fiber.App, id int64) {
	t.Helper()
	token := gatewayToken(t)
	updates := []bot.Update{
		{UserID: id, Kind: bot.KindCommand, Command: "/start"},
		{UserID: id, Handle: "ivan", Kind: bot.KindText, Text: "seeker"},
		{UserID: id, Kind: bot.KindText, Text: "Ivan"},
		{UserID: id, Kind: bot.KindText, Text: "Male"},
		{UserID: id, Kind: bot.KindText, Text: "30"},
		{UserID: id, Kind: bot.KindText, Text: "Stress at work"},
	}
	for _, u := range updates {
		resp := postUpdate(t, app, token, u)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "disabled", body.Checks["redis"])
	assert.Equal(t, "closed", body.Checks["notifications"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestHandleUpdate_Auth(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))
	u := bot.Update{UserID: 1, Kind: bot.KindCommand, Command: "help"}

	resp := postUpdate(t, app, "", u)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postUpdate(t, app, "not-a-jwt", u)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postUpdate(t, app, gatewayToken(t), u)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandleUpdate_Validation(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))

	resp := postUpdate(t, app, gatewayToken(t), bot.Update{UserID: 1, Kind: bot.KindButton})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body models.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, models.CodeValidation, body.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/updates", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+gatewayToken(t))
	raw, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, raw.StatusCode)
	_ = raw.Body.Close()
}

func TestHandleUpdate_RegistrationShowsInStats(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))
	registerSeeker(t, app, 8123456789)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats models.GlobalStats
	decode(t, resp, &stats)
	assert.Equal(t, models.GlobalStats{Providers: 0, Seekers: 1}, stats)
}

func adminRequest(method, path, key string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	return req
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t), testutil.NewTestDB(t))
	registerSeeker(t, app, 42)

	t.Run("rejects a missing or wrong key", func(t *testing.T) {
		resp, err := app.Test(adminRequest(http.MethodGet, "/api/admin/users/42", ""))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		resp, err = app.Test(adminRequest(http.MethodGet, "/api/admin/users/42", "wrong"))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("get user", func(t *testing.T) {
		resp, err := app.Test(adminRequest(http.MethodGet, "/api/admin/users/42", testAdminKey))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			User    models.User          `json:"user"`
			Profile models.SeekerProfile `json:"profile"`
			Stats   models.UserStats     `json:"stats"`
		}
		decode(t, resp, &body)
		assert.Equal(t, models.RoleSeeker, body.User.Role)
		assert.Equal(t, "Ivan", body.Profile.Name)
		assert.Equal(t, models.RoleSeeker, body.Stats.Role)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, err := app.Test(adminRequest(http.MethodGet, "/api/admin/users/abc", testAdminKey))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("reset views", func(t *testing.T) {
		resp, err := app.Test(adminRequest(http.MethodDelete, "/api/admin/users/42/views", testAdminKey))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("purge", func(t *testing.T) {
		resp, err := app.Test(adminRequest(http.MethodDelete, "/api/admin/users/42", testAdminKey))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		resp, err = app.Test(adminRequest(http.MethodGet, "/api/admin/users/42", testAdminKey))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminRoutesDisabledWithoutHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminKeyHash = ""
	app := newTestApp(t, cfg, testutil.NewTestDB(t))

	resp, err := app.Test(adminRequest(http.MethodGet, "/api/admin/users/1", testAdminKey))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStatsStorageFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	app := newTestApp(t, testConfig(t), db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "provider_profiles"`).WillReturnError(assert.AnError)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body models.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.Empty(t, body.Details)
}

func TestHandleUpdate_RateLimitedWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	cfg.UpdateRateLimit = 2
	app := NewServerWithDeps(cfg, testutil.NewTestDB(t), rdb).NewApp()
	token := gatewayToken(t)

	resp := postUpdate(t, app, token, bot.Update{UserID: 5, Kind: bot.KindCommand, Command: "start"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	assert.True(t, mr.Exists("session:user:5"), "intake session should live in redis")

	resp = postUpdate(t, app, token, bot.Update{UserID: 5, Kind: bot.KindCommand, Command: "help"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postUpdate(t, app, token, bot.Update{UserID: 5, Kind: bot.KindCommand, Command: "help"})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postUpdate(t, app, token, bot.Update{UserID: 6, Kind: bot.KindCommand, Command: "help"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ready, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	decode(t, ready, &body)
	assert.Equal(t, "healthy", body.Checks["redis"])
}

func TestHandleUpdate_NoLimitByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := NewServerWithDeps(testConfig(t), testutil.NewTestDB(t), rdb).NewApp()
	token := gatewayToken(t)

	for i := 0; i < 5; i++ {
		resp := postUpdate(t, app, token, bot.Update{UserID: 7, Kind: bot.KindCommand, Command: "help"})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.False(t, mr.Exists("rl:updates:7"))
}
