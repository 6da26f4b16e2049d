package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/dashboard"
	"github.com/dyetrack/dyetrack/internal/intake"
	"github.com/dyetrack/dyetrack/internal/observability"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
	"github.com/dyetrack/dyetrack/report"
	_ "github.com/dyetrack/dyetrack/testing"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	api := http.NewServeMux()
	api.HandleFunc("GET /batches", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":1,"company_name":"Acme","lot_number":"LOT-1","in_time":"2024-03-01T08:00:00"}]`)
	})
	api.HandleFunc("GET /{kind}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	})
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 100}
	templates, err := view.NewEngine()
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	client := restapi.New(apiServer.URL, time.Second, restapi.WithObserver(metrics))
	service := batches.NewService(batches.NewRepository(client), batches.NewRedisItemCache(redisClient, time.Minute), logger)
	refs := reference.NewRepository(client)
	csrf := shared.NewCSRFManager("csrfsecret")

	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   shared.NewSessionManager(redisClient, "dyetrack_session", "secret", time.Hour, false),
		CSRFManager:      csrf,
		Metrics:          metrics,
		DashboardHandler: dashboard.NewHandler(logger, service, templates, csrf),
		IntakeHandler:    intake.NewHandler(logger, service, refs, templates, csrf),
		ReportHandler:    report.NewHandler(report.NewClient(""), logger),
	})
}

func TestHealthzAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `dyetrack_api_calls_total{code="200",endpoint="/batches",method="GET"} 1`)
	assert.Contains(t, rr.Body.String(), "dyetrack_http_requests_total")
}

func TestHomeSetsSessionAndSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "dyetrack_session=")
	assert.Contains(t, rr.Body.String(), "LOT-1")
}

func TestStaticAssetsAreCached(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/js/app.js", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Contains(t, rr.Body.String(), "pagehide")
	assert.Empty(t, rr.Header().Get("Set-Cookie"), "assets do not start sessions")
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{"action": {"save"}, "lot_number": {"LOT-9"}}
	req := httptest.NewRequest(http.MethodPost, "/entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReportPingDisabled(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report/ping", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rr.Body.String())
}
