package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/topagents/idp-discovery/internal/db"
	"github.com/topagents/idp-discovery/internal/discovery"
	"github.com/topagents/idp-discovery/internal/logging"
	"github.com/topagents/idp-discovery/internal/metrics"
)

func newTestRouter(t *testing.T, password string) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	store := db.NewIntegrationStore(gdb)

	promRegistry := metrics.NewRegistry()
	m := metrics.NewMetrics(promRegistry)
	return NewRouter(Options{
		Registry:        discovery.NewRegistry(store, nil, discovery.WithObserver(m)),
		Store:           store,
		Metrics:         m,
		MetricsRegistry: promRegistry,
		AdminPassword:   password,
		CORSOrigins:     []string{"https://console.example.com"},
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_AdminRoutesRequirePassword(t *testing.T) {
	h := newTestRouter(t, "s3cret")

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/discovery/idp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/discovery/idp", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Public routes stay open.
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/discovery/apps?idp_id=unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/discovery/idp", strings.NewReader(`{"display_name":"x","type":"okta","domain":"acme.okta.com","api_token":"t"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported provider type")
}

func TestRouter_AdminRoutesOpenWithoutPassword(t *testing.T) {
	h := newTestRouter(t, "")
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/discovery/idp", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequestIDAndMetrics(t *testing.T) {
	h := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(logging.HeaderRequestID, "req-42")
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(logging.HeaderRequestID))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `topagents_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/discovery/idp", nil).WithContext(context.Background())
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)
	assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
