package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	return res.Body.String()
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("allow")
	m.RecordDecision("allow")
	m.RecordDecision("deny")

	body := scrape(t, m)
	assert.Contains(t, body, `akademos_gate_decisions_total{outcome="allow"} 2`)
	assert.Contains(t, body, `akademos_gate_decisions_total{outcome="deny"} 1`)
}

func TestSetCatalogStateIsOneHot(t *testing.T) {
	m := NewMetrics()
	m.SetCatalogState("fresh")

	body := scrape(t, m)
	assert.Contains(t, body, `akademos_catalog_state{state="fresh"} 1`)
	assert.Contains(t, body, `akademos_catalog_state{state="loading"} 0`)

	m.SetCatalogState("stale")
	body = scrape(t, m)
	assert.Contains(t, body, `akademos_catalog_state{state="fresh"} 0`)
	assert.Contains(t, body, `akademos_catalog_state{state="stale"} 1`)
}

func TestObserveCatalogRefresh(t *testing.T) {
	m := NewMetrics()
	m.ObserveCatalogRefresh(250 * time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "akademos_catalog_refresh_duration_seconds_count 1")
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/authz/check", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	body := scrape(t, m)
	assert.Contains(t, body, `akademos_http_requests_total{code="418",route="/authz/check"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordDecision("allow")
	m.SetCatalogState("fresh")
	m.ObserveCatalogRefresh(time.Second)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}
