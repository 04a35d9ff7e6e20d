package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/concierge/ai/core/llm"
	"github.com/hrygo/concierge/ai/location"
	"github.com/hrygo/concierge/ai/metrics"
	"github.com/hrygo/concierge/ai/retrieval"
	"github.com/hrygo/concierge/internal/profile"
	"github.com/hrygo/concierge/server/service/concierge"
)

type scriptedGenerator struct{}

func (scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	if strings.Contains(strings.ToLower(req.Prompt), "thời tiết") {
		return `{"city": "Đà Nẵng", "category": "weather"}`, nil
	}
	return `{"city": null, "category": "other"}`, nil
}

func (scriptedGenerator) Provider() string { return "scripted" }
func (scriptedGenerator) Model() string    { return "scripted-1" }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	c, err := concierge.New(concierge.Components{
		Locations: location.NewMemoryStore(
			location.Document{Name: "Đà Nẵng", Norm: "da nang", Aliases: []string{"danang"}},
			location.Document{Name: "Đắk Lắk", Norm: "dak lak"},
			location.Document{Name: "Hà Nội", Norm: "ha noi"},
		),
		Cache:     retrieval.NewMemoryCache(retrieval.MemoryConfig{}),
		Generator: scriptedGenerator{},
		Recorder:  exporter,
	})
	require.NoError(t, err)

	s, err := NewServer(context.Background(), &profile.Profile{Mode: "dev", Version: "0.1.0-dev"}, c, exporter)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/concierge/analyze", `{"message": "Thời tiết Đà Nẵng thế nào"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ask_weather", body["intent"])
	assert.Equal(t, "Đà Nẵng", body["city"])
	assert.Equal(t, "weather_category", body["rule"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestAnalyze_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing message", `{}`, "missing_message"},
		{"blank message", `{"message": "   "}`, "missing_message"},
		{"invalid json", `{"message":`, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/api/v1/concierge/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestQuery_CachesAndClears(t *testing.T) {
	s := newTestServer(t)
	const req = `{"message": "Thời tiết Đà Nẵng thế nào", "filters": {"stars": 4}}`

	rec, first := do(t, s, http.MethodPost, "/api/v1/concierge/query", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, first["cached"])
	assert.Equal(t, `v2|da nang|Đà Nẵng|-|ask_weather|{"stars":4}|{}|-`, first["cache_key"])

	_, second := do(t, s, http.MethodPost, "/api/v1/concierge/query", req)
	assert.Equal(t, true, second["cached"])

	rec, stats := do(t, s, http.MethodGet, "/api/v1/concierge/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["size"])

	rec, cleared := do(t, s, http.MethodDelete, "/api/v1/concierge/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, cleared["cleared"])

	_, third := do(t, s, http.MethodPost, "/api/v1/concierge/query", req)
	assert.Equal(t, false, third["cached"])
}

func TestClearCache_ByProvince(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/concierge/query", `{"message": "Thời tiết Đà Nẵng thế nào"}`)
	do(t, s, http.MethodPost, "/api/v1/concierge/query", `{"message": "xin chào"}`)

	_, stats := do(t, s, http.MethodGet, "/api/v1/concierge/cache", "")
	assert.EqualValues(t, 2, stats["size"])

	rec, body := do(t, s, http.MethodDelete, "/api/v1/concierge/cache?province=danang", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "da nang", body["province"])
	assert.EqualValues(t, 1, body["invalidated"])

	_, stats = do(t, s, http.MethodGet, "/api/v1/concierge/cache", "")
	assert.EqualValues(t, 1, stats["size"])

	_, again := do(t, s, http.MethodPost, "/api/v1/concierge/query", `{"message": "Thời tiết Đà Nẵng thế nào"}`)
	assert.Equal(t, false, again["cached"])
}

func TestQuery_MissingMessage(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/v1/concierge/query", `{"province": "da nang"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_message", body["code"])
}

func TestResolveLocation(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/locations/resolve?province="+url.QueryEscape("Đà Nẵng"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "province_exact", body["method"])

	_, body = do(t, s, http.MethodGet, "/api/v1/locations/resolve?text="+url.QueryEscape("đi danang chơi"), "")
	assert.Equal(t, true, body["found"])
	loc, ok := body["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "da nang", loc["norm"])

	_, body = do(t, s, http.MethodGet, "/api/v1/locations/resolve?text=hello", "")
	assert.Equal(t, false, body["found"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/locations/resolve", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_query", body["code"])
}

func TestAutocompleteLocations(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/locations/autocomplete?prefix=%C4%91a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)

	_, body = do(t, s, http.MethodGet, "/api/v1/locations/autocomplete?prefix=da&limit=1", "")
	assert.Len(t, body["items"], 1)

	rec, body = do(t, s, http.MethodGet, "/api/v1/locations/autocomplete?prefix=da&limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_limit", body["code"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/locations/autocomplete", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_prefix", body["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "0.1.0-dev", body["version"])

	do(t, s, http.MethodPost, "/api/v1/concierge/analyze", `{"message": "xin chào"}`)
	rec, _ = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "concierge_routing_intents_total")
}
