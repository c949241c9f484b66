package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/scan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler("monitor", time.Now().UTC().Add(-3*time.Second))

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "monitor", body["mode"])
	assert.GreaterOrEqual(t, body["uptime_seconds"].(float64), 3.0)
}

func TestStatusReportsScanPulse(t *testing.T) {
	pulse := &scan.Pulse{}
	pulse.Observe(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 2)

	h := NewStatusHandler("trade", true, time.Now().UTC(), ledger.New(testLogger()), nil, nil, testLogger()).
		WithPulse(pulse)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "trade", body["mode"])
	assert.Equal(t, true, body["paper"])
	assert.Equal(t, false, body["router_enabled"])
	assert.Equal(t, float64(0), body["positions"])
	assert.Equal(t, float64(2), body["scan_count"])
	assert.NotEmpty(t, body["last_scan_at"])
}

func TestToggleRouterWithoutRouter(t *testing.T) {
	h := NewStatusHandler("monitor", true, time.Now().UTC(), ledger.New(testLogger()), nil, nil, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/router", strings.NewReader(`{"enabled":true}`))
	h.ToggleRouter(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeDemoVenue struct {
	simulator int
	paper     int
	live      int
}

func (f *fakeDemoVenue) DemoTrade(ctx context.Context) error           { f.simulator++; return nil }
func (f *fakeDemoVenue) PaperDemoTrade(ctx context.Context) error      { f.paper++; return nil }
func (f *fakeDemoVenue) AutotraderDemoTrade(ctx context.Context) error { f.live++; return nil }

func TestDemoPaperAccountRunsSimulator(t *testing.T) {
	venue := &fakeDemoVenue{}
	h := NewDemoHandler(venue, true, 8*time.Second, testLogger())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/demo", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "paper", body["target"])
	assert.Equal(t, 1, venue.paper)
	assert.Zero(t, venue.live)
}

func TestDemoLiveRequiresConfirm(t *testing.T) {
	venue := &fakeDemoVenue{}
	h := NewDemoHandler(venue, false, 8*time.Second, testLogger())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/demo", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, venue.live)

	rec = httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/demo", strings.NewReader(`{"confirm":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, venue.live)
}
