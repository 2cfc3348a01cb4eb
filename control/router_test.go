package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/metrics"
	"github.com/synaptecltd/sensorsim/sensor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	fleet  *emulator.Fleet
	ctrl   *anomaly.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	fleet, err := emulator.NewFleet(5, emulator.WithSeed(42), emulator.WithInjectorOptions(anomaly.WithObserver(m)))
	require.NoError(t, err)

	router := NewRouter(Dependencies{
		Controller:   fleet.Controller(),
		Fleet:        fleet,
		Gatherer:     reg,
		AllowOrigins: []string{"http://dashboard.local"},
	})
	return &testServer{router: router, fleet: fleet, ctrl: fleet.Controller()}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEnableDisable(t *testing.T) {
	s := newTestServer(t)

	testcases := []struct {
		name     string
		body     string
		code     int
		expected float64
	}{
		{"explicit rate", `{"rate": 0.1}`, http.StatusOK, 0.1},
		{"default rate", "", http.StatusOK, anomaly.DefaultRate},
		{"rate out of range", `{"rate": 1.5}`, http.StatusBadRequest, 0},
		{"malformed", `{"rate": "high"}`, http.StatusBadRequest, 0},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/anomalies/enable", tc.body)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.code != http.StatusOK {
				return
			}
			body := decode(t, rec)
			assert.Equal(t, true, body["enabled"])
			assert.InDelta(t, tc.expected, body["rate"], 1e-12)
		})
	}

	rec := s.do(http.MethodPost, "/api/anomalies/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	enabled, _ := s.ctrl.Enabled()
	assert.False(t, enabled)
}

func TestForceStatusAndClear(t *testing.T) {
	s := newTestServer(t)
	units := s.fleet.Units()
	oven, lamp := units[0], units[2]

	rec := s.do(http.MethodPost, "/api/anomalies/force",
		`{"sensor_id": "`+oven.ID+`", "category": "oven", "type": "spike", "duration": 30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["injected"])

	// category resolved from the fleet
	rec = s.do(http.MethodPost, "/api/anomalies/force", `{"sensor_id": "`+lamp.ID+`", "type": "stuck_on", "duration": 10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/anomalies/force", `{"sensor_id": "`+oven.ID+`", "category": "oven", "type": "flicker"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/anomalies/force", `{"sensor_id": "ghost-1", "type": "spike"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/anomalies/force", `{"category": "oven", "type": "spike"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "sensor_id is required")

	rec = s.do(http.MethodGet, "/api/anomalies/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status anomaly.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 2, status.ActiveCount)
	assert.Equal(t, anomaly.Spike, status.ActiveBySensor[oven.ID].Type)
	assert.Equal(t, 30, status.ActiveBySensor[oven.ID].RemainingDuration)
	assert.Len(t, status.RecentHistory, 2)

	rec = s.do(http.MethodPost, "/api/anomalies/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["cleared"])
	assert.Equal(t, 0, s.ctrl.Injector().ActiveCount())
}

func TestSensors(t *testing.T) {
	s := newTestServer(t)
	s.fleet.Tick(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	rec := s.do(http.MethodGet, "/api/sensors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int                     `json:"count"`
		Sensors []emulator.UnitSnapshot `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 6, body.Count)
	require.Len(t, body.Sensors, 6)
	assert.Equal(t, sensor.Oven, body.Sensors[0].Category)
	require.NotNil(t, body.Sensors[0].LastValue)
	assert.Equal(t, uint64(1), body.Sensors[0].ReadingCount)
}

func TestSensorsWithoutFleet(t *testing.T) {
	ctrl := anomaly.NewController(anomaly.NewInjector(), nil, nil)
	router := NewRouter(Dependencies{Controller: ctrl, Gatherer: prometheus.NewRegistry()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sensors", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	require.True(t, s.ctrl.ForceInject(s.fleet.Units()[0].ID, "oven", anomaly.Drift, 5))
	rec = s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sensorsim_anomalies_injected_total{category="oven",type="drift"} 1`)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/anomalies/status", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/anomalies/status", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
