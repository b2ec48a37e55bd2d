package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pairwatch/config"
	"pairwatch/internal/analytics"
	"pairwatch/internal/engine"
	"pairwatch/internal/tickstore"
	"pairwatch/pkg/storage/postgres"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newReadySession(t *testing.T) *engine.Session {
	t.Helper()
	cfg := &config.Config{
		Symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		Pair:    config.PairConfig{X: "BTCUSDT", Y: "ETHUSDT"},
		Analytics: config.AnalyticsConfig{
			Timeframe:       "1s",
			Window:          20,
			ZScoreThreshold: 2.0,
			RefreshInterval: time.Second,
		},
		Buffer: config.BufferConfig{Capacity: 1000},
		Store:  config.StoreConfig{Dedup: "exact"},
	}
	s, err := engine.NewSession(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for i := range 60 {
		ms := base.Add(time.Duration(i) * time.Second).UnixMilli()
		x := 100 + 0.5*float64(i)
		s.OnTick("BTCUSDT", ms, x, "1")
		s.OnTick("ETHUSDT", ms, 2*x+0.01*math.Sin(1.7*float64(i)), "1")
	}
	require.Equal(t, engine.StatusReady, s.Cycle().Status)
	return s
}

func newTestServer(t *testing.T, s Session, b *Broadcaster) *Server {
	t.Helper()
	return NewServer(":0", s, b, zaptest.NewLogger(t))
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

// go test -v --run TestSnapshotEndpoint
func TestSnapshotEndpoint(t *testing.T) {
	srv := newTestServer(t, newReadySession(t), nil)

	rec := do(t, srv, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Status     string   `json:"status"`
		HedgeRatio *float64 `json:"hedge_ratio"`
		Points     []struct {
			ZScore      *float64 `json:"zscore"`
			Correlation *float64 `json:"correlation"`
			Spread      *float64 `json:"spread"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "ready", got.Status)
	require.NotNil(t, got.HedgeRatio)
	assert.InDelta(t, 2.0, *got.HedgeRatio, 0.1)
	require.Len(t, got.Points, 60)
	assert.Nil(t, got.Points[0].ZScore, "undefined before the window fills")
	assert.Nil(t, got.Points[18].Correlation)
	assert.NotNil(t, got.Points[19].ZScore)
	assert.NotNil(t, got.Points[0].Spread)
}

func TestSnapshotViewEncodesNonFiniteAsNull(t *testing.T) {
	nan := math.NaN()
	snap := engine.Snapshot{
		Status: engine.StatusReady,
		Aligned: []tickstore.AlignedPoint{
			{Timestamp: base, X: 1, Y: 2},
			{Timestamp: base.Add(time.Second), X: 1, Y: 2},
			{Timestamp: base.Add(2 * time.Second), X: 1, Y: 2},
		},
		Output: &analytics.Output{
			HedgeRatio:   nan,
			Spread:       []float64{nan, nan, nan},
			ZScore:       analytics.Rolling{Values: []float64{nan, math.Inf(1), nan}, Window: 2},
			Correlation:  analytics.Rolling{Values: []float64{nan, nan, nan}, Window: 2},
			LatestZ:      nan,
			Stationarity: &analytics.ADFResult{Statistic: nan, PValue: nan, CriticalValues: map[string]float64{"5%": -2.9}},
		},
	}

	data, err := json.Marshal(NewSnapshotView(snap))
	require.NoError(t, err, "NaN must never reach encoding/json")

	body := string(data)
	assert.Contains(t, body, `"hedge_ratio":null`)
	assert.Contains(t, body, `"latest_zscore":null`)
	assert.Contains(t, body, `"zscore":null`)
	assert.Contains(t, body, `"statistic":null`)
	assert.NotContains(t, body, "NaN")
}

func TestWaitingSnapshotHasNoAnalytics(t *testing.T) {
	v := NewSnapshotView(engine.Snapshot{Status: engine.StatusWaiting, Timeframe: tickstore.Timeframe1Min})

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"waiting"`)
	assert.Contains(t, string(data), `"points":[]`)
	assert.Contains(t, string(data), `"hedge_ratio":null`)
	assert.NotContains(t, string(data), "stationarity")
}

func TestSettingsEndpoints(t *testing.T) {
	session := newReadySession(t)
	srv := newTestServer(t, session, nil)

	rec := do(t, srv, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timeframe":"1s"`)

	rec = do(t, srv, http.MethodPut, "/settings",
		`{"pair":{"x":"SOLUSDT","y":"ETHUSDT"},"timeframe":"5m","window":50,"threshold":2.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	set := session.Settings()
	assert.Equal(t, engine.Pair{X: "SOLUSDT", Y: "ETHUSDT"}, set.Pair)
	assert.Equal(t, tickstore.Timeframe5Min, set.Timeframe)
	assert.Equal(t, 50, set.Window)
	assert.Equal(t, 2.5, set.Threshold)

	rec = do(t, srv, http.MethodPut, "/settings", `{"window":500}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "window")
	assert.Equal(t, 50, session.Settings().Window)

	// The valid pair is not applied when the window is rejected.
	rec = do(t, srv, http.MethodPut, "/settings", `{"pair":{"x":"BTCUSDT","y":"SOLUSDT"},"window":500}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, set, session.Settings())

	rec = do(t, srv, http.MethodPut, "/settings", `{"windw":20}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/settings", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, newReadySession(t), NewBroadcaster(zaptest.NewLogger(t)))

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analytics":"ready"`)
	assert.Contains(t, rec.Body.String(), `"ws_clients":0`)
	assert.NotContains(t, rec.Body.String(), "checks")

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pairwatch_cycle_total")
}

func TestBroadcastPushesSnapshots(t *testing.T) {
	session := newReadySession(t)
	b := NewBroadcaster(zaptest.NewLogger(t))
	ts := httptest.NewServer(newTestServer(t, session, b).Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	b.Broadcast(session.Snapshot())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got SnapshotView
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, session.Snapshot().CycleID, got.CycleID)
	assert.Equal(t, "ready", got.Status)

	conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, newReadySession(t), nil)
	healthy := true
	srv.AddHealthCheck("postgres", func(ctx context.Context) bool { return healthy })

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"checks":{"postgres":"ok"}`)

	healthy = false
	rec = do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"postgres":"down"`)
}

type stubAlerts struct {
	x, y    string
	limit   int
	records []postgres.AlertRecord
	err     error
}

func (s *stubAlerts) ListAlerts(_ context.Context, x, y string, limit int) ([]postgres.AlertRecord, error) {
	s.x, s.y, s.limit = x, y, limit
	return s.records, s.err
}

// go test -v --run TestAlertsEndpoint
func TestAlertsEndpoint(t *testing.T) {
	id := uuid.New()
	store := &stubAlerts{records: []postgres.AlertRecord{{
		ID:         id,
		CycleID:    42,
		SymbolX:    "BTCUSDT",
		SymbolY:    "ETHUSDT",
		RaisedAt:   base,
		Timeframe:  "1s",
		ZScore:     math.Inf(1),
		Threshold:  2.0,
		HedgeRatio: 2.01,
		Message:    "ALERT: Z-score breached (+Inf)",
	}}}
	srv := newTestServer(t, newReadySession(t), nil)
	srv.ServeAlerts(store)

	rec := do(t, srv, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BTCUSDT", store.x)
	assert.Equal(t, "ETHUSDT", store.y)
	assert.Equal(t, 50, store.limit)

	var got []AlertView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, id.String(), got[0].ID)
	assert.Equal(t, uint64(42), got[0].CycleID)
	assert.Nil(t, got[0].ZScore)
	require.NotNil(t, got[0].HedgeRatio)
	assert.Equal(t, 2.01, *got[0].HedgeRatio)

	rec = do(t, srv, http.MethodGet, "/alerts?x=SOLUSDT&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOLUSDT", store.x)
	assert.Equal(t, 5, store.limit)

	rec = do(t, srv, http.MethodGet, "/alerts?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.err = errors.New("connection reset")
	rec = do(t, srv, http.MethodGet, "/alerts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAlertsRouteAbsentWithoutStore(t *testing.T) {
	srv := newTestServer(t, newReadySession(t), nil)
	rec := do(t, srv, http.MethodGet, "/alerts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
