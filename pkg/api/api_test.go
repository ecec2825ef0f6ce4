package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/igolaizola/pocketbot/pkg/control"
	"github.com/igolaizola/pocketbot/pkg/signal"
	"github.com/igolaizola/pocketbot/pkg/trade"
	"github.com/igolaizola/pocketbot/pkg/trade/inmem"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() (*Server, *control.State, *inmem.Store) {
	state := &control.State{}
	store := &inmem.Store{}
	s := NewServer(":0", state, control.NewHandler(state, zerolog.Nop()), store, zerolog.Nop())
	return s, state, store
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer()
	rec, body := do(t, s.Router(), "GET", "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestState(t *testing.T) {
	s, state, _ := newTestServer()
	h := s.Router()

	_, body := do(t, h, "GET", "/api/v1/state")
	assert.Equal(t, false, body["active"])

	rec, body := do(t, h, "POST", "/api/v1/state/start")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["active"])
	assert.True(t, state.Active())

	do(t, h, "POST", "/api/v1/state/stop")
	assert.False(t, state.Active())

	rec, _ = do(t, h, "POST", "/api/v1/state/pause")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "GET", "/api/v1/state/start")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, state.Active())
}

func TestTrades(t *testing.T) {
	s, _, store := newTestServer()
	now := time.Now()
	require.NoError(t, store.Update(&trade.Trade{Time: now.Add(-time.Minute), Pair: "EURUSD", Direction: signal.Buy, Stake: decimal.NewFromInt(1)}))
	require.NoError(t, store.Update(&trade.Trade{Time: now.Add(-48 * time.Hour), Pair: "GBPJPY", Direction: signal.Sell, Stake: decimal.NewFromInt(1)}))

	rec, body := do(t, s.Router(), "GET", "/api/v1/trades")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["trades"], 1)

	_, body = do(t, s.Router(), "GET", "/api/v1/trades?since=72h")
	assert.Len(t, body["trades"], 2)

	rec, _ = do(t, s.Router(), "GET", "/api/v1/trades?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer()
	rec, _ := do(t, s.Router(), "GET", "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pocketbot_trading_active")
}
