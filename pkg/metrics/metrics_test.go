package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistered(t *testing.T) {
	TradesTotal.WithLabelValues("BUY", "ok").Inc()
	SetActive(true)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "pocketbot_trades_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("pocketbot_trades_total metric not found")
	}
	if got := testutil.ToFloat64(TradingActive); got != 1 {
		t.Fatalf("expected trading active gauge 1, got %v", got)
	}
	SetActive(false)
	if got := testutil.ToFloat64(TradingActive); got != 0 {
		t.Fatalf("expected trading active gauge 0, got %v", got)
	}
}
