package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pocketbot_signals_total", Help: "Messages parsed as signals by outcome"},
		[]string{"result"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pocketbot_trades_total", Help: "Scheduled trades fired by direction and outcome"},
		[]string{"direction", "result"},
	)
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pocketbot_commands_total", Help: "Administrative commands received"},
		[]string{"command"},
	)
	PendingTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pocketbot_pending_trades", Help: "Trades waiting for their entry time"},
	)
	TradingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pocketbot_trading_active", Help: "1 when signals are being traded"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, TradesTotal, CommandsTotal, PendingTrades, TradingActive)
}

// SetActive mirrors the trading flag.
func SetActive(active bool) {
	if active {
		TradingActive.Set(1)
		return
	}
	TradingActive.Set(0)
}
