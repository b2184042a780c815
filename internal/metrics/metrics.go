// Package metrics exposes Prometheus instrumentation for tool calls, broker
// calls and orders.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brokerage_mcp"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "MCP tool call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	brokerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "calls_total",
			Help:      "Brokerage API calls by method and outcome",
		},
		[]string{"method", "status"},
	)

	brokerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "duration_seconds",
			Help:      "Brokerage API call latency",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders accepted by the broker",
		},
		[]string{"side", "type"},
	)

	estimatedProfit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pnl",
			Name:      "estimated_day_trade_profit",
			Help:      "Most recent day-trade profit estimate",
		},
	)
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ObserveTool records one tool call. ok is false when the tool answered with
// an error payload.
func ObserveTool(tool string, ok bool, d time.Duration) {
	s := StatusOK
	if !ok {
		s = StatusError
	}
	toolCalls.WithLabelValues(tool, s).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func ObserveBroker(method string, err error, d time.Duration) {
	brokerCalls.WithLabelValues(method, status(err)).Inc()
	brokerDuration.WithLabelValues(method).Observe(d.Seconds())
}

func OrderPlaced(side, orderType string) {
	ordersPlaced.WithLabelValues(side, orderType).Inc()
}

func SetEstimatedProfit(v float64) {
	estimatedProfit.Set(v)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
