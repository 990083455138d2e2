package router

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the router's prometheus instruments. Registration happens
// once in NewMetrics against the injected Registerer.
type Metrics struct {
	liquidityOps *prometheus.CounterVec
	swapsTotal   *prometheus.CounterVec
	swapDuration *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		liquidityOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amm_router_liquidity_ops_total",
				Help: "Liquidity operations handled by the router, by operation and status.",
			},
			[]string{"op", "status"},
		),
		swapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amm_router_swaps_total",
				Help: "Path swaps handled by the router, by status.",
			},
			[]string{"status"},
		),
		swapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amm_router_swap_duration_seconds",
				Help:    "Time spent executing a path swap, dry run included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{},
		),
	}

	registerer.MustRegister(m.liquidityOps, m.swapsTotal, m.swapDuration)
	return m
}

const (
	statusOK    = "ok"
	statusError = "error"
)

func statusOf(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
