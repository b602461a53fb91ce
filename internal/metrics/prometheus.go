package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "binance_sweep_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry           *prometheus.Registry
	cyclesCompleted    prometheus.Counter
	cyclesFailed       prometheus.Counter
	ordersPlaced       prometheus.Counter
	ordersFailed       prometheus.Counter
	ordersSimulated    prometheus.Counter
	assetsConsolidated prometheus.Counter
	dustConversions    prometheus.Counter
	dustDeferred       prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_completed_total",
		Help:      "Total number of sweep cycles completed.",
	})
	cyclesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_failed_total",
		Help:      "Total number of sweep cycles aborted by an error.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of market sell orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of market sell order failures.",
	})
	ordersSimulated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_simulated_total",
		Help:      "Total number of sells simulated in dry-run mode.",
	})
	assetsConsolidated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "assets_consolidated_total",
		Help:      "Total number of balances moved into the spot wallet.",
	})
	dustConversions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "dust_conversions_total",
		Help:      "Total number of dust batches converted to BNB.",
	})
	dustDeferred := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "dust_deferred_total",
		Help:      "Total number of dust batches deferred by the cooldown.",
	})

	registry.MustRegister(cyclesCompleted, cyclesFailed, ordersPlaced, ordersFailed,
		ordersSimulated, assetsConsolidated, dustConversions, dustDeferred)

	m := &Metrics{
		CyclesCompleted:    promCounter{cyclesCompleted},
		CyclesFailed:       promCounter{cyclesFailed},
		OrdersPlaced:       promCounter{ordersPlaced},
		OrdersFailed:       promCounter{ordersFailed},
		OrdersSimulated:    promCounter{ordersSimulated},
		AssetsConsolidated: promCounter{assetsConsolidated},
		DustConversions:    promCounter{dustConversions},
		DustDeferred:       promCounter{dustDeferred},
	}

	return &Prometheus{
		Metrics:            m,
		registry:           registry,
		cyclesCompleted:    cyclesCompleted,
		cyclesFailed:       cyclesFailed,
		ordersPlaced:       ordersPlaced,
		ordersFailed:       ordersFailed,
		ordersSimulated:    ordersSimulated,
		assetsConsolidated: assetsConsolidated,
		dustConversions:    dustConversions,
		dustDeferred:       dustDeferred,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
