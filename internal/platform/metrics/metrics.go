package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics owns the storefront collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	cartMutations *prometheus.CounterVec
	storageOps    *prometheus.CounterVec
	orders        prometheus.Counter
}

// New registers the storefront collectors plus the process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cartMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "mutations_total",
				Help:      "Cart mutations by operation and result.",
			},
			[]string{"op", "result"},
		),
		storageOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Key-value storage reads and writes by result.",
			},
			[]string{"op", "result"},
		),
		orders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Orders confirmed by the checkout flow.",
			},
		),
	}
	m.registry.MustRegister(
		m.cartMutations,
		m.storageOps,
		m.orders,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// CartMutation counts one cart mutation attempt.
func (m *Metrics) CartMutation(op, result string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op, result).Inc()
}

// StorageOperation counts one storage call.
func (m *Metrics) StorageOperation(op, result string) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(op, result).Inc()
}

// OrderPlaced counts one confirmed order.
func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.orders.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
