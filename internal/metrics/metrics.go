// Package metrics exposes Prometheus collectors for rooms, carts and refunds.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	roomsActive       prometheus.Gauge
	connectionsActive prometheus.Gauge
	broadcastDropped  prometheus.Counter
	cartMutations     *prometheus.CounterVec
	syncRejectedLines prometheus.Counter
	refundTransitions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shoproom", Name: "rooms_active", Help: "Rooms with at least one member.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shoproom", Name: "connections_active", Help: "Registered live connections.",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoproom", Name: "broadcast_dropped_total", Help: "Room events not delivered due to backpressure.",
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoproom", Name: "cart_mutations_total", Help: "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		syncRejectedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoproom", Name: "cart_sync_rejected_lines_total", Help: "Sync lines skipped as invalid.",
		}),
		refundTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoproom", Name: "refund_transitions_total", Help: "Refunds created or processed by resulting status.",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(
		m.roomsActive, m.connectionsActive, m.broadcastDropped,
		m.cartMutations, m.syncRejectedLines, m.refundTransitions,
	)
	return m
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.roomsActive.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(n))
}

func (m *Metrics) BroadcastDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.broadcastDropped.Add(float64(n))
}

func (m *Metrics) CartMutation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cartMutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SyncRejected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.syncRejectedLines.Add(float64(n))
}

func (m *Metrics) RefundTransition(status string) {
	if m == nil {
		return
	}
	m.refundTransitions.WithLabelValues(status).Inc()
}
