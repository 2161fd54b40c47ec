package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.SetRooms(3)
	m.SetConnections(7)
	m.BroadcastDropped(2)
	m.CartMutation("sync", nil)
	m.CartMutation("sync", errors.New("boom"))
	m.SyncRejected(1)
	m.RefundTransition("APPROVED")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.roomsActive))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.broadcastDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("sync", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncRejectedLines))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refundTransitions.WithLabelValues("APPROVED")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetRooms(1)
		m.BroadcastDropped(1)
		m.CartMutation("add", nil)
		m.RefundTransition("PENDING")
	})
}
