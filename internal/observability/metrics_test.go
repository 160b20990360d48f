package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/unifiedui/community-gateway/internal/observability"
)

func TestMetrics_Recording(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.RecordGateDecision("protected", "redirect_signin")
	m.RecordGateDecision("protected", "redirect_signin")
	m.RecordRefresh(true)
	m.RecordRefresh(false)
	m.RecordChat("stream", "completed")
	m.RecordCacheLookup(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisionsTotal.WithLabelValues("protected", "redirect_signin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRefreshesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRefreshesTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequestsTotal.WithLabelValues("stream", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
}

func TestMetrics_ActiveStreams(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	done := m.StreamStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveStreams))

	m.ObserveFirstToken(300 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.TimeToFirstTokenSeconds))
}

// TestMetrics_Nil tests that a nil metrics value is a no-op.
func TestMetrics_Nil(t *testing.T) {
	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.RecordGateDecision("public", "proceed")
		m.RecordRefresh(true)
		m.RecordChat("predict", "failed")
		m.StreamStarted()()
		m.ObserveFirstToken(time.Second)
		m.RecordCacheLookup(false)
	})
}
