package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()
	a.LinesSent.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.LinesSent))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.LinesSent))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.EventsReceived.Add(5)
	m.RingDrops.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tlbtrace_events_received_total 5"), body)
	assert.True(t, strings.Contains(body, "tlbtrace_ring_drops 2"), body)
}

func TestRegistryCollectsAll(t *testing.T) {
	m := New()
	n, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
