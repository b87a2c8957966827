package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Received("download")
		m.Applied("downloads")
		m.Dropped("downloads", "duplicate")
		m.ObserveCommand("get_downloads", time.Millisecond, "NETWORK_ERROR")
		m.SubscriberAdded("downloads")
		m.SubscriberRemoved("downloads")
		m.SetSize("downloads", 3)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.Applied("downloads")
	m.Applied("downloads")
	m.Dropped("downloads", "duplicate")
	m.ObserveCommand("delete_summary", 5*time.Millisecond, "")
	m.ObserveCommand("delete_summary", 5*time.Millisecond, "NOT_FOUND")
	m.SetSize("chats", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("downloads")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues("downloads", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandErrors.WithLabelValues("delete_summary", "NOT_FOUND")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.StoreSize.WithLabelValues("chats")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CommandCalls))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Received("download")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scribe_channel_events_received_total{stream="download"} 1`)
}
