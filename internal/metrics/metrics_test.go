package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.FrameReceived("KeepAlive")
		m.ChannelClosed("OnHook")
		m.WatchObjects(func() int { return 1 })
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.Registration("ok")
	m.FrameSent("KeepAliveAck")
	m.FrameSent("KeepAliveAck")
	m.KeepaliveTimeout()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesTx.WithLabelValues("KeepAliveAck")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.keepaliveTimeouts))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.WatchObjects(func() int { return 7 })
	m.DeviceReset()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "sccp_refcount_objects 7"))
	assert.True(t, strings.Contains(body, "sccp_devices_reset_total 1"))
}
