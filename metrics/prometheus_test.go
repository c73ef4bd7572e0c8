package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/types"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	m, err := NewPrometheusMetrics(logger.NewZapWrapper(zap.NewNop()), &types.MetricsConfig{
		Enabled:   true,
		Namespace: "sai_feed",
	})
	require.NoError(t, err)
	return m
}

func TestPrometheusMetrics_CounterSharesSeries(t *testing.T) {
	m := newTestMetrics(t)
	labels := map[string]string{"name": "like-post", "result": "success"}

	m.Counter("mutations_total", labels).Inc()
	m.Counter("mutations_total", labels).Add(2)

	assert.Equal(t, 3.0, m.Counter("mutations_total", labels).Get())
	assert.Zero(t, m.Counter("mutations_total", map[string]string{"name": "like-post", "result": "error"}).Get())
}

func TestPrometheusMetrics_Gauge(t *testing.T) {
	m := newTestMetrics(t)

	g := m.Gauge("mutations_pending", map[string]string{"name": "create-post"})
	g.Set(2)
	assert.Equal(t, 2.0, g.Get())
}

func TestPrometheusMetrics_LabelMismatch(t *testing.T) {
	m := newTestMetrics(t)

	m.Counter("gateway_requests_total", map[string]string{"method": "GET"}).Inc()
	c := m.Counter("gateway_requests_total", map[string]string{"path": "/posts"})

	assert.IsType(t, noopMetric{}, c)
}

func TestPrometheusMetrics_Histogram(t *testing.T) {
	m := newTestMetrics(t)

	h := m.Histogram("query_cache_fetch_duration_seconds", []float64{0.1, 1}, map[string]string{})
	h.Observe(0.2)
	h.ObserveDuration(time.Now().Add(-time.Second))

	assert.Equal(t, uint64(2), h.GetCount())
}

func TestPrometheusMetrics_ServesRegistry(t *testing.T) {
	m := newTestMetrics(t)
	m.Counter("query_cache_operations_total", map[string]string{"operation": "fetch", "result": "success"}).Inc()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.routes(&ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `sai_feed_query_cache_operations_total{operation="fetch",result="success"} 1`)

	var other fasthttp.RequestCtx
	other.Request.SetRequestURI("/health")
	m.routes(&other)
	assert.Equal(t, fasthttp.StatusNotFound, other.Response.StatusCode())
}

func TestPrometheusMetrics_LifecycleWithoutAddress(t *testing.T) {
	m := newTestMetrics(t)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrAlreadyRunning)

	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Stop(), types.ErrNotRunning)
}

func TestNewMetricsManager(t *testing.T) {
	log := logger.NewZapWrapper(zap.NewNop())

	_, err := NewMetricsManager(log, nil)
	assert.ErrorIs(t, err, types.ErrMetricsIsDisabled)

	_, err = NewMetricsManager(log, &types.MetricsConfig{Enabled: true, Type: "statsd"})
	assert.ErrorIs(t, err, types.ErrMetricsTypeUnknown)

	custom := newTestMetrics(t)
	RegisterMetricsManager("custom", func(config interface{}) (types.MetricsManager, error) {
		return custom, nil
	})
	m, err := NewMetricsManager(log, &types.MetricsConfig{Enabled: true, Type: "custom"})
	require.NoError(t, err)
	assert.Same(t, custom, m)
}
