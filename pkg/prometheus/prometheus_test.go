package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(&Config{Namespace: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Namespace != "bulk" {
		t.Errorf("Expected Namespace=bulk, got %s", cfg.Namespace)
	}
	if cfg.HTTPServer.Enabled {
		t.Error("Expected HTTPServer.Enabled=false")
	}
	if cfg.HTTPServer.Path != "/metrics" {
		t.Errorf("Expected Path=/metrics, got %s", cfg.HTTPServer.Path)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid config", DefaultConfig(), false},
		{"empty namespace", &Config{}, true},
		{"http server enabled without addr", &Config{
			Namespace:  "test",
			HTTPServer: HTTPServerConfig{Enabled: true},
		}, true},
		{"http server disabled", &Config{Namespace: "test"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := &Config{Namespace: "test", HTTPServer: HTTPServerConfig{Enabled: true, Addr: ":0"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/metrics", cfg.HTTPServer.Path)
	assert.NotZero(t, cfg.HTTPServer.Timeout)
}

func TestNewCounter(t *testing.T) {
	c := newTestClient(t)

	counter, err := c.NewCounter("keys_total", "keys", []string{"result"})
	require.NoError(t, err)
	counter.WithLabelValues("succeed").Add(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(counter.WithLabelValues("succeed")))

	_, err = c.NewCounter("keys_total", "keys", []string{"result"})
	assert.ErrorIs(t, err, ErrMetricExists)

	got, ok := c.GetCounter("keys_total")
	assert.True(t, ok)
	assert.Same(t, counter, got)

	_, ok = c.GetCounter("missing")
	assert.False(t, ok)
}

func TestNewGaugeAndHistogram(t *testing.T) {
	c := newTestClient(t)

	gauge := c.MustNewGauge("running", "running actions", nil)
	gauge.WithLabelValues().Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge.WithLabelValues()))

	hist, err := c.NewHistogram("duration_seconds", "iteration duration", []string{"kind"}, nil)
	require.NoError(t, err)
	hist.WithLabelValues("delete").Observe(0.1)
	assert.Equal(t, 1, testutil.CollectAndCount(hist))

	_, ok := c.GetGauge("running")
	assert.True(t, ok)
	_, ok = c.GetHistogram("duration_seconds")
	assert.True(t, ok)
}

func TestMustNewCounterPanicsOnDuplicate(t *testing.T) {
	c := newTestClient(t)
	c.MustNewCounter("dup", "dup", nil)
	assert.Panics(t, func() { c.MustNewCounter("dup", "dup", nil) })
}

func TestClientClose(t *testing.T) {
	c, err := New(&Config{Namespace: "test"})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Close(), ErrClientClosed)
	assert.NoError(t, c.Stop())

	_, err = c.NewCounter("after_close", "x", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, c.Start(), ErrClientClosed)
}

func TestRegisterCollector(t *testing.T) {
	c := newTestClient(t)
	collector := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "custom"})
	require.NoError(t, c.RegisterCollector(collector))
	assert.Error(t, c.RegisterCollector(collector))
}

func TestHandler(t *testing.T) {
	c := newTestClient(t)
	c.MustNewCounter("handled_total", "handled", nil).WithLabelValues().Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_handled_total")
}

func TestStartServesMetrics(t *testing.T) {
	c, err := New(&Config{
		Namespace:  "test",
		HTTPServer: HTTPServerConfig{Enabled: true, Addr: "127.0.0.1:0"},
	})
	require.NoError(t, err)
	c.MustNewGauge("up", "up", nil).WithLabelValues().Set(1)

	require.NoError(t, c.Start())
	defer c.Stop()

	resp, err := http.Get("http://" + c.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_up 1"))
}
