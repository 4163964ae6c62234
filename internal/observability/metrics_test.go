package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danfengzi/obs-lv2/internal/conf"
)

// testClient does not keep idle connections around for goleak to find.
var testClient = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// because every instance owns its registry.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.Worker)
			assert.NotNil(t, m.Host)
			assert.NotNil(t, m.Plugin)
		})
	}
	wg.Wait()
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m)
	require.Error(t, err)
}

func TestEndpointServesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Worker.ForWorker("w-test").RecordScheduled()
	m.Host.ForDriver("ticker").RecordPumpError()

	settings := &conf.Settings{Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"}}
	endpoint, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, endpoint.GetMetrics())

	server := httptest.NewServer(endpoint.Handler())
	defer server.Close()

	body := get(t, server.URL+"/metrics")
	assert.Contains(t, body, `lv2_worker_scheduled_total{worker_id="w-test"} 1`)
	assert.Contains(t, body, `lv2_host_pump_errors_total{driver="ticker"} 1`)
	assert.Contains(t, body, "go_goroutines")

	assert.Equal(t, "ok\n", get(t, server.URL+"/healthz"))
}

func TestEndpointServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	endpoint, err := NewEndpoint(&conf.Settings{Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"}}, m)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- endpoint.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := testClient.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("endpoint did not stop after cancel")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := testClient.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
