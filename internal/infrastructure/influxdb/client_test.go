package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sensorbus-core/internal/infrastructure/config"
	"github.com/nerrad567/sensorbus-core/internal/infrastructure/influxdb"
)

// fakeInflux serves /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu      sync.Mutex
	lines   []string
	healthy bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{healthy: true}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			f.mu.Lock()
			healthy := f.healthy
			f.mu.Unlock()
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					f.lines = append(f.lines, line)
				}
			}
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// waitLines flushes and polls until at least n lines arrived or a deadline
// passes. The write API sends asynchronously, so Flush alone is not a
// delivery guarantee.
func waitLines(client *influxdb.Client, srv *fakeInflux, n int) []string {
	deadline := time.Now().Add(2 * time.Second)
	for {
		client.Flush()
		lines := srv.written()
		if len(lines) >= n || time.Now().After(deadline) {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "sensorbus-test-token",
		Org:           "sensorbus",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, url string) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(url))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	srv := newFakeInflux(t)
	client := connect(t, srv.URL)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(context.Background(), cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, testConfig("http://127.0.0.1:1"))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv := newFakeInflux(t)
	srv.mu.Lock()
	srv.healthy = false
	srv.mu.Unlock()

	_, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	srv := newFakeInflux(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() with non-positive batch settings error = %v", err)
	}
	client.Close()
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteTemperature(t *testing.T) {
	srv := newFakeInflux(t)
	client := connect(t, srv.URL)

	at := time.Unix(1767225600, 0)
	client.WriteTemperature("28-0316a2794dff", "DS18B20", 21.5, at)

	lines := waitLines(client, srv, 1)
	if len(lines) != 1 {
		t.Fatalf("written %d lines, want 1: %v", len(lines), lines)
	}
	want := "sensor_temperature,model=DS18B20,rom=28-0316a2794dff celsius=21.5 1767225600000000000"
	if lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestWriteBusMetrics(t *testing.T) {
	srv := newFakeInflux(t)
	client := connect(t, srv.URL)

	client.WriteBusMetrics("node-1", nil)
	client.WriteBusMetrics("node-1", map[string]uint64{"sends": 3})

	lines := waitLines(client, srv, 1)
	if len(lines) != 1 {
		t.Fatalf("written %d lines, want 1: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "bus_metrics,node=node-1 sends=3u ") {
		t.Errorf("line = %q", lines[0])
	}
}

func TestWriteAfterClose(t *testing.T) {
	srv := newFakeInflux(t)
	client := connect(t, srv.URL)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	client.WriteTemperature("28-0316a2794dff", "", 20, time.Now())
	client.Flush()

	if n := len(srv.written()); n != 0 {
		t.Errorf("written %d lines after Close, want 0", n)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
