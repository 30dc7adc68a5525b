package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "acm-dev-token",
		Org:           "acm",
		Bucket:        "lifecycle",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *Client {
	t.Helper()
	client, err := Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

// recordingWriter captures points instead of sending them.
type recordingWriter struct {
	api.WriteAPI

	mu      sync.Mutex
	lines   []string
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, write.PointToLineProtocol(p, time.Nanosecond))
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *recordingWriter) last(t *testing.T) string {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.lines) == 0 {
		t.Fatal("no points written")
	}
	return w.lines[len(w.lines)-1]
}

// ─── Connection ────────────────────────────────────────────────────

func TestConnect(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClose_FlushesAndDisconnects(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, testConfig())

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	c.Flush()
	if w.flushes != 1 {
		t.Error("Flush() after Close should be a no-op")
	}
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteTransition(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, testConfig())

	c.WriteTransition(TransitionRecord{
		InstanceID:    "ac-1",
		CompositionID: "def-1",
		Operation:     "DEPLOYING",
		Result:        "TIMEOUT",
		Partitions:    3,
		Duration:      1500 * time.Millisecond,
	})

	line := w.last(t)
	for _, want := range []string{
		MeasurementTransition,
		"instance_id=ac-1",
		"operation=DEPLOYING",
		"result=TIMEOUT",
		"duration_ms=1500i",
		"partitions=3i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteElementStatistics(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, testConfig())
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	c.WriteElementStatistics(ElementRecord{
		InstanceID:    "ac-1",
		ElementID:     "e-1",
		ParticipantID: "p-http",
		DeployState:   "DEPLOYED",
		LockState:     "LOCKED",
		Timestamp:     ts,
	})

	line := w.last(t)
	if !strings.Contains(line, `deploy_state="DEPLOYED"`) || !strings.Contains(line, "participant_id=p-http") {
		t.Errorf("unexpected line %q", line)
	}
	if strings.Contains(line, "operational_state") {
		t.Errorf("empty operational state should be omitted: %q", line)
	}
	if !strings.Contains(line, " 1772355600000000000") {
		t.Errorf("line %q should carry the report timestamp", line)
	}
}

func TestWriteParticipantStatistics(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, testConfig())

	c.WriteParticipantStatistics(ParticipantRecord{
		ParticipantID:  "p-k8s",
		State:          "ON_LINE",
		Health:         "NOT_HEALTHY",
		SupportedTypes: 2,
	})

	line := w.last(t)
	if !strings.Contains(line, `health="NOT_HEALTHY"`) || !strings.Contains(line, "supported_types=2i") {
		t.Errorf("unexpected line %q", line)
	}
}

func TestWrite_SkippedWhenDisconnected(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, testConfig())
	c.connected = false

	c.WriteTransition(TransitionRecord{InstanceID: "ac-1"})

	if len(w.lines) != 0 {
		t.Errorf("expected no writes while disconnected, got %d", len(w.lines))
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newWithWriter(&recordingWriter{}, testConfig())
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("bucket not found")
	close(errs)
	c.handleWriteErrors(errs)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback got %v", err)
		}
	default:
		t.Fatal("error callback not invoked")
	}
}
