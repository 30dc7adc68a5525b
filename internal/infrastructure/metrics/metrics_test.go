package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionLifecycle(t *testing.T) {
	m := New()

	m.TransitionStarted()
	m.TransitionStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inflight))

	m.TransitionFinished("DEPLOYING", "NO_ERROR", 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("DEPLOYING", "NO_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transitionDuration))
}

func TestCounters(t *testing.T) {
	m := New()

	m.CommandSent("DEPLOY")
	m.CommandSent("DEPLOY")
	m.PublishFailed()
	m.StatusReport(ReportApplied)
	m.StatusReport(ReportStaleParticipant)
	m.ScannerTimeout("composition")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("DEPLOY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues(ReportStaleParticipant)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scannerTimeouts.WithLabelValues("composition")))
}

func TestSetParticipants_ReplacesValues(t *testing.T) {
	m := New()

	m.SetParticipants(map[string]int{"HEALTHY": 3, "OFF_LINE": 1})
	m.SetParticipants(map[string]int{"HEALTHY": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.participants.WithLabelValues("HEALTHY")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.participants))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.TransitionStarted()
		m.TransitionFinished("DEPLOYING", "FAILED", time.Second)
		m.CommandSent("DEPLOY")
		m.PublishFailed()
		m.StatusReport(ReportApplied)
		m.SetParticipants(map[string]int{"HEALTHY": 1})
		m.ScannerTimeout("definition")
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.CommandSent("LOCK")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `acm_participant_commands_total{order="LOCK"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
