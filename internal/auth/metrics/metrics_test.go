package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskdeck/internal/auth/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.ObserveOp("sign_in", metrics.OutcomeSuccess, time.Millisecond)
		m.RefreshReuseDetected()
		m.TokenRejected("expired")
	})
}

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.ObserveOp("refresh", metrics.OutcomeSuccess, 10*time.Millisecond)
	m.ObserveOp("refresh", metrics.OutcomeRejected, time.Millisecond)
	m.ObserveOp("refresh", metrics.OutcomeRejected, time.Millisecond)
	m.RefreshReuseDetected()
	m.TokenRejected("expired")
	m.TokenRejected("")

	expected := `
# HELP taskdeck_auth_session_operations_total Session operations by name and outcome.
# TYPE taskdeck_auth_session_operations_total counter
taskdeck_auth_session_operations_total{op="refresh",outcome="rejected"} 2
taskdeck_auth_session_operations_total{op="refresh",outcome="success"} 1
# HELP taskdeck_auth_refresh_token_reuse_detected_total Refresh attempts with a token id that was already rotated away or revoked.
# TYPE taskdeck_auth_refresh_token_reuse_detected_total counter
taskdeck_auth_refresh_token_reuse_detected_total 1
# HELP taskdeck_auth_token_rejected_total Tokens that failed verification, by failure kind.
# TYPE taskdeck_auth_token_rejected_total counter
taskdeck_auth_token_rejected_total{kind="expired"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"taskdeck_auth_session_operations_total",
		"taskdeck_auth_refresh_token_reuse_detected_total",
		"taskdeck_auth_token_rejected_total",
	))
	n, err := testutil.GatherAndCount(m.Registry(), "taskdeck_auth_session_operation_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.RefreshReuseDetected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "taskdeck_auth_refresh_token_reuse_detected_total 1")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
