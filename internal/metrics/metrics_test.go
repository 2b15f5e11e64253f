package metrics_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-expense/internal/metrics"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Request("text", "ok")
	m.Request("text", "ok")
	m.Request("audio", "RATE_LIMIT_EXCEEDED")
	m.QuotaRejected("free")
	m.UsageRecorded()
	m.Upstream("extraction", time.Now(), nil)
	m.Upstream("transcription", time.Now(), errors.New("boom"))

	expected := `
# HELP voice_expense_parse_requests_total Extraction requests by input kind and outcome code.
# TYPE voice_expense_parse_requests_total counter
voice_expense_parse_requests_total{input="audio",outcome="RATE_LIMIT_EXCEEDED"} 1
voice_expense_parse_requests_total{input="text",outcome="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "voice_expense_parse_requests_total"))

	count, err := testutil.GatherAndCount(reg, "voice_expense_upstream_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Request("text", "ok")
		m.QuotaRejected("pro")
		m.UsageRecorded()
		m.Upstream("extraction", time.Now(), nil)
	})
}
