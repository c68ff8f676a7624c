package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("resolve", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncStageResult("resolve", ResultSuccess)
	pr.IncRunOutcome("success")
	pr.AddFailures("processor", 2)
	pr.AddFailures("processor", 0)
	pr.SetPages(7)
	pr.SetNodes(12)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
		if mf.GetName() == "modeldoc_failures_total" {
			assert.InDelta(t, 2, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	for _, n := range []string{"modeldoc_stage_duration_seconds", "modeldoc_run_outcomes_total", "modeldoc_site_pages", "modeldoc_graph_nodes"} {
		assert.True(t, names[n], n)
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncRunOutcome("success")
		pr.SetPages(1)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetPages(3)
	out := filepath.Join(t.TempDir(), "modeldoc.prom")

	require.NoError(t, WriteTextfile(reg, out))
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "modeldoc_site_pages 3")
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("warning")
	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `modeldoc_run_outcomes_total{outcome="warning"} 1`)
}
