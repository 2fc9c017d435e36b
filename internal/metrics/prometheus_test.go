package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurondb/NeuronDynamic/internal/database"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordToolCall(t *testing.T) {
	m := New()
	m.RecordToolCall("select_public_users", "success", 20*time.Millisecond)
	m.RecordToolCall("select_public_users", "success", 10*time.Millisecond)
	m.RecordToolCall("select_public_users", "error", time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `neurondb_dynamic_tool_calls_total{status="success",tool="select_public_users"} 2`)
	assert.Contains(t, body, `neurondb_dynamic_tool_calls_total{status="error",tool="select_public_users"} 1`)
	assert.Contains(t, body, `neurondb_dynamic_tool_call_duration_seconds_count{tool="select_public_users"} 3`)
}

func TestGenerationAndArtifacts(t *testing.T) {
	m := New()
	m.RecordGeneration("insert", 3, 1)
	m.RecordArtifact("insert", "published")
	m.SetActiveOperations(7)

	body := scrape(t, m)
	assert.Contains(t, body, `neurondb_dynamic_generation_outcomes_total{outcome="generated",verb="insert"} 3`)
	assert.Contains(t, body, `neurondb_dynamic_generation_outcomes_total{outcome="failed",verb="insert"} 1`)
	assert.Contains(t, body, `neurondb_dynamic_artifacts_total{action="published",verb="insert"} 1`)
	assert.Contains(t, body, "neurondb_dynamic_active_operations 7")
}

func TestHandlerExportsPoolStats(t *testing.T) {
	m := New()
	m.RegisterPool(func() database.PoolStats { return database.PoolStats{AcquiredConns: 2, MaxConns: 10} })
	m.RecordToolCall("delete_public_users", "success", time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "neurondb_dynamic_db_pool_acquired_connections 2")
	assert.Contains(t, body, "neurondb_dynamic_db_pool_max_connections 10")
	assert.Contains(t, body, `neurondb_dynamic_tool_calls_total{status="success",tool="delete_public_users"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordToolCall("x", "success", time.Second)
		m.RecordGeneration("select", 1, 0)
		m.RecordArtifact("select", "reused")
		m.SetActiveOperations(1)
		m.RegisterPool(nil)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
