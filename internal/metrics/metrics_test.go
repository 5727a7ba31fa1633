package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cooking-ops/internal/database"
	"cooking-ops/internal/shared"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestStoreDailyUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	meta := shared.AgentMeta{
		AgentName: shared.AgentScheduler,
		Usage:     shared.TokenUsage{PromptTokens: 100, CompletionTokens: 50, Model: "gemini"},
		Latency:   1500 * time.Millisecond,
	}
	require.NoError(t, store.RecordMeta(ctx, meta, OutcomeOK))
	require.NoError(t, store.RecordMeta(ctx, meta, OutcomeOK))
	require.NoError(t, store.RecordMeta(ctx, shared.AgentMeta{AgentName: shared.AgentMealPlan}, OutcomeUnavailable))

	usage, err := store.GetDailyUsage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), usage[0].Date)
	assert.Equal(t, 200, usage[0].TotalPrompt)
	assert.Equal(t, 100, usage[0].TotalCompletion)
	assert.Equal(t, 3, usage[0].TotalExecution)
	assert.Equal(t, 1, usage[0].Failures)
}

func TestStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := MapUsage(shared.AgentExtractor, shared.TokenUsage{PromptTokens: 1}, time.Second)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, store.Record(ctx, old))
	require.NoError(t, store.Record(ctx, MapUsage(shared.AgentExtractor, shared.TokenUsage{PromptTokens: 1}, time.Second)))

	deleted, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	usage, err := store.GetDailyUsage(ctx, 60)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].TotalExecution)
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	meta := shared.AgentMeta{
		AgentName: shared.AgentScheduler,
		Usage:     shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
		Latency:   time.Second,
	}
	c.Observe(meta, OutcomeOK)
	c.Observe(meta, OutcomeOK)
	c.Observe(shared.AgentMeta{AgentName: shared.AgentScheduler}, OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues(shared.AgentScheduler, OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues(shared.AgentScheduler, OutcomeFailed)))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.tokens.WithLabelValues(shared.AgentScheduler, "prompt")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestGetSysHealth(t *testing.T) {
	h := GetSysHealth(t.TempDir())
	assert.Positive(t, h.Goroutines)
	assert.Equal(t, "0 B", h.DataDiskSize)
}
