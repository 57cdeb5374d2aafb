package expansion

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

type fakeExpander struct {
	dict   map[string][]string
	tokens int
	err    error
	calls  int
}

func (f *fakeExpander) ExpandWithUsage(_ context.Context, _ []string) (map[string][]string, int, error) {
	f.calls++
	return f.dict, f.tokens, f.err
}

func TestBudgeted_RecordsTokens(t *testing.T) {
	inner := &fakeExpander{dict: map[string][]string{"ammo": {"ammunition"}}, tokens: 30}
	budget := NewBudget("openai", 100, 0, ActionReject, zap.NewNop())
	e := NewBudgeted(inner, budget, "openai", zap.NewNop())

	before := testutil.ToFloat64(metrics.ExpansionTokensTotal.WithLabelValues("openai"))
	dict, err := e.Expand(context.Background(), []string{"ammo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ammunition"}, dict["ammo"])
	assert.Equal(t, int64(30), budget.DailyUsed())
	assert.InDelta(t, before+30, testutil.ToFloat64(metrics.ExpansionTokensTotal.WithLabelValues("openai")), 0.001)
}

func TestBudgeted_RejectsWhenSpent(t *testing.T) {
	inner := &fakeExpander{tokens: 60}
	budget := NewBudget("openai", 100, 0, ActionReject, zap.NewNop())
	e := NewBudgeted(inner, budget, "openai", zap.NewNop())

	before := testutil.ToFloat64(metrics.ExpansionBudgetRejectedTotal)
	_, err := e.Expand(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = e.Expand(context.Background(), []string{"b"})
	require.NoError(t, err)

	_, err = e.Expand(context.Background(), []string{"c"})
	assert.ErrorIs(t, err, domain.ErrExpansionBudgetExceeded)
	assert.Equal(t, 2, inner.calls)
	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.ExpansionBudgetRejectedTotal), 0.001)
}

func TestBudgeted_ChargesFailedLookups(t *testing.T) {
	inner := &fakeExpander{tokens: 25, err: errors.New("bad json")}
	budget := NewBudget("openai", 0, 0, ActionWarn, zap.NewNop())
	e := NewBudgeted(inner, budget, "openai", nil)

	dict, err := e.Expand(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Nil(t, dict)
	assert.Equal(t, int64(25), budget.DailyUsed())
}
