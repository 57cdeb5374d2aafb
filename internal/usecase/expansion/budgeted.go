package expansion

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/metrics"
)

// UsageExpander is an expansion provider that reports consumed tokens.
type UsageExpander interface {
	ExpandWithUsage(ctx context.Context, terms []string) (map[string][]string, int, error)
}

// Budgeted charges every expansion lookup against a Budget.
type Budgeted struct {
	inner    UsageExpander
	budget   *Budget
	provider string
	logger   *zap.Logger
}

// NewBudgeted wraps an expander with a token budget.
func NewBudgeted(inner UsageExpander, budget *Budget, provider string, logger *zap.Logger) *Budgeted {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Budgeted{inner: inner, budget: budget, provider: provider, logger: logger}
}

// Expand runs the lookup unless the budget rejects it. Tokens are recorded
// even when the provider answer could not be used.
func (e *Budgeted) Expand(ctx context.Context, terms []string) (map[string][]string, error) {
	if err := e.budget.Check(ctx); err != nil {
		metrics.ExpansionBudgetRejectedTotal.Inc()
		return nil, err
	}

	dict, tokens, err := e.inner.ExpandWithUsage(ctx, terms)
	if tokens > 0 {
		e.budget.Record(int64(tokens))
		metrics.ExpansionTokensTotal.WithLabelValues(e.provider).Add(float64(tokens))
	}
	if err != nil {
		return nil, err
	}
	return dict, nil
}
