// Package expansion guards the query expansion provider with a token budget.
package expansion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
)

// KeyPrefix namespaces persisted budget counters.
const KeyPrefix = "edasearch:budget:"

// Action defines behavior when the token budget is spent.
type Action string

const (
	// ActionWarn logs and lets the lookup through.
	ActionWarn Action = "warn"
	// ActionReject skips the lookup.
	ActionReject Action = "reject"
)

// ParseAction maps a config value to an Action. Empty means warn.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionWarn:
		return ActionWarn, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("unknown budget action %q", s)
	}
}

// CounterStore persists budget counters. IncrBy may be called repeatedly.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Budget tracks expansion tokens per UTC day and month. Check never leaves
// memory; Record writes behind to the store when one is attached.
type Budget struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          CounterStore
	logger         *zap.Logger
	now            func() time.Time
}

// NewBudget creates a budget. A zero limit is unlimited.
func NewBudget(provider string, dailyLimit, monthlyLimit int64, action Action, logger *zap.Logger) *Budget {
	return newBudgetAt(provider, dailyLimit, monthlyLimit, action, logger, func() time.Time { return time.Now().UTC() })
}

func newBudgetAt(
	provider string, dailyLimit, monthlyLimit int64,
	action Action, logger *zap.Logger, now func() time.Time,
) *Budget {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := now()
	return &Budget{
		dailyLimit:     dailyLimit,
		monthlyLimit:   monthlyLimit,
		action:         action,
		provider:       provider,
		lastDayReset:   truncateToDay(t),
		lastMonthReset: truncateToMonth(t),
		logger:         logger,
		now:            now,
	}
}

// WithStore attaches a store and loads the current counters from it.
func (b *Budget) WithStore(ctx context.Context, store CounterStore) *Budget {
	b.store = store
	b.load(ctx)
	return b
}

func (b *Budget) load(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	if val, err := b.store.Get(ctx, b.dailyKey(t)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("load daily expansion budget", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, b.monthlyKey(t)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("load monthly expansion budget", zap.Error(err))
	}

	b.logger.Info("expansion budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
}

func (b *Budget) dailyKey(t time.Time) string {
	return fmt.Sprintf("%s%s:daily:%s", KeyPrefix, b.provider, t.Format("2006-01-02"))
}

func (b *Budget) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%s%s:monthly:%s", KeyPrefix, b.provider, t.Format("2006-01"))
}

// Check reports whether another lookup may run.
func (b *Budget) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == ActionReject {
		return domain.ErrExpansionBudgetExceeded
	}

	b.logger.Warn("expansion token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens.
func (b *Budget) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	t := b.now()
	dailyKey := b.dailyKey(t)
	monthlyKey := b.monthlyKey(t)
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a cancelled search still persists usage.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		b.logger.Warn("persist daily expansion budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		b.logger.Warn("persist monthly expansion budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns tokens left today, or -1 when unlimited.
func (b *Budget) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left this month, or -1 when unlimited.
func (b *Budget) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// DailyUsed returns tokens consumed today.
func (b *Budget) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *Budget) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *Budget) resetIfNeeded() {
	t := b.now()
	today := truncateToDay(t)
	thisMonth := truncateToMonth(t)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
