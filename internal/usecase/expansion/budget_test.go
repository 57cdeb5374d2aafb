package expansion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
)

type mockCounterStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{data: make(map[string]int64)}
}

func (m *mockCounterStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockCounterStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func (m *mockCounterStore) value(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBudget_RejectWhenDailyExceeded(t *testing.T) {
	b := NewBudget("openai", 100, 0, ActionReject, zap.NewNop())
	b.Record(100)
	assert.ErrorIs(t, b.Check(context.Background()), domain.ErrExpansionBudgetExceeded)
}

func TestBudget_RejectWhenMonthlyExceeded(t *testing.T) {
	b := NewBudget("openai", 0, 500, ActionReject, zap.NewNop())
	b.Record(500)
	assert.ErrorIs(t, b.Check(context.Background()), domain.ErrExpansionBudgetExceeded)
}

func TestBudget_WarnLetsLookupThrough(t *testing.T) {
	b := NewBudget("openai", 100, 0, ActionWarn, zap.NewNop())
	b.Record(200)
	assert.NoError(t, b.Check(context.Background()))
}

func TestBudget_UnlimitedWhenZero(t *testing.T) {
	b := NewBudget("openai", 0, 0, ActionReject, zap.NewNop())
	b.Record(999999999)
	assert.NoError(t, b.Check(context.Background()))
	assert.Equal(t, int64(-1), b.RemainingDaily())
	assert.Equal(t, int64(-1), b.RemainingMonthly())
}

func TestBudget_Remaining(t *testing.T) {
	b := NewBudget("openai", 1000, 10000, ActionWarn, zap.NewNop())
	b.Record(300)
	assert.Equal(t, int64(700), b.RemainingDaily())
	assert.Equal(t, int64(9700), b.RemainingMonthly())

	b.Record(5000)
	assert.Zero(t, b.RemainingDaily())
}

func TestBudget_ResetsOnRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC)}
	b := newBudgetAt("openai", 100, 1000, ActionReject, zap.NewNop(), clock.now)

	b.Record(100)
	require.ErrorIs(t, b.Check(context.Background()), domain.ErrExpansionBudgetExceeded)

	clock.t = clock.t.Add(2 * time.Hour)
	assert.NoError(t, b.Check(context.Background()))
	assert.Zero(t, b.DailyUsed())
	assert.Zero(t, b.MonthlyUsed())
}

func TestBudget_DailyResetKeepsMonth(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)}
	b := newBudgetAt("openai", 100, 1000, ActionWarn, zap.NewNop(), clock.now)

	b.Record(60)
	clock.t = clock.t.Add(2 * time.Hour)

	assert.Zero(t, b.DailyUsed())
	assert.Equal(t, int64(60), b.MonthlyUsed())
}

func TestBudget_WithStoreLoadsCounters(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	store := newMockCounterStore()
	store.data["edasearch:budget:openai:daily:2026-10-14"] = 300
	store.data["edasearch:budget:openai:monthly:2026-10"] = 5000

	b := newBudgetAt("openai", 1000, 10000, ActionReject, zap.NewNop(), clock.now).
		WithStore(context.Background(), store)

	assert.Equal(t, int64(300), b.DailyUsed())
	assert.Equal(t, int64(5000), b.MonthlyUsed())
}

func TestBudget_RecordPersists(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	store := newMockCounterStore()
	b := newBudgetAt("openai", 10000, 100000, ActionWarn, zap.NewNop(), clock.now).
		WithStore(context.Background(), store)

	b.Record(100)
	b.Record(200)

	assert.Equal(t, int64(300), b.DailyUsed())
	assert.Equal(t, int64(300), store.value("edasearch:budget:openai:daily:2026-10-14"))
	assert.Equal(t, int64(300), store.value("edasearch:budget:openai:monthly:2026-10"))
}

func TestBudget_StoreErrorsStayInMemory(t *testing.T) {
	store := newMockCounterStore()
	store.getErr = errors.New("connection refused")

	b := NewBudget("openai", 1000, 10000, ActionReject, zap.NewNop()).WithStore(context.Background(), store)
	assert.Zero(t, b.DailyUsed())

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	b.Record(50)
	assert.Equal(t, int64(50), b.DailyUsed())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("")
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, a)

	a, err = ParseAction("reject")
	require.NoError(t, err)
	assert.Equal(t, ActionReject, a)

	_, err = ParseAction("block")
	assert.Error(t, err)
}
