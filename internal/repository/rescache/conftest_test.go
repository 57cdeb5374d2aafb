package rescache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/db"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

type mockEngine struct {
	resp  *response.Response
	err   error
	calls int
}

func (m *mockEngine) Search(_ context.Context, _ string, _ *request.Request) (*response.Response, error) {
	m.calls++
	return m.resp, m.err
}

// mockKVStore is an in-memory store with injectable failures.
type mockKVStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockKVStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := pattern[:len(pattern)-1]
	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockKVStore) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func newTestCachedEngine(t *testing.T, inner *mockEngine) (*CachedEngine, *mockKVStore, *prometheus.CounterVec) {
	t.Helper()
	ms := newMockKVStore()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ce := New(inner, ms, time.Minute, "", counter, zap.NewNop())
	return ce, ms, counter
}
