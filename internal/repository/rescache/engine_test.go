package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

const rawResponse = `{"took":2,"timed_out":false,"hits":{"total":{"value":1,"relation":"eq"},"hits":[
	{"_id":"d1","_score":2.5,"fields":{"filename":["a.pdf"]},
	 "inner_hits":{"pages":{"hits":{"total":{"value":1},"hits":[
	   {"_nested":{"field":"pages","offset":3},"_score":1.2,"fields":{"pages.pagenumber":[4]}}]}}}}]},
	"aggregations":{"contractTotalsNoAgency":{"doc_count":2,"obligatedAmounts":{"doc_count":2,"sum_agg":{"value":10.25}}}}}`

func sampleResponse(t *testing.T) *response.Response {
	t.Helper()
	resp, err := response.Decode(strings.NewReader(rawResponse))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func pagesRequest(text string) *request.Request {
	return request.NewBuilder(request.KindPages).
		Size(20).
		Must(query.Match("display_title_s", text)).
		Build()
}

func TestSearch_MissThenHit(t *testing.T) {
	inner := &mockEngine{resp: sampleResponse(t)}
	ce, ms, counter := newTestCachedEngine(t, inner)
	ctx := context.Background()

	first, err := ce.Search(ctx, "gamechanger", pagesRequest("navy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ce.Search(ctx, "gamechanger", pagesRequest("navy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected 1 engine call, got %d", inner.calls)
	}
	if len(ms.data) != 1 {
		t.Fatalf("expected 1 cached entry, got %d", len(ms.data))
	}
	for k, ttl := range ms.ttls {
		if !strings.HasPrefix(k, DefaultKeyPrefix+"pages:") {
			t.Errorf("unexpected key %q", k)
		}
		if ttl != time.Minute {
			t.Errorf("expected ttl 1m, got %v", ttl)
		}
	}
	if testutil.ToFloat64(counter.WithLabelValues("miss")) != 1 || testutil.ToFloat64(counter.WithLabelValues("hit")) != 1 {
		t.Error("expected one miss and one hit")
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cached response differs:\n%s\n%s", a, b)
	}
	if _, ok := second.Hits.Hits[0].InnerHits.Get("pages"); !ok {
		t.Error("inner hits lost in cache round-trip")
	}
	if got := second.Aggregations.NoAgencyBucket().SumAgg.Value.String(); got != "10.25" {
		t.Errorf("expected exact sum 10.25, got %s", got)
	}
}

func TestSearch_KeyDependsOnIndexAndBody(t *testing.T) {
	inner := &mockEngine{resp: sampleResponse(t)}
	ce, ms, _ := newTestCachedEngine(t, inner)
	ctx := context.Background()

	_, _ = ce.Search(ctx, "gamechanger", pagesRequest("navy"))
	_, _ = ce.Search(ctx, "gamechanger", pagesRequest("army"))
	_, _ = ce.Search(ctx, "other", pagesRequest("navy"))

	if inner.calls != 3 {
		t.Fatalf("expected 3 engine calls, got %d", inner.calls)
	}
	if len(ms.data) != 3 {
		t.Fatalf("expected 3 cached entries, got %d", len(ms.data))
	}
}

func TestSearch_InnerError(t *testing.T) {
	inner := &mockEngine{err: errors.New("engine down")}
	ce, ms, _ := newTestCachedEngine(t, inner)

	_, err := ce.Search(context.Background(), "gamechanger", pagesRequest("navy"))
	if err == nil || err.Error() != "engine down" {
		t.Fatalf("expected inner error, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Error("errors must not be cached")
	}
}

func TestSearch_StoreFailureDegrades(t *testing.T) {
	inner := &mockEngine{resp: sampleResponse(t)}
	ce, ms, _ := newTestCachedEngine(t, inner)
	ms.getErr = errors.New("connection reset")
	ms.setErr = errors.New("connection reset")

	resp, err := ce.Search(context.Background(), "gamechanger", pagesRequest("navy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Hits.Total.Value != 1 {
		t.Errorf("unexpected total %d", resp.Hits.Total.Value)
	}
}

func TestSearch_CorruptEntryRefetches(t *testing.T) {
	inner := &mockEngine{resp: sampleResponse(t)}
	ce, ms, _ := newTestCachedEngine(t, inner)
	ctx := context.Background()

	_, _ = ce.Search(ctx, "gamechanger", pagesRequest("navy"))
	for k := range ms.data {
		ms.data[k] = []byte(`{"hits":`)
	}
	if _, err := ce.Search(ctx, "gamechanger", pagesRequest("navy")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected refetch after corrupt entry, got %d calls", inner.calls)
	}
}

func TestPurge(t *testing.T) {
	inner := &mockEngine{resp: sampleResponse(t)}
	ce, ms, _ := newTestCachedEngine(t, inner)
	ctx := context.Background()

	_, _ = ce.Search(ctx, "gamechanger", pagesRequest("navy"))
	_, _ = ce.Search(ctx, "gamechanger", pagesRequest("army"))
	ms.data["unrelated"] = []byte("x")

	n, err := ce.Purge(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 purged, got %d", n)
	}
	if _, ok := ms.data["unrelated"]; !ok {
		t.Error("purge removed a key outside the prefix")
	}
}
