package search

import (
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

func bucket(key string, count int64, value string) response.AgencyBucket {
	var b response.AgencyBucket
	b.Key = key
	b.DocCount = count
	b.Docs.ObligatedAmounts.SumAgg.Value = json.Number(value)
	return b
}

func sumBucket(count int64, value string) *response.SumBucket {
	b := &response.SumBucket{DocCount: count}
	b.SumAgg.Value = json.Number(value)
	return b
}

func TestRollup_Empty(t *testing.T) {
	r, err := Rollup(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Totals) != 0 {
		t.Errorf("Totals = %v", r.Totals)
	}
	if !r.TotalObligatedAmount.IsZero() {
		t.Errorf("total = %s", r.TotalObligatedAmount)
	}
}

func TestRollup_NoAgencyPresentWithZeroDocs(t *testing.T) {
	r, err := Rollup(sumBucket(0, "0"), []response.AgencyBucket{bucket("ARMY", 1, "10")})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Totals) != 2 {
		t.Fatalf("got %d records, want 2", len(r.Totals))
	}
	if r.Totals[1].Key != "No Agency" || r.Totals[1].Count != 0 {
		t.Errorf("no agency record = %+v", r.Totals[1])
	}
}

func TestRollup_InvalidValue(t *testing.T) {
	if _, err := Rollup(nil, []response.AgencyBucket{bucket("X", 1, "NaN?")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRollup_MissingValueIsZero(t *testing.T) {
	r, err := Rollup(sumBucket(2, ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !r.TotalObligatedAmount.IsZero() {
		t.Errorf("total = %s", r.TotalObligatedAmount)
	}
}

// The grand total equals the sum of every emitted record, and the record
// count is the bucket count plus one when the no-agency bucket is present.
func TestRollup_TotalInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for iter := range 200 {
		n := rng.IntN(12)
		buckets := make([]response.AgencyBucket, n)
		for i := range buckets {
			cents := rng.Int64N(1_000_000_000)
			buckets[i] = bucket("A"+strconv.Itoa(i), rng.Int64N(50), decimal.New(cents, -2).String())
		}
		var noAgency *response.SumBucket
		if rng.IntN(2) == 0 {
			noAgency = sumBucket(rng.Int64N(10), decimal.New(rng.Int64N(10_000_000), -2).String())
		}

		r, err := Rollup(noAgency, buckets)
		if err != nil {
			t.Fatalf("iter %d: %v", iter, err)
		}
		want := n
		if noAgency != nil {
			want++
		}
		if len(r.Totals) != want {
			t.Fatalf("iter %d: %d records, want %d", iter, len(r.Totals), want)
		}
		sum := decimal.Zero
		for _, rec := range r.Totals {
			sum = sum.Add(rec.Value.Decimal)
		}
		if !sum.Equal(r.TotalObligatedAmount.Decimal) {
			t.Fatalf("iter %d: total %s != sum %s", iter, r.TotalObligatedAmount, sum)
		}
	}
}
