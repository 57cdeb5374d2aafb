package search

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
	"github.com/kailas-cloud/edasearch/internal/domain/search/result"
)

// Rollup flattens the agency aggregation into one record per agency plus a
// "No Agency" record when that bucket is present. The grand total is the
// exact sum of every emitted record's value.
func Rollup(noAgency *response.SumBucket, buckets []response.AgencyBucket) (result.Rollup, error) {
	totals := make([]result.AgencyTotal, 0, len(buckets)+1)
	sum := decimal.Zero
	for _, b := range buckets {
		v, err := sumValue(b.Docs.ObligatedAmounts.SumAgg.Value)
		if err != nil {
			return result.Rollup{}, fmt.Errorf("agency %q: %w", b.Key, err)
		}
		sum = sum.Add(v)
		totals = append(totals, result.AgencyTotal{Key: b.Key, Count: b.DocCount, Value: result.NewAmount(v)})
	}
	if noAgency != nil {
		v, err := sumValue(noAgency.SumAgg.Value)
		if err != nil {
			return result.Rollup{}, fmt.Errorf("no agency: %w", err)
		}
		sum = sum.Add(v)
		totals = append(totals, result.AgencyTotal{
			Key:   result.NoAgencyKey,
			Count: noAgency.DocCount,
			Value: result.NewAmount(v),
		})
	}
	return result.Rollup{Totals: totals, TotalObligatedAmount: result.NewAmount(sum)}, nil
}

// sumValue reads a sum aggregation value; a missing value sums to zero.
func sumValue(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum value %q: %w", n, err)
	}
	return d, nil
}
