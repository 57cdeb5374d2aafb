// Package response models the raw search-engine response.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Response is a decoded search response body.
type Response struct {
	Took         int          `json:"took,omitempty"`
	TimedOut     bool         `json:"timed_out,omitempty"`
	Hits         Hits         `json:"hits"`
	Aggregations Aggregations `json:"aggregations,omitzero"`
}

// Hits is the hits envelope.
type Hits struct {
	Total Total `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Total is the hit count. Older engines send a bare number.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// UnmarshalJSON accepts {"value": n} and n.
func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		return json.Unmarshal(data, &t.Value)
	}
	type plain Total
	return json.Unmarshal(data, (*plain)(t))
}

// Hit is one result document.
type Hit struct {
	Index     string              `json:"_index,omitempty"`
	ID        string              `json:"_id,omitempty"`
	Score     float64             `json:"_score"`
	Source    map[string]any      `json:"_source,omitempty"`
	Fields    map[string][]any    `json:"fields,omitempty"`
	InnerHits InnerHitGroups      `json:"inner_hits,omitempty"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// InnerHitGroup is the hit list of one named inner hit.
type InnerHitGroup struct {
	Hits struct {
		Total Total      `json:"total"`
		Hits  []InnerHit `json:"hits"`
	} `json:"hits"`
}

// NamedGroup is an inner hit group with its name.
type NamedGroup struct {
	Name  string
	Group InnerHitGroup
}

// InnerHitGroups keeps inner hit groups in response order.
type InnerHitGroups []NamedGroup

// Get returns the named group.
func (g InnerHitGroups) Get(name string) (InnerHitGroup, bool) {
	for _, n := range g {
		if n.Name == name {
			return n.Group, true
		}
	}
	return InnerHitGroup{}, false
}

// UnmarshalJSON decodes the inner_hits object keeping key order.
func (g *InnerHitGroups) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*g = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("inner_hits must be an object")
	}
	var out InnerHitGroups
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var grp InnerHitGroup
		if err := dec.Decode(&grp); err != nil {
			return fmt.Errorf("inner_hits %q: %w", name, err)
		}
		out = append(out, NamedGroup{Name: name, Group: grp})
	}
	*g = out
	return nil
}

// MarshalJSON encodes the groups as an object in order.
func (g InnerHitGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(n.Group)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InnerHit is one nested sub-document that matched.
type InnerHit struct {
	Nested    NestedIdentity      `json:"_nested"`
	Score     float64             `json:"_score"`
	Fields    map[string][]any    `json:"fields,omitempty"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// NestedIdentity locates a nested document inside its parent.
type NestedIdentity struct {
	Field  string `json:"field"`
	Offset int    `json:"offset"`
}

// FieldString returns the first value of a stored field as a string.
func (h InnerHit) FieldString(name string) (string, bool) {
	vs := h.Fields[name]
	if len(vs) == 0 {
		return "", false
	}
	s, ok := vs[0].(string)
	return s, ok
}

// Aggregations holds the obligated-amount rollup aggregations.
type Aggregations struct {
	ContractTotals         *ContractTotals `json:"contractTotals,omitempty"`
	ContractTotalsNoAgency *NoAgencyTotals `json:"contractTotalsNoAgency,omitempty"`
}

// ContractTotals is the nested by-agency aggregation.
type ContractTotals struct {
	DocCount int64 `json:"doc_count"`
	Agencies *struct {
		Buckets []AgencyBucket `json:"buckets"`
	} `json:"agencies,omitempty"`
}

// AgencyBuckets returns the agency buckets, empty when absent.
func (c *ContractTotals) AgencyBuckets() []AgencyBucket {
	if c == nil || c.Agencies == nil {
		return nil
	}
	return c.Agencies.Buckets
}

// AgencyBucket is one agency's obligated-amount total.
type AgencyBucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
	Docs     struct {
		DocCount         int64     `json:"doc_count"`
		ObligatedAmounts SumBucket `json:"obligatedAmounts"`
	} `json:"docs"`
}

// NoAgencyTotals is the filter aggregation over documents with no agency.
type NoAgencyTotals struct {
	DocCount         int64      `json:"doc_count"`
	ObligatedAmounts *SumBucket `json:"obligatedAmounts,omitempty"`
}

// SumBucket is a nested sum of obligated dollars.
type SumBucket struct {
	DocCount int64 `json:"doc_count"`
	SumAgg   struct {
		Value json.Number `json:"value"`
	} `json:"sum_agg"`
}

// NoAgencyBucket returns the no-agency sum bucket, nil when absent.
func (a Aggregations) NoAgencyBucket() *SumBucket {
	if a.ContractTotalsNoAgency == nil {
		return nil
	}
	return a.ContractTotalsNoAgency.ObligatedAmounts
}

// Decode reads a response body.
func Decode(r io.Reader) (*Response, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var resp Response
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &resp, nil
}
