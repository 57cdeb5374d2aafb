// Package query holds immutable search-engine DSL clause values.
//
// Clauses are built by the constructors in this package and composed into
// larger trees with Bool and Nested. A Clause never exposes its body, so once
// built it cannot be mutated by a caller that holds a copy.
package query

import (
	"encoding/json"
	"maps"
)

// Clause is one immutable query DSL predicate.
type Clause struct {
	kind string
	body any
}

// Kind returns the top-level DSL key ("bool", "nested", "match", ...).
func (c Clause) Kind() string { return c.kind }

// IsZero reports whether the clause was never built.
func (c Clause) IsZero() bool { return c.kind == "" }

// MarshalJSON renders the clause as {"<kind>": <body>}.
func (c Clause) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any{c.kind: c.body})
}

func newClause(kind string, body any) Clause {
	return Clause{kind: kind, body: body}
}

// Match is {"match": {field: value}}.
func Match(field string, value any) Clause {
	return newClause("match", map[string]any{field: value})
}

// MatchQuery is a match in object form; an empty operator is omitted.
func MatchQuery(field, text, operator string) Clause {
	inner := map[string]any{"query": text}
	if operator != "" {
		inner["operator"] = operator
	}
	return newClause("match", map[string]any{field: inner})
}

// MatchPhrase is {"match_phrase": {field: phrase}}.
func MatchPhrase(field, phrase string) Clause {
	return newClause("match_phrase", map[string]any{field: phrase})
}

// Term is an exact, unanalyzed match.
func Term(field string, value any) Clause {
	return newClause("term", map[string]any{field: value})
}

// Exists matches documents where field has a value.
func Exists(field string) Clause {
	return newClause("exists", map[string]any{"field": field})
}

// Wildcard builds a wildcard clause. A zero boost is omitted.
func Wildcard(field, value string, boost float64) Clause {
	inner := map[string]any{"value": value}
	if boost != 0 {
		inner["boost"] = boost
	}
	return newClause("wildcard", map[string]any{field: inner})
}

// QueryStringOptions configures a query_string clause. Empty values are omitted.
type QueryStringOptions struct {
	Query              string
	DefaultField       string
	DefaultOperator    string
	Fuzziness          any
	FuzzyMaxExpansions int
}

// QueryString builds a query_string clause.
func QueryString(o QueryStringOptions) Clause {
	body := map[string]any{"query": o.Query}
	if o.DefaultField != "" {
		body["default_field"] = o.DefaultField
	}
	if o.DefaultOperator != "" {
		body["default_operator"] = o.DefaultOperator
	}
	if o.Fuzziness != nil {
		body["fuzziness"] = o.Fuzziness
	}
	if o.FuzzyMaxExpansions > 0 {
		body["fuzzy_max_expansions"] = o.FuzzyMaxExpansions
	}
	return newClause("query_string", body)
}

// Bounds are inclusive range bounds. Nil bounds are left out of the clause.
type Bounds struct {
	GTE    any
	LTE    any
	Format string
}

// IsEmpty reports whether neither bound is set.
func (b Bounds) IsEmpty() bool { return b.GTE == nil && b.LTE == nil }

// Range builds a range clause carrying only the supplied bounds.
func Range(field string, b Bounds) Clause {
	inner := map[string]any{}
	if b.GTE != nil {
		inner["gte"] = b.GTE
	}
	if b.LTE != nil {
		inner["lte"] = b.LTE
	}
	if b.Format != "" {
		inner["format"] = b.Format
	}
	return newClause("range", map[string]any{field: inner})
}

// MultiMatch searches text across several fields.
func MultiMatch(text string, fields []string, operator string) Clause {
	return newClause("multi_match", map[string]any{
		"query":    text,
		"fields":   append([]string(nil), fields...),
		"operator": operator,
	})
}

// RankFeature boosts by a precomputed numeric feature.
func RankFeature(field string, boost float64) Clause {
	return newClause("rank_feature", map[string]any{"field": field, "boost": boost})
}

// BoolClauses are the arrays of a bool query. Empty arrays are omitted.
type BoolClauses struct {
	Must    []Clause
	Should  []Clause
	Filter  []Clause
	MustNot []Clause
}

// Bool composes clauses into a bool query.
func Bool(b BoolClauses) Clause {
	body := map[string]any{}
	put := func(key string, cs []Clause) {
		if len(cs) > 0 {
			body[key] = append([]Clause(nil), cs...)
		}
	}
	put("must", b.Must)
	put("should", b.Should)
	put("filter", b.Filter)
	put("must_not", b.MustNot)
	return newClause("bool", body)
}

// Should is shorthand for a bool query with only should clauses.
func Should(cs ...Clause) Clause { return Bool(BoolClauses{Should: cs}) }

// Must is shorthand for a bool query with only must clauses.
func Must(cs ...Clause) Clause { return Bool(BoolClauses{Must: cs}) }

// MustNot is shorthand for a bool query with only must_not clauses.
func MustNot(cs ...Clause) Clause { return Bool(BoolClauses{MustNot: cs}) }

// NestedOption customizes a nested clause.
type NestedOption func(map[string]any)

// WithInnerHits attaches inner hit retrieval to a nested clause.
func WithInnerHits(ih InnerHits) NestedOption {
	return func(m map[string]any) { m["inner_hits"] = ih }
}

// WithScoreMode sets how nested scores combine ("max", "avg", ...).
func WithScoreMode(mode string) NestedOption {
	return func(m map[string]any) { m["score_mode"] = mode }
}

// Nested scopes q to the nested documents under path.
func Nested(path string, q Clause, opts ...NestedOption) Clause {
	body := map[string]any{"path": path, "query": q}
	for _, o := range opts {
		o(body)
	}
	return newClause("nested", body)
}

// InnerHits configures inner hit retrieval for a nested clause.
type InnerHits struct {
	Name         string     `json:"name,omitempty"`
	Source       *bool      `json:"_source,omitempty"`
	StoredFields []string   `json:"stored_fields,omitempty"`
	From         *int       `json:"from,omitempty"`
	Size         int        `json:"size,omitempty"`
	Highlight    *Highlight `json:"highlight,omitempty"`
}

// Highlight configures snippet highlighting.
type Highlight struct {
	Fields     map[string]HighlightField `json:"fields"`
	Fragmenter string                    `json:"fragmenter,omitempty"`
}

// HighlightField configures highlighting of one field.
type HighlightField struct {
	FragmentSize      int  `json:"fragment_size,omitempty"`
	NumberOfFragments *int `json:"number_of_fragments,omitempty"`
}

// Ptr returns a pointer to v, for optional DSL values.
func Ptr[T any](v T) *T { return &v }

// Aggregation is one immutable aggregation definition with optional sub-aggregations.
type Aggregation struct {
	kind string
	body any
	subs map[string]Aggregation
}

// MarshalJSON renders {"<kind>": <body>, "aggs": {...}}.
func (a Aggregation) MarshalJSON() ([]byte, error) {
	out := map[string]any{a.kind: a.body}
	if len(a.subs) > 0 {
		out["aggs"] = a.subs
	}
	return json.Marshal(out)
}

// With returns a copy of a with a named sub-aggregation added.
func (a Aggregation) With(name string, sub Aggregation) Aggregation {
	subs := make(map[string]Aggregation, len(a.subs)+1)
	maps.Copy(subs, a.subs)
	subs[name] = sub
	a.subs = subs
	return a
}

// NestedAgg scopes sub-aggregations to a nested path.
func NestedAgg(path string) Aggregation {
	return Aggregation{kind: "nested", body: map[string]any{"path": path}}
}

// ReverseNestedAgg escapes back to the parent document.
func ReverseNestedAgg() Aggregation {
	return Aggregation{kind: "reverse_nested", body: map[string]any{}}
}

// TermsAgg buckets by field value.
func TermsAgg(field string, size int) Aggregation {
	return Aggregation{kind: "terms", body: map[string]any{"field": field, "size": size}}
}

// SumAgg sums a numeric field.
func SumAgg(field string) Aggregation {
	return Aggregation{kind: "sum", body: map[string]any{"field": field}}
}

// FilterAgg restricts sub-aggregations to documents matching q.
func FilterAgg(q Clause) Aggregation {
	return Aggregation{kind: "filter", body: q}
}
