// Package request assembles complete search-engine requests.
package request

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
)

// Kind names the request variant, used for logging and metrics.
type Kind string

// Request kinds.
const (
	KindPages    Kind = "pages"
	KindStats    Kind = "stats"
	KindSimilar  Kind = "similar"
	KindContract Kind = "contract"
)

// Request is a fully built, immutable search request.
type Request struct {
	kind           Kind
	source         []string
	storedFields   []string
	from           *int
	size           int
	trackTotalHits any
	aggs           map[string]query.Aggregation
	must           []query.Clause
	should         []query.Clause
	filter         []query.Clause
	mustNot        []query.Clause
}

// Kind returns the request variant.
func (r *Request) Kind() Kind { return r.kind }

// Source returns the _source include list.
func (r *Request) Source() []string { return slices.Clone(r.source) }

// StoredFields returns the stored field list.
func (r *Request) StoredFields() []string { return slices.Clone(r.storedFields) }

// From returns the offset (0 when unset).
func (r *Request) From() int {
	if r.from == nil {
		return 0
	}
	return *r.from
}

// Size returns the page size.
func (r *Request) Size() int { return r.size }

// TrackTotalHits returns true or a numeric cap.
func (r *Request) TrackTotalHits() any { return r.trackTotalHits }

// AggregationNames returns the sorted top-level aggregation names.
func (r *Request) AggregationNames() []string {
	return slices.Sorted(maps.Keys(r.aggs))
}

// Must returns the top-level must clauses.
func (r *Request) Must() []query.Clause { return slices.Clone(r.must) }

// Should returns the top-level should clauses.
func (r *Request) Should() []query.Clause { return slices.Clone(r.should) }

// Filter returns the top-level filter clauses.
func (r *Request) Filter() []query.Clause { return slices.Clone(r.filter) }

// MustNot returns the top-level must_not clauses.
func (r *Request) MustNot() []query.Clause { return slices.Clone(r.mustNot) }

// Query returns the top-level bool query.
func (r *Request) Query() query.Clause {
	return query.Bool(query.BoolClauses{
		Must:    r.must,
		Should:  r.should,
		Filter:  r.filter,
		MustNot: r.mustNot,
	})
}

type wireRequest struct {
	Source         *wireSource                  `json:"_source,omitempty"`
	StoredFields   []string                     `json:"stored_fields,omitempty"`
	From           *int                         `json:"from,omitempty"`
	Size           int                          `json:"size"`
	TrackTotalHits any                          `json:"track_total_hits,omitempty"`
	Aggs           map[string]query.Aggregation `json:"aggs,omitempty"`
	Query          query.Clause                 `json:"query"`
}

type wireSource struct {
	Includes []string `json:"includes"`
}

// MarshalJSON renders the engine DSL body.
func (r *Request) MarshalJSON() ([]byte, error) {
	w := wireRequest{
		StoredFields:   r.storedFields,
		From:           r.from,
		Size:           r.size,
		TrackTotalHits: r.trackTotalHits,
		Aggs:           r.aggs,
		Query:          r.Query(),
	}
	if len(r.source) > 0 {
		w.Source = &wireSource{Includes: r.source}
	}
	return json.Marshal(w)
}

// Builder assembles a Request by explicit appends.
type Builder struct {
	req Request
}

// NewBuilder starts a request of the given kind.
func NewBuilder(kind Kind) *Builder {
	return &Builder{req: Request{kind: kind}}
}

// Source adds _source include patterns.
func (b *Builder) Source(fields ...string) *Builder {
	b.req.source = append(b.req.source, fields...)
	return b
}

// StoredFields adds stored fields.
func (b *Builder) StoredFields(fields ...string) *Builder {
	b.req.storedFields = append(b.req.storedFields, fields...)
	return b
}

// From sets the offset.
func (b *Builder) From(n int) *Builder {
	b.req.from = &n
	return b
}

// Size sets the page size.
func (b *Builder) Size(n int) *Builder {
	b.req.size = n
	return b
}

// TrackTotalHits requests exact (true) or capped (int) total counting.
func (b *Builder) TrackTotalHits(v any) *Builder {
	b.req.trackTotalHits = v
	return b
}

// Aggregation adds a named top-level aggregation.
func (b *Builder) Aggregation(name string, a query.Aggregation) *Builder {
	if b.req.aggs == nil {
		b.req.aggs = make(map[string]query.Aggregation)
	}
	b.req.aggs[name] = a
	return b
}

// Must appends must clauses.
func (b *Builder) Must(cs ...query.Clause) *Builder {
	b.req.must = append(b.req.must, cs...)
	return b
}

// Should appends should clauses.
func (b *Builder) Should(cs ...query.Clause) *Builder {
	b.req.should = append(b.req.should, cs...)
	return b
}

// Filter appends filter clauses.
func (b *Builder) Filter(cs ...query.Clause) *Builder {
	b.req.filter = append(b.req.filter, cs...)
	return b
}

// MustNot appends must_not clauses.
func (b *Builder) MustNot(cs ...query.Clause) *Builder {
	b.req.mustNot = append(b.req.mustNot, cs...)
	return b
}

// Build returns an independent copy of the assembled request.
func (b *Builder) Build() *Request {
	r := b.req
	r.source = slices.Clone(r.source)
	r.storedFields = slices.Clone(r.storedFields)
	r.aggs = maps.Clone(r.aggs)
	r.must = slices.Clone(r.must)
	r.should = slices.Clone(r.should)
	r.filter = slices.Clone(r.filter)
	r.mustNot = slices.Clone(r.mustNot)
	return &r
}
