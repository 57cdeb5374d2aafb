// Package result holds the normalized search result shape.
package result

import (
	"encoding/json"
	"maps"

	"github.com/shopspring/decimal"
)

// Highlight entry titles.
const (
	TitleHighlight   = "Title"
	KeywordHighlight = "Keywords"
)

// NoAgencyKey is the rollup key of documents with no contracting agency.
const NoAgencyKey = "No Agency"

// PageHit is one snippet of a document: a per-page inner hit or a labeled
// title/keyword highlight.
type PageHit struct {
	snippet    string
	pageNumber int
	title      string
	match      *FragmentMatch
}

// FragmentMatch describes the reference fragment a similarity hit matched.
type FragmentMatch struct {
	ID          string
	ParagraphID *int
	Score       float64
	Text        string
}

// NewPageHit creates a snippet for a page.
func NewPageHit(snippet string, pageNumber int) PageHit {
	return PageHit{snippet: snippet, pageNumber: pageNumber}
}

// NewFragmentPageHit creates a snippet for a page matched by a reference fragment.
func NewFragmentPageHit(snippet string, pageNumber int, m FragmentMatch) PageHit {
	return PageHit{snippet: snippet, pageNumber: pageNumber, match: &m}
}

// NewHighlightHit creates a labeled highlight entry that is not tied to a page.
func NewHighlightHit(title, snippet string) PageHit {
	return PageHit{snippet: snippet, title: title}
}

// Snippet returns the highlighted text.
func (p PageHit) Snippet() string { return p.snippet }

// PageNumber returns the 1-based page number; 0 is the un-paginated preamble.
func (p PageHit) PageNumber() int { return p.pageNumber }

// Title returns the highlight label, empty for page hits.
func (p PageHit) Title() string { return p.title }

// IsHighlight reports whether this is a title/keyword entry.
func (p PageHit) IsHighlight() bool { return p.title != "" }

// Match returns the matched fragment, nil for non-similarity hits.
func (p PageHit) Match() *FragmentMatch { return p.match }

// MarshalJSON renders the UI shape of the entry.
func (p PageHit) MarshalJSON() ([]byte, error) {
	if p.IsHighlight() {
		return json.Marshal(struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		}{p.title, p.snippet})
	}
	if p.match == nil {
		return json.Marshal(struct {
			Snippet    string `json:"snippet"`
			PageNumber int    `json:"pageNumber"`
		}{p.snippet, p.pageNumber})
	}
	return json.Marshal(struct {
		Snippet                 string  `json:"snippet"`
		PageNumber              int     `json:"pageNumber"`
		ParagraphIDBeingMatched *int    `json:"paragraphIdBeingMatched,omitempty"`
		Score                   float64 `json:"score"`
		Text                    string  `json:"text"`
		ID                      string  `json:"id"`
	}{p.snippet, p.pageNumber, p.match.ParagraphID, p.match.Score, p.match.Text, p.match.ID})
}

// Document is one flattened, normalized hit.
type Document struct {
	fields       map[string]any
	pageHits     []PageHit
	pageHitCount int
}

// NewDocument starts a document from a flattened base record.
func NewDocument(base map[string]any) *Document {
	fields := make(map[string]any, len(base)+16)
	maps.Copy(fields, base)
	return &Document{fields: fields}
}

// Set assigns a field.
func (d *Document) Set(key string, value any) { d.fields[key] = value }

// SetIfPresent assigns a field only when value is non-nil.
func (d *Document) SetIfPresent(key string, value any) {
	if value != nil {
		d.fields[key] = value
	}
}

// Get returns a field.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// String returns a string field, empty when absent or not a string.
func (d *Document) String(key string) string {
	s, _ := d.fields[key].(string)
	return s
}

// Filename returns the document's filename field.
func (d *Document) Filename() string { return d.String("filename") }

// Fields returns a copy of the flattened fields.
func (d *Document) Fields() map[string]any { return maps.Clone(d.fields) }

// SetPageHits replaces the snippet list and the distinct page count.
func (d *Document) SetPageHits(hits []PageHit, pageHitCount int) {
	d.pageHits = hits
	d.pageHitCount = pageHitCount
}

// PageHits returns the snippet list.
func (d *Document) PageHits() []PageHit { return d.pageHits }

// PageHitCount returns the number of distinct pages with a snippet.
func (d *Document) PageHitCount() int { return d.pageHitCount }

// MarshalJSON renders the flattened fields plus pageHits and pageHitCount.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.fields)+2)
	maps.Copy(out, d.fields)
	hits := d.pageHits
	if hits == nil {
		hits = []PageHit{}
	}
	out["pageHits"] = hits
	out["pageHitCount"] = d.pageHitCount
	return json.Marshal(out)
}

// Amount is an exact dollar amount rendered as a JSON number.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// MarshalJSON renders the amount without quotes.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// AgencyTotal is one flattened obligated-amount bucket.
type AgencyTotal struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
	Value Amount `json:"value"`
}

// Rollup is the flattened agency aggregation with its grand total.
type Rollup struct {
	Totals               []AgencyTotal
	TotalObligatedAmount Amount
}

// Results is the normalized search result envelope.
type Results struct {
	Query                string              `json:"query"`
	TotalCount           int64               `json:"totalCount"`
	Docs                 []*Document         `json:"docs"`
	IssuingOrgs          []AgencyTotal       `json:"issuingOrgs"`
	TotalObligatedAmount Amount              `json:"totalObligatedAmount"`
	SearchTerms          []string            `json:"searchTerms"`
	ExpansionDict        map[string][]string `json:"expansionDict"`
	SearchID             string              `json:"searchId,omitempty"`
}

// Stats is the aggregate-reporting result.
type Stats struct {
	TotalCount int64       `json:"totalCount"`
	Docs       []*Document `json:"docs"`
}
