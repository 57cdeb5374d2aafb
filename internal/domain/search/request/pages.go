package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
)

// Defaults for pages and stats requests.
const (
	DefaultLimit        = 20
	DefaultCharsPadding = 90
	DefaultOperator     = "and"

	innerHitsSize      = 5
	filenameBoost      = 15
	fuzzyMaxExpansions = 100
	pageRankBoost      = 0.5
	keywordScoreBoost  = 0.1
	agencyBucketSize   = 1000000
)

// Aggregation names of the obligated-amount rollup.
const (
	AggContractTotals         = "contractTotals"
	AggContractTotalsNoAgency = "contractTotalsNoAgency"
	AggAgencies               = "agencies"
	AggDocs                   = "docs"
	AggObligatedAmounts       = "obligatedAmounts"
	AggSum                    = "sum_agg"
)

const fieldAgencyKeyword = filter.FieldAgencyName + ".keyword"

// DefaultStoredFields are returned for every pages hit unless overridden.
var DefaultStoredFields = []string{
	"filename", "title", "page_count", "doc_type", "doc_num", "ref_list", "id",
	"summary_30", "keyw_5", "p_text", "type", "p_page",
	"display_title_s", "display_org_s", "display_doc_type_s",
}

var pagesSource = []string{
	"pagerank_r", "kw_doc_score_r", "orgs_rs", "*_eda_n*", "fpds*",
	"sow_pws_text_eda_ext_t", "clins_text_n", "clins_parsed_n",
}

var statsSource = []string{"extracted_data_eda_n", "metadata_type_eda_ext", "fpds_ng_n"}

var boostFields = []string{"keyw_5^2", "id^2", "summary_30", filter.FieldPageText}

var innerHitStoredFields = []string{"pages.filename", filter.FieldPageText}

// PagesParams are the inputs of a per-document pages search.
type PagesParams struct {
	SearchText      string          `json:"searchText"`
	ParsedQuery     string          `json:"parsedQuery"`
	Offset          int             `json:"offset"`
	Limit           int             `json:"limit"`
	CharsPadding    int             `json:"charsPadding"`
	Operator        string          `json:"operator"`
	StoredFields    []string        `json:"storedFields,omitempty"`
	ExtStoredFields []string        `json:"extStoredFields,omitempty"`
	ExtSearchFields []string        `json:"extSearchFields,omitempty"`
	Settings        settings.Search `json:"edaSearchSettings"`
}

// StatsParams are the inputs of an aggregate-reporting search.
type StatsParams struct {
	SearchText      string          `json:"searchText"`
	ParsedQuery     string          `json:"parsedQuery"`
	Limit           int             `json:"limit"`
	Operator        string          `json:"operator"`
	ExtSearchFields []string        `json:"extSearchFields,omitempty"`
	Settings        settings.Search `json:"edaSearchSettings"`
}

// StatsParams derives the stats inputs of the same search.
func (p PagesParams) StatsParams() StatsParams {
	return StatsParams{
		SearchText:      p.SearchText,
		ParsedQuery:     p.ParsedQuery,
		Limit:           p.Limit,
		Operator:        p.Operator,
		ExtSearchFields: p.ExtSearchFields,
		Settings:        p.Settings,
	}
}

func normalizeOperator(op string) (string, error) {
	op = strings.ToLower(strings.TrimSpace(op))
	switch op {
	case "":
		return DefaultOperator, nil
	case "and", "or":
		return op, nil
	}
	return "", fmt.Errorf("%w: operator must be 'and' or 'or', got %q", domain.ErrInvalidRequest, op)
}

func normalizeLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must be >= 0", domain.ErrInvalidRequest)
	}
	if limit == 0 {
		return DefaultLimit, nil
	}
	return limit, nil
}

// NewPages builds the pages request: nested page text match with inner-hit
// snippets, rank-feature boosts, the obligated-amount aggregation tree and
// the given filters in the filter array.
func NewPages(p PagesParams, filters []query.Clause) (*Request, error) {
	op, err := normalizeOperator(p.Operator)
	if err != nil {
		return nil, err
	}
	limit, err := normalizeLimit(p.Limit)
	if err != nil {
		return nil, err
	}
	if p.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidRequest)
	}
	padding := p.CharsPadding
	if padding < 0 {
		return nil, fmt.Errorf("%w: charsPadding must be >= 0", domain.ErrInvalidRequest)
	}
	if padding == 0 {
		padding = DefaultCharsPadding
	}
	stored := p.StoredFields
	if len(stored) == 0 {
		stored = DefaultStoredFields
	}

	b := NewBuilder(KindPages).
		Source(pagesSource...).
		StoredFields(stored...).
		StoredFields(p.ExtStoredFields...).
		From(p.Offset).
		Size(limit).
		TrackTotalHits(true).
		Aggregation(AggContractTotals, contractTotalsAgg()).
		Aggregation(AggContractTotalsNoAgency, noAgencyAgg()).
		Must(textMatch(p.ParsedQuery, op, p.SearchText, p.ExtSearchFields, pagesInnerHits(padding))).
		Should(boosts(p.ParsedQuery)...)

	if err := addExclusion(b, p.Settings.ExcludeTerms); err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		b.Filter(filters...)
	}
	return b.Build(), nil
}

// NewStats builds the stats request. Filters join the must array and no
// inner hits are requested.
func NewStats(p StatsParams, filters []query.Clause) (*Request, error) {
	op, err := normalizeOperator(p.Operator)
	if err != nil {
		return nil, err
	}
	limit, err := normalizeLimit(p.Limit)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(KindStats).
		Source(statsSource...).
		From(0).
		Size(limit).
		TrackTotalHits(true).
		Must(textMatch(p.ParsedQuery, op, p.SearchText, p.ExtSearchFields, nil)).
		Should(boosts(p.ParsedQuery)...)

	if err := addExclusion(b, p.Settings.ExcludeTerms); err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		b.Must(filters...)
	}
	return b.Build(), nil
}

func addExclusion(b *Builder, excludeTerms string) error {
	ex, err := filter.Exclusion(excludeTerms)
	if errors.Is(err, filter.ErrNoPhrases) {
		return nil
	}
	if err != nil {
		return err
	}
	b.MustNot(ex)
	return nil
}

func pagesInnerHits(padding int) *query.InnerHits {
	return &query.InnerHits{
		Source:       query.Ptr(false),
		StoredFields: innerHitStoredFields,
		From:         query.Ptr(0),
		Size:         innerHitsSize,
		Highlight: &query.Highlight{
			Fields: map[string]query.HighlightField{
				filter.FieldPageFilename: {NumberOfFragments: query.Ptr(0)},
				filter.FieldPageText:     {FragmentSize: 2 * padding, NumberOfFragments: query.Ptr(1)},
			},
			Fragmenter: "span",
		},
	}
}

// textMatch is the required nested page match, optionally OR-ed with a
// multi-match over extra lower-cased search fields.
func textMatch(parsed, op, searchText string, extFields []string, ih *query.InnerHits) query.Clause {
	pageQuery := query.Should(
		query.Wildcard(filter.FieldPageFilename, parsed+"*", filenameBoost),
		query.QueryString(query.QueryStringOptions{
			Query:              parsed,
			DefaultField:       filter.FieldPageText,
			DefaultOperator:    op,
			FuzzyMaxExpansions: fuzzyMaxExpansions,
			Fuzziness:          "AUTO",
		}),
	)
	var opts []query.NestedOption
	if ih != nil {
		opts = append(opts, query.WithInnerHits(*ih))
	}
	should := []query.Clause{query.Nested(filter.PathPages, pageQuery, opts...)}
	if len(extFields) > 0 {
		lower := make([]string, len(extFields))
		for i, f := range extFields {
			lower[i] = strings.ToLower(f)
		}
		should = append(should, query.MultiMatch(searchText, lower, "or"))
	}
	return query.Should(should...)
}

func boosts(parsed string) []query.Clause {
	return []query.Clause{
		query.MultiMatch(parsed, boostFields, "or"),
		query.RankFeature("pagerank_r", pageRankBoost),
		query.RankFeature("kw_doc_score_r", keywordScoreBoost),
	}
}

func obligatedSum() query.Aggregation {
	return query.NestedAgg(filter.PathFPDS).With(AggSum, query.SumAgg(filter.FieldObligated))
}

func contractTotalsAgg() query.Aggregation {
	agencies := query.TermsAgg(fieldAgencyKeyword, agencyBucketSize).
		With(AggDocs, query.ReverseNestedAgg().With(AggObligatedAmounts, obligatedSum()))
	return query.NestedAgg(filter.PathFPDS).With(AggAgencies, agencies)
}

func noAgencyAgg() query.Aggregation {
	noAgency := query.MustNot(query.Nested(filter.PathFPDS, query.Exists(fieldAgencyKeyword)))
	return query.FilterAgg(noAgency).With(AggObligatedAmounts, obligatedSum())
}
