package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
	"github.com/kailas-cloud/edasearch/internal/domain/search/result"
	"github.com/kailas-cloud/edasearch/internal/logger"
)

// SearchContext is the request context of one normalization pass.
type SearchContext struct {
	User              string              `json:"-"`
	Query             string              `json:"query,omitempty"`
	SearchTerms       []string            `json:"searchTerms,omitempty"`
	SelectedDocuments []string            `json:"selectedDocuments,omitempty"`
	ExpansionDict     map[string][]string `json:"expansionDict,omitempty"`
	Index             string              `json:"-"`
}

const (
	innerHitsPages = "pages"

	highlightTitle    = "title.search"
	highlightKeywords = "keyw_5"
)

// Document drop reasons.
const (
	dropError       = "error"
	dropNotSelected = "not_selected"
)

// Normalize flattens a raw response into the stable result shape. It never
// panics; on failure it logs and returns nil, which callers must treat as
// "no results available" rather than zero results.
func (s *Service) Normalize(ctx context.Context, resp *response.Response, sc SearchContext) *result.Results {
	out, _ := s.normalize(ctx, resp, sc)
	return out
}

// normalize is Normalize plus the number of skipped documents per drop reason.
func (s *Service) normalize(
	ctx context.Context, resp *response.Response, sc SearchContext,
) (out *result.Results, dropped map[string]int) {
	log := logger.FromContext(ctx)
	dropped = make(map[string]int)
	defer func() {
		if r := recover(); r != nil {
			log.Error("normalize search response", logger.Code(CodeNormalize), logger.User(sc.User),
				zap.Any("panic", r))
			out = nil
		}
	}()

	if resp == nil {
		log.Error("normalize search response", logger.Code(CodeNormalize), logger.User(sc.User),
			zap.String("reason", "nil response"))
		return nil, dropped
	}

	rollup, err := Rollup(resp.Aggregations.NoAgencyBucket(), resp.Aggregations.ContractTotals.AgencyBuckets())
	if err != nil {
		log.Error("normalize search response", logger.Code(CodeNormalize), logger.User(sc.User), zap.Error(err))
		return nil, dropped
	}

	total := resp.Hits.Total.Value
	selected := make(map[string]struct{}, len(sc.SelectedDocuments))
	for _, name := range sc.SelectedDocuments {
		selected[name] = struct{}{}
	}
	if len(selected) > 0 {
		total = int64(len(sc.SelectedDocuments))
	}

	docs := make([]*result.Document, 0, len(resp.Hits.Hits))
	for i := range resp.Hits.Hits {
		doc, drop := s.normalizeHit(ctx, &resp.Hits.Hits[i], sc, selected)
		if drop != "" {
			dropped[drop]++
			continue
		}
		docs = append(docs, doc)
	}

	searchTerms := sc.SearchTerms
	if searchTerms == nil {
		searchTerms = []string{}
	}
	expansion := sc.ExpansionDict
	if expansion == nil {
		expansion = map[string][]string{}
	}

	return &result.Results{
		Query:                sc.Query,
		TotalCount:           total,
		Docs:                 docs,
		IssuingOrgs:          rollup.Totals,
		TotalObligatedAmount: rollup.TotalObligatedAmount,
		SearchTerms:          searchTerms,
		ExpansionDict:        expansion,
	}, dropped
}

// normalizeHit builds one document, or returns the reason it was skipped.
// A failing document is logged.
func (s *Service) normalizeHit(
	ctx context.Context, hit *response.Hit, sc SearchContext, selected map[string]struct{},
) (doc *result.Document, drop string) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("normalize document", logger.Code(CodeNormalizeDoc), logger.User(sc.User),
				zap.String("id", hit.ID), zap.Any("panic", r))
			doc, drop = nil, dropError
		}
	}()

	doc = result.NewDocument(s.transformer.Transform(hit.Fields))
	topics, found := hit.Source["topics_s"]
	if !found || topics == nil {
		topics = map[string]any{}
	}
	doc.Set("topics_s", topics)
	doc.Set("score", hit.Score)

	if len(selected) > 0 {
		if _, keep := selected[doc.Filename()]; !keep {
			return nil, dropNotSelected
		}
	}

	pages := newPageCollector(s.highlighter, sc.User)
	if grp, isPages := hit.InnerHits.Get(innerHitsPages); isPages {
		for _, ih := range grp.Hits.Hits {
			pages.add(ih, func(snippet string, page int) result.PageHit {
				return result.NewPageHit(snippet, page)
			})
		}
	} else {
		for _, named := range hit.InnerHits {
			doc.Set("file_location_eda_ext", hit.Source["file_location_eda_ext"])
			doc.Set("score", hit.Score)
			for _, ih := range named.Group.Hits.Hits {
				m := fragmentMatch(named.Name, ih)
				pages.add(ih, func(snippet string, page int) result.PageHit {
					return result.NewFragmentPageHit(snippet, page, m)
				})
			}
		}
	}

	hits := pages.sorted()
	if frags := hit.Highlight[highlightTitle]; len(frags) > 0 {
		hits = append(hits, result.NewHighlightHit(result.TitleHighlight, frags[0]))
	}
	if frags := hit.Highlight[highlightKeywords]; len(frags) > 0 {
		hits = append(hits, result.NewHighlightHit(result.KeywordHighlight, frags[0]))
	}
	doc.SetPageHits(hits, pages.count())

	if mt := hit.Fields[filter.FieldMetadataType]; len(mt) > 0 {
		doc.Set(filter.FieldMetadataType, mt[0])
	}
	if err := extractFields(hit.Source, doc); err != nil {
		log.Warn("extract contract fields", logger.User(sc.User), zap.String("id", hit.ID), zap.Error(err))
	}

	doc.Set("esIndex", sc.Index)
	doc.Set("keyw_5", joinKeywords(doc))
	if v, found := doc.Get("ref_list"); !found || v == nil {
		doc.Set("ref_list", []any{})
	}
	return doc, ""
}

func fragmentMatch(id string, ih response.InnerHit) result.FragmentMatch {
	text, _ := ih.FieldString(filter.FieldPageText)
	m := result.FragmentMatch{ID: id, Score: ih.Score, Text: text}
	if n, err := strconv.Atoi(id); err == nil {
		m.ParagraphID = &n
	}
	return m
}

func joinKeywords(doc *result.Document) string {
	v, _ := doc.Get("keyw_5")
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, ", ")
}

// pageCollector keeps at most one snippet per physical page and at most one
// page-zero snippet per document.
type pageCollector struct {
	hl   Highlighter
	user string
	seen map[int]struct{}
	hits []result.PageHit
}

func newPageCollector(hl Highlighter, user string) *pageCollector {
	return &pageCollector{hl: hl, user: user, seen: make(map[int]struct{})}
}

func (c *pageCollector) add(ih response.InnerHit, build func(snippet string, page int) result.PageHit) {
	page := ih.Nested.Offset + 1
	if _, dup := c.seen[page]; dup {
		return
	}
	snippet, pageZero := c.hl.Highlight(ih, c.user)
	if pageZero {
		if _, dup := c.seen[0]; dup {
			return
		}
		page = 0
	}
	c.seen[page] = struct{}{}
	c.hits = append(c.hits, build(snippet, page))
}

func (c *pageCollector) sorted() []result.PageHit {
	out := append([]result.PageHit(nil), c.hits...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PageNumber() < out[j].PageNumber() })
	return out
}

func (c *pageCollector) count() int { return len(c.seen) }
