package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/result"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
	"github.com/kailas-cloud/edasearch/internal/logger"
	"github.com/kailas-cloud/edasearch/internal/metrics"
)

// Defaults fill unset pages parameters.
type Defaults struct {
	Limit        int
	MaxLimit     int
	CharsPadding int
	Operator     string
}

// Service builds EDA search requests, executes them and normalizes results.
type Service struct {
	engine      Engine
	index       string
	statsIndex  string
	highlighter Highlighter
	transformer FieldTransformer
	expander    Expander
	defaults    Defaults
}

// Option configures a Service.
type Option func(*Service)

// WithIndexes sets the search and stats indexes.
func WithIndexes(index, statsIndex string) Option {
	return func(s *Service) {
		s.index = index
		s.statsIndex = statsIndex
	}
}

// WithHighlighter overrides the inner-hit snippet extractor.
func WithHighlighter(h Highlighter) Option {
	return func(s *Service) { s.highlighter = h }
}

// WithTransformer overrides the stored-field flattener.
func WithTransformer(t FieldTransformer) Option {
	return func(s *Service) { s.transformer = t }
}

// WithExpander enables query expansion.
func WithExpander(e Expander) Option {
	return func(s *Service) { s.expander = e }
}

// WithDefaults sets the pages parameter defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// New creates a search service.
func New(engine Engine, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		highlighter: PageHighlighter{},
		transformer: StoredFieldTransformer{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.statsIndex == "" {
		s.statsIndex = s.index
	}
	return s
}

// Index returns the search index name.
func (s *Service) Index() string { return s.index }

// BuildFilters converts settings into filter clauses. Failing dimensions are
// logged and skipped.
func (s *Service) BuildFilters(ctx context.Context, st settings.Search, user string) []query.Clause {
	clauses, errs := filter.Build(st)
	log := logger.FromContext(ctx)
	for _, e := range errs {
		log.Error("build filter dimension", logger.Code(CodeFilter), logger.User(user),
			zap.String("dimension", e.Dimension), zap.Error(e.Err))
	}
	return clauses
}

// BuildPagesQuery builds the per-document pages request, or nil when no
// request could be built.
func (s *Service) BuildPagesQuery(ctx context.Context, p request.PagesParams, user string) *request.Request {
	p = s.applyDefaults(p)
	return s.build(ctx, request.KindPages, CodePagesQuery, user, func() (*request.Request, error) {
		return request.NewPages(p, s.BuildFilters(ctx, p.Settings, user))
	})
}

// BuildStatsQuery builds the aggregate-reporting request, or nil.
func (s *Service) BuildStatsQuery(ctx context.Context, p request.StatsParams, user string) *request.Request {
	p.Limit = s.limit(p.Limit)
	if p.Operator == "" {
		p.Operator = s.defaults.Operator
	}
	return s.build(ctx, request.KindStats, CodeStatsQuery, user, func() (*request.Request, error) {
		return request.NewStats(p, s.BuildFilters(ctx, p.Settings, user))
	})
}

// BuildSimilarityQuery builds the similar-documents request, or nil.
func (s *Service) BuildSimilarityQuery(
	ctx context.Context, pages []request.PageFragment, st settings.Search, user string,
) *request.Request {
	return s.build(ctx, request.KindSimilar, CodeSimilarQuery, user, func() (*request.Request, error) {
		return request.NewSimilar(pages, s.BuildFilters(ctx, st, user))
	})
}

// BuildContractQuery builds the award lookup request, or nil.
func (s *Service) BuildContractQuery(
	ctx context.Context, award request.AwardID, isAward, isSearch bool, user string,
) *request.Request {
	return s.build(ctx, request.KindContract, CodeContractQuery, user, func() (*request.Request, error) {
		return request.NewContract(award, isAward, isSearch)
	})
}

func (s *Service) build(
	ctx context.Context, kind request.Kind, code, user string, fn func() (*request.Request, error),
) (req *request.Request) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("build search request", logger.Code(code), logger.User(user),
				zap.String("kind", string(kind)), zap.Any("panic", r))
			req = nil
		}
	}()
	req, err := fn()
	if err != nil {
		log.Error("build search request", logger.Code(code), logger.User(user),
			zap.String("kind", string(kind)), zap.Error(err))
		return nil
	}
	return req
}

func (s *Service) applyDefaults(p request.PagesParams) request.PagesParams {
	p.Limit = s.limit(p.Limit)
	if p.CharsPadding == 0 {
		p.CharsPadding = s.defaults.CharsPadding
	}
	if p.Operator == "" {
		p.Operator = s.defaults.Operator
	}
	return p
}

// limit defaults an unset page size and caps it at MaxLimit.
func (s *Service) limit(n int) int {
	if n == 0 {
		n = s.defaults.Limit
	}
	if s.defaults.MaxLimit > 0 && n > s.defaults.MaxLimit {
		n = s.defaults.MaxLimit
	}
	return n
}

// Search runs a pages search and normalizes the response.
func (s *Service) Search(ctx context.Context, p request.PagesParams, sc SearchContext) (*result.Results, error) {
	req := s.BuildPagesQuery(ctx, p, sc.User)
	if !recordBuilt(request.KindPages, req) {
		return nil, domain.ErrNoQuery
	}
	if sc.Query == "" {
		sc.Query = p.SearchText
	}
	sc.ExpansionDict = s.expand(ctx, sc)
	return s.execute(ctx, s.index, req, sc)
}

// Similar runs a similarity search over reference page fragments.
func (s *Service) Similar(
	ctx context.Context, pages []request.PageFragment, st settings.Search, sc SearchContext,
) (*result.Results, error) {
	req := s.BuildSimilarityQuery(ctx, pages, st, sc.User)
	if !recordBuilt(request.KindSimilar, req) {
		return nil, domain.ErrNoQuery
	}
	return s.execute(ctx, s.index, req, sc)
}

// Contract looks up every record of an "IDV-AWARD" or bare award id.
func (s *Service) Contract(ctx context.Context, awardID string, isAward bool, user string) (*result.Results, error) {
	req := s.BuildContractQuery(ctx, request.SplitAwardID(awardID), isAward, false, user)
	if !recordBuilt(request.KindContract, req) {
		return nil, domain.ErrNoQuery
	}
	return s.execute(ctx, s.index, req, SearchContext{User: user, Query: awardID})
}

// Stats runs the stats request and returns the total and per-document
// extracted fields.
func (s *Service) Stats(ctx context.Context, p request.StatsParams, user string) (*result.Stats, error) {
	req := s.BuildStatsQuery(ctx, p, user)
	if !recordBuilt(request.KindStats, req) {
		return nil, domain.ErrNoQuery
	}
	resp, err := s.engine.Search(ctx, s.statsIndex, req)
	if err != nil {
		return nil, fmt.Errorf("stats search: %w", err)
	}
	log := logger.FromContext(ctx)
	stats := &result.Stats{TotalCount: resp.Hits.Total.Value, Docs: make([]*result.Document, 0, len(resp.Hits.Hits))}
	for _, hit := range resp.Hits.Hits {
		doc := result.NewDocument(nil)
		doc.SetIfPresent(filter.FieldMetadataType, hit.Source[filter.FieldMetadataType])
		if err := extractFields(hit.Source, doc); err != nil {
			log.Warn("extract contract fields", logger.User(user), zap.String("id", hit.ID), zap.Error(err))
		}
		stats.Docs = append(stats.Docs, doc)
	}
	return stats, nil
}

// SearchWithStats runs the pages search and the stats search concurrently.
func (s *Service) SearchWithStats(
	ctx context.Context, p request.PagesParams, sc SearchContext,
) (*result.Results, *result.Stats, error) {
	var (
		res   *result.Results
		stats *result.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = s.Search(gctx, p, sc)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.Stats(gctx, s.applyDefaults(p).StatsParams(), sc.User)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return res, stats, nil
}

func (s *Service) execute(
	ctx context.Context, index string, req *request.Request, sc SearchContext,
) (*result.Results, error) {
	resp, err := s.engine.Search(ctx, index, req)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", req.Kind(), err)
	}
	sc.Index = index
	res, dropped := s.normalize(ctx, resp, sc)
	for reason, n := range dropped {
		metrics.DocumentsDroppedTotal.WithLabelValues(reason).Add(float64(n))
	}
	if res == nil {
		return nil, domain.ErrNoResults
	}
	res.SearchID = uuid.NewString()
	return res, nil
}

// recordBuilt counts a build outcome and reports whether req was built.
func recordBuilt(kind request.Kind, req *request.Request) bool {
	outcome := "ok"
	if req == nil {
		outcome = "error"
	}
	metrics.QueriesBuiltTotal.WithLabelValues(string(kind), outcome).Inc()
	return req != nil
}

// expand returns the caller's expansion dictionary or, when an expander is
// configured, one looked up for the search terms. Lookup failures degrade to
// an empty dictionary.
func (s *Service) expand(ctx context.Context, sc SearchContext) map[string][]string {
	if len(sc.ExpansionDict) > 0 || s.expander == nil || len(sc.SearchTerms) == 0 {
		return sc.ExpansionDict
	}
	dict, err := s.expander.Expand(ctx, sc.SearchTerms)
	if err != nil {
		logger.FromContext(ctx).Warn("query expansion failed", logger.User(sc.User), zap.Error(err))
		return nil
	}
	return dict
}
