package request

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
)

const (
	similarSize         = 10
	similarFragmentSize = 2
	fieldSOWPopulated   = "sow_pws_populated_b"
)

var similarSource = []string{"pagerank_r", "kw_doc_score_r", "orgs_rs", "file_location_eda_ext"}

var similarStoredFields = append(slices.Clone(DefaultStoredFields),
	"is_revoked_b", "access_timestamp_dt", "publication_date_dt", "crawler_used_s", "topics_s",
)

// PageFragment is one reference text fragment of a similarity search.
type PageFragment struct {
	ID   settings.Scalar `json:"id"`
	Text string          `json:"text"`
}

// NewSimilar builds a "find similar documents" request. Each fragment is a
// scored nested match whose inner hits are named by the fragment id.
func NewSimilar(pages []PageFragment, filters []query.Clause) (*Request, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: at least one page fragment is required", domain.ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(pages))
	should := make([]query.Clause, 0, len(pages))
	for i, p := range pages {
		if p.ID.IsEmpty() {
			return nil, fmt.Errorf("%w: page fragment %d has no id", domain.ErrInvalidRequest, i)
		}
		id := p.ID.String()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate page fragment id %q", domain.ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
		should = append(should, query.Nested(filter.PathPages,
			query.Match(filter.FieldPageText, p.Text),
			query.WithScoreMode("max"),
			query.WithInnerHits(fragmentInnerHits(id)),
		))
	}

	return NewBuilder(KindSimilar).
		Source(similarSource...).
		StoredFields(similarStoredFields...).
		Size(similarSize).
		TrackTotalHits(true).
		Must(query.Match(fieldSOWPopulated, "true")).
		Must(filters...).
		Should(should...).
		Build(), nil
}

func fragmentInnerHits(id string) query.InnerHits {
	return query.InnerHits{
		Name:         id,
		Source:       query.Ptr(false),
		StoredFields: innerHitStoredFields,
		From:         query.Ptr(0),
		Size:         innerHitsSize,
		Highlight: &query.Highlight{
			Fields: map[string]query.HighlightField{
				filter.FieldPageFilename: {NumberOfFragments: query.Ptr(0)},
				filter.FieldPageText:     {FragmentSize: similarFragmentSize, NumberOfFragments: query.Ptr(1)},
			},
			Fragmenter: "span",
		},
	}
}
