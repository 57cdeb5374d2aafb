package search

import (
	"context"

	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

// Engine executes built requests against the search engine.
type Engine interface {
	Search(ctx context.Context, index string, req *request.Request) (*response.Response, error)
}

// Highlighter extracts the display snippet of an inner hit. pageZero reports
// that the snippet comes from the un-paginated preamble of the document.
type Highlighter interface {
	Highlight(hit response.InnerHit, user string) (snippet string, pageZero bool)
}

// FieldTransformer flattens a hit's stored fields into the base record.
type FieldTransformer interface {
	Transform(fields map[string][]any) map[string]any
}

// Expander looks up synonym/expansion terms for the search terms.
type Expander interface {
	Expand(ctx context.Context, terms []string) (map[string][]string, error)
}
