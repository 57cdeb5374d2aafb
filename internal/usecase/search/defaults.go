package search

import (
	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

// PageHighlighter prefers the page text highlight. A filename-only match has
// no page of its own and is reported as page zero.
type PageHighlighter struct{}

// Highlight implements Highlighter.
func (PageHighlighter) Highlight(hit response.InnerHit, _ string) (string, bool) {
	if frags := hit.Highlight[filter.FieldPageText]; len(frags) > 0 {
		return frags[0], false
	}
	if frags := hit.Highlight[filter.FieldPageFilename]; len(frags) > 0 {
		return frags[0], true
	}
	text, _ := hit.FieldString(filter.FieldPageText)
	return text, false
}

// listFields keep their array form after flattening.
var listFields = map[string]bool{
	"keyw_5":   true,
	"ref_list": true,
	"orgs_rs":  true,
}

// StoredFieldTransformer unwraps single-value stored fields.
type StoredFieldTransformer struct{}

// Transform implements FieldTransformer.
func (StoredFieldTransformer) Transform(fields map[string][]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, vs := range fields {
		switch {
		case listFields[k]:
			out[k] = append([]any(nil), vs...)
		case len(vs) == 1:
			out[k] = vs[0]
		case len(vs) == 0:
		default:
			out[k] = append([]any(nil), vs...)
		}
	}
	return out
}
