package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
)

func TestNewSimilar_Shape(t *testing.T) {
	r, err := NewSimilar([]PageFragment{{ID: "12", Text: "repair of engines"}}, []query.Clause{query.Match("x", "y")})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"_source":{"includes":["pagerank_r","kw_doc_score_r","orgs_rs","file_location_eda_ext"]},
		"stored_fields":["filename","title","page_count","doc_type","doc_num","ref_list","id","summary_30","keyw_5","p_text","type","p_page","display_title_s","display_org_s","display_doc_type_s","is_revoked_b","access_timestamp_dt","publication_date_dt","crawler_used_s","topics_s"],
		"size":10,
		"track_total_hits":true,
		"query":{"bool":{
			"must":[{"match":{"sow_pws_populated_b":"true"}},{"match":{"x":"y"}}],
			"should":[{"nested":{
				"path":"pages",
				"score_mode":"max",
				"query":{"match":{"pages.p_raw_text":"repair of engines"}},
				"inner_hits":{
					"name":"12",
					"_source":false,
					"stored_fields":["pages.filename","pages.p_raw_text"],
					"from":0,
					"size":5,
					"highlight":{
						"fields":{
							"pages.filename.search":{"number_of_fragments":0},
							"pages.p_raw_text":{"fragment_size":2,"number_of_fragments":1}
						},
						"fragmenter":"span"
					}
				}
			}}]
		}}
	}`, toJSON(t, r))
}

func TestNewSimilar_Invalid(t *testing.T) {
	tests := map[string][]PageFragment{
		"empty":     nil,
		"no id":     {{Text: "a"}},
		"duplicate": {{ID: "1", Text: "a"}, {ID: "1", Text: "b"}},
	}
	for name, pages := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewSimilar(pages, nil); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("err = %v", err)
			}
		})
	}
}
