package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/filter"
	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
)

const contractSize = 10000

var contractSource = []string{
	"extracted_data_eda_n.modification_number_eda_ext",
	"extracted_data_eda_n.signature_date_eda_ext_dt",
	"extracted_data_eda_n.effective_date_eda_ext_dt",
}

var contractSearchSource = []string{"pagerank_r", "kw_doc_score_r", "orgs_rs", "*_eda_n*"}

// AwardID is an award identifier, optionally scoped by a referenced IDV.
type AwardID struct {
	ID  string
	IDV string
}

// SplitAwardID splits "IDV-AWARD" into its parts. Without a dash the whole
// input is the award id.
func SplitAwardID(s string) AwardID {
	parts := strings.Split(s, "-")
	if len(parts) > 1 {
		return AwardID{ID: parts[1], IDV: parts[0]}
	}
	return AwardID{ID: s}
}

// NewContract builds the lookup of every record of one award. isAward
// restricts to the base award; isSearch or isAward widen the returned fields
// to the search display set.
func NewContract(award AwardID, isAward, isSearch bool) (*Request, error) {
	if strings.TrimSpace(award.ID) == "" {
		return nil, fmt.Errorf("%w: award id is required", domain.ErrInvalidRequest)
	}
	b := NewBuilder(KindContract).
		From(0).
		Size(contractSize).
		TrackTotalHits(true).
		Must(extractedMatch("extracted_data_eda_n.award_id_eda_ext", award.ID))

	if award.IDV != "" {
		b.Must(extractedMatch("extracted_data_eda_n.referenced_idv_eda_ext", award.IDV))
	}
	if isAward {
		b.Must(query.Match(filter.FieldModIdentifier, filter.ValueBaseAward))
	}
	if isSearch || isAward {
		b.Source(contractSearchSource...).
			StoredFields(DefaultStoredFields...).
			StoredFields(filter.FieldMetadataType)
	} else {
		b.Source(contractSource...)
	}
	return b.Build(), nil
}

func extractedMatch(field, value string) query.Clause {
	return query.Nested(filter.PathExtracted, query.Must(query.MatchQuery(field, value, "")))
}
