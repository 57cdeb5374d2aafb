// Package filter converts search settings into composable filter clauses.
//
// Each populated settings dimension yields one AND-ed clause; values inside a
// dimension are OR-ed. A dimension that fails to build is reported and
// skipped so the remaining dimensions still apply.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
)

// Nested paths and fields of the contract index.
const (
	PathFPDS      = "fpds_ng_n"
	PathExtracted = "extracted_data_eda_n"
	PathPages     = "pages"

	FieldOfficeCode      = "fpds_ng_n.contracting_office_code_eda_ext"
	FieldOfficeName      = "fpds_ng_n.contracting_office_name_eda_ext"
	FieldAgencyName      = "fpds_ng_n.contracting_agency_name_eda_ext"
	FieldDateSigned      = "fpds_ng_n.date_signed_eda_ext_dt"
	FieldObligated       = "fpds_ng_n.dollars_obligated_eda_ext_f"
	FieldVendorName      = "fpds_ng_n.vendor_name_eda_ext"
	FieldFundingOffice   = "fpds_ng_n.funding_office_code_eda_ext"
	FieldIDVPIID         = "fpds_ng_n.idv_piid_eda_ext"
	FieldModNumber       = "fpds_ng_n.modification_number_eda_ext"
	FieldPIID            = "fpds_ng_n.piid_eda_ext"
	FieldReqDesc         = "fpds_ng_n.description_of_requirement_eda_ext"
	FieldPSC             = "fpds_ng_n.psc_eda_ext"
	FieldPSCDesc         = "fpds_ng_n.psc_desc_eda_ext"
	FieldFundingAgency   = "fpds_ng_n.funding_agency_name_eda_ext"
	FieldNAICS           = "fpds_ng_n.naics_code_eda_ext"
	FieldDUNS            = "fpds_ng_n.duns_eda_ext"
	FieldIssueOfficeName = "extracted_data_eda_n.contract_issue_office_name_eda_ext"
	FieldModIdentifier   = "mod_identifier_eda_ext"
	FieldMetadataType    = "metadata_type_eda_ext"
	FieldSupplementary   = "is_supplementary_data_included_eda_ext_b"
	FieldSOWText         = "sow_pws_text_eda_ext_t"
	FieldCLINText        = "clins_raw_text_t"
	FieldPageText        = "pages.p_raw_text"
	FieldPageFilename    = "pages.filename.search"
	ValueBaseAward       = "base_award"

	fiscalYearFormat      = "yyyy"
	dataSourceNone        = "none"
	dataSourceFPDS        = "fpds"
	pscProduct            = "Product"
	pscResearch           = "Research and Development"
	pscService            = "Service"
	defaultFilterOperator = "or"
)

// serviceLetters are the PSC service category prefixes (no A, I or O).
var serviceLetters = []string{
	"B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M", "N",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// DimensionError reports a dimension that could not be built.
type DimensionError struct {
	Dimension string
	Err       error
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Dimension, e.Err)
}

func (e *DimensionError) Unwrap() error { return e.Err }

type dimension struct {
	name  string
	build func(settings.Search) ([]query.Clause, error)
}

var dimensions = []dimension{
	{"issueAgency", issueAgency},
	{"organizations", organizations},
	{"dateRange", dateRange},
	{"issueOfficeDoDAAC", anyOf(FieldOfficeCode, func(s settings.Search) []string { return s.IssueOfficeDoDAAC })},
	{"issueOfficeName", anyOf(FieldOfficeName, func(s settings.Search) []string { return s.IssueOfficeName })},
	{"fiscalYears", fiscalYears},
	{"dataSource", dataSource},
	{"obligatedAmount", obligatedAmount},
	{"contractsOrMods", contractsOrMods},
	{"vendorName", fuzzy(FieldVendorName, func(s settings.Search) string { return s.VendorName })},
	{"fundingOfficeCode", anyOf(FieldFundingOffice, func(s settings.Search) []string { return s.FundingOfficeCode })},
	{"idvPIID", fuzzy(FieldIDVPIID, func(s settings.Search) string { return s.IDVPIID })},
	{"modNumber", anyOf(FieldModNumber, func(s settings.Search) []string { return s.ModNumber })},
	{"piid", fuzzy(FieldPIID, func(s settings.Search) string { return s.PIID })},
	{"reqDesc", fuzzy(FieldReqDesc, func(s settings.Search) string { return s.ReqDesc })},
	{"psc", psc},
	{"fundingAgencyName", anyOf(FieldFundingAgency, func(s settings.Search) []string { return s.FundingAgencyName })},
	{"naicsCode", naics},
	{"duns", anyOf(FieldDUNS, func(s settings.Search) []string { return s.DUNS })},
	{"contractSOW", substring(FieldSOWText, func(s settings.Search) string { return s.ContractSOW })},
	{"clinText", substring(FieldCLINText, func(s settings.Search) string { return s.ClinText })},
}

// Build returns the filter clauses for every populated dimension, in a
// fixed dimension order, plus the errors of dimensions that were skipped.
func Build(s settings.Search) ([]query.Clause, []*DimensionError) {
	var (
		out  []query.Clause
		errs []*DimensionError
	)
	for _, d := range dimensions {
		clauses, err := safeBuild(d, s)
		if err != nil {
			errs = append(errs, &DimensionError{Dimension: d.name, Err: err})
			continue
		}
		out = append(out, clauses...)
	}
	return out, errs
}

func safeBuild(d dimension, s settings.Search) (clauses []query.Clause, err error) {
	defer func() {
		if r := recover(); r != nil {
			clauses, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return d.build(s)
}

func one(c query.Clause) []query.Clause { return []query.Clause{c} }

func nestedShould(path string, cs []query.Clause) query.Clause {
	return query.Nested(path, query.Should(cs...))
}

func orQueryString(field, q string) query.Clause {
	return query.QueryString(query.QueryStringOptions{
		Query:           q,
		DefaultField:    field,
		DefaultOperator: defaultFilterOperator,
	})
}

func issueAgency(s settings.Search) ([]query.Clause, error) {
	if s.IssueAgency == "" {
		return nil, nil
	}
	return one(query.Nested(PathExtracted, query.Must(query.Match(FieldIssueOfficeName, s.IssueAgency)))), nil
}

func organizations(s settings.Search) ([]query.Clause, error) {
	if s.AllOrgsSelected || len(s.Organizations) == 0 {
		return nil, nil
	}
	plan, ok := PlanOrganizations(s)
	if !ok {
		return nil, nil
	}
	return one(plan.Clause()), nil
}

func dateRange(s settings.Search) ([]query.Clause, error) {
	var b query.Bounds
	if s.StartDate != "" {
		b.GTE = s.StartDate
	}
	if s.EndDate != "" {
		b.LTE = s.EndDate
	}
	if b.IsEmpty() {
		return nil, nil
	}
	return one(query.Nested(PathFPDS, query.Range(FieldDateSigned, b))), nil
}

// anyOf ORs one query_string clause per supplied value of a list dimension.
func anyOf(field string, values func(settings.Search) []string) func(settings.Search) ([]query.Clause, error) {
	return func(s settings.Search) ([]query.Clause, error) {
		vs := values(s)
		if len(vs) == 0 {
			return nil, nil
		}
		should := make([]query.Clause, 0, len(vs))
		for _, v := range vs {
			should = append(should, orQueryString(field, v))
		}
		return one(nestedShould(PathFPDS, should)), nil
	}
}

func fiscalYears(s settings.Search) ([]query.Clause, error) {
	if s.AllYearsSelected == nil || *s.AllYearsSelected || len(s.FiscalYears) == 0 {
		return nil, nil
	}
	should := make([]query.Clause, 0, len(s.FiscalYears))
	for _, y := range s.FiscalYears {
		year, err := strconv.Atoi(strings.TrimSpace(y.String()))
		if err != nil {
			return nil, fmt.Errorf("fiscal year %q: %w", y, err)
		}
		should = append(should, query.Range(FieldDateSigned, query.Bounds{
			GTE:    fmt.Sprintf("%04d", year),
			LTE:    fmt.Sprintf("%04d", year+1),
			Format: fiscalYearFormat,
		}))
	}
	return one(nestedShould(PathFPDS, should)), nil
}

func dataSource(s settings.Search) ([]query.Clause, error) {
	if s.AllDataSelected == nil || *s.AllDataSelected {
		return nil, nil
	}
	if err := s.ContractDataError(); err != nil {
		return nil, fmt.Errorf("contract data: %w", err)
	}
	var (
		should   []query.Clause
		metadata []string
	)
	for _, name := range s.ContractData.Enabled() {
		switch name {
		case dataSourceNone:
			should = append(should, query.Match(FieldSupplementary, false))
		case dataSourceFPDS:
			should = append(should, FPDSWildcard(FieldOfficeCode, ""))
		default:
			metadata = append(metadata, name)
		}
	}
	if len(metadata) > 0 {
		should = append(should, query.Must(
			query.Match(FieldMetadataType, strings.Join(metadata, ", ")),
			query.Match(FieldSupplementary, true),
		))
	}
	if len(should) == 0 {
		return nil, nil
	}
	return one(query.Should(should...)), nil
}

func obligatedAmount(s settings.Search) ([]query.Clause, error) {
	var b query.Bounds
	if !s.MinObligatedAmount.IsEmpty() {
		v, err := amount(s.MinObligatedAmount)
		if err != nil {
			return nil, fmt.Errorf("min obligated amount: %w", err)
		}
		b.GTE = v
	}
	if !s.MaxObligatedAmount.IsEmpty() {
		v, err := amount(s.MaxObligatedAmount)
		if err != nil {
			return nil, fmt.Errorf("max obligated amount: %w", err)
		}
		b.LTE = v
	}
	if b.IsEmpty() {
		return nil, nil
	}
	return one(query.Nested(PathFPDS, query.Range(FieldObligated, b))), nil
}

func amount(v settings.Scalar) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

func contractsOrMods(s settings.Search) ([]query.Clause, error) {
	switch s.ContractsOrMods {
	case settings.ContractsOnly:
		return one(query.Match(FieldModIdentifier, ValueBaseAward)), nil
	case settings.ModsOnly:
		return one(query.MustNot(query.Term(FieldModIdentifier, ValueBaseAward))), nil
	}
	return nil, nil
}

func fuzzy(field string, value func(settings.Search) string) func(settings.Search) ([]query.Clause, error) {
	return func(s settings.Search) ([]query.Clause, error) {
		v := value(s)
		if v == "" {
			return nil, nil
		}
		return one(FPDSWildcard(field, v)), nil
	}
}

func substring(field string, value func(settings.Search) string) func(settings.Search) ([]query.Clause, error) {
	return func(s settings.Search) ([]query.Clause, error) {
		v := value(s)
		if v == "" {
			return nil, nil
		}
		return one(query.QueryString(query.QueryStringOptions{
			Query:        "*" + v + "*",
			DefaultField: field,
		})), nil
	}
}

func psc(s settings.Search) ([]query.Clause, error) {
	if len(s.PSC) == 0 {
		return nil, nil
	}
	var should []query.Clause
	for _, c := range s.PSC {
		switch c.Code {
		case pscProduct:
			for i := 1; i <= 9; i++ {
				should = append(should, orQueryString(FieldPSC, strconv.Itoa(i)+"*"))
			}
		case pscResearch:
			should = append(should, orQueryString(FieldPSC, "A*"))
		case pscService:
			for _, l := range serviceLetters {
				should = append(should, orQueryString(FieldPSC, l+"*"))
			}
		default:
			should = append(should, codeClause(FieldPSC, c))
		}
	}
	return one(nestedShould(PathFPDS, should)), nil
}

func naics(s settings.Search) ([]query.Clause, error) {
	if len(s.NAICSCode) == 0 {
		return nil, nil
	}
	should := make([]query.Clause, 0, len(s.NAICSCode))
	for _, c := range s.NAICSCode {
		should = append(should, codeClause(FieldNAICS, c))
	}
	return one(nestedShould(PathFPDS, should)), nil
}

func codeClause(field string, c settings.Code) query.Clause {
	if c.HasChildren {
		return orQueryString(field, c.Code+"*")
	}
	return orQueryString(field, c.Code)
}

// ErrNoPhrases is returned by Exclusion when no usable phrase was supplied.
var ErrNoPhrases = errors.New("no exclude phrases")

// Exclusion builds the must-not body for a semicolon-delimited phrase list:
// it matches when any phrase hits a page filename or page text.
func Exclusion(excludeTerms string) (query.Clause, error) {
	if excludeTerms == "" {
		return query.Clause{}, ErrNoPhrases
	}
	var should []query.Clause
	for _, phrase := range strings.Split(excludeTerms, ";") {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		should = append(should,
			query.Wildcard(FieldPageFilename, "*"+phrase+"*", 0),
			query.MatchPhrase(FieldPageText, phrase),
		)
	}
	if len(should) == 0 {
		return query.Clause{}, ErrNoPhrases
	}
	return query.Should(nestedShould(PathPages, should)), nil
}
