package filter

import (
	"strings"

	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
)

// orgCodes maps an issuing organization to its office-code prefix pattern.
var orgCodes = map[string]string{
	"army":      "W*",
	"navy":      "N* OR M*",
	"air force": "F*",
	"defense":   "H*",
}

// OrgCode returns the office-code pattern for an organization (case-insensitive).
func OrgCode(org string) (string, bool) {
	code, ok := orgCodes[strings.ToLower(strings.TrimSpace(org))]
	return code, ok
}

// OrgPlanKind tags which organization groups are populated.
type OrgPlanKind int

const (
	// OrgOnly means every selected org uses the office-code wildcard.
	OrgOnly OrgPlanKind = iota + 1
	// MajcomOnly means every selected org drills down to sub-organizations.
	MajcomOnly
	// OrgAndMajcom means both groups are populated and must be OR-ed.
	OrgAndMajcom
)

// OrgPlan is the partitioned organization selection.
type OrgPlan struct {
	kind    OrgPlanKind
	codes   []string
	subOrgs []string
}

// Kind returns which groups are populated.
func (p OrgPlan) Kind() OrgPlanKind { return p.kind }

// Codes returns the office-code patterns, in organization order.
func (p OrgPlan) Codes() []string { return p.codes }

// SubOrgs returns the majcom names, in organization order.
func (p OrgPlan) SubOrgs() []string { return p.subOrgs }

// Expression is the OR-joined office-code query string.
func (p OrgPlan) Expression() string { return strings.Join(p.codes, " OR ") }

// PlanOrganizations partitions the selected organizations into a sub-org
// drill-down group and a wildcard-only group. Organizations with neither a
// drill-down list nor a known office code contribute nothing; ok is false
// when no group is populated.
func PlanOrganizations(s settings.Search) (OrgPlan, bool) {
	var p OrgPlan
	for _, org := range s.Organizations {
		if subs := s.SubOrgs(org); len(subs) > 0 {
			p.subOrgs = append(p.subOrgs, subs...)
			continue
		}
		if code, ok := OrgCode(org); ok {
			p.codes = append(p.codes, code)
		}
	}
	switch {
	case len(p.codes) > 0 && len(p.subOrgs) > 0:
		p.kind = OrgAndMajcom
	case len(p.subOrgs) > 0:
		p.kind = MajcomOnly
	case len(p.codes) > 0:
		p.kind = OrgOnly
	default:
		return OrgPlan{}, false
	}
	return p, true
}

// Clause renders the plan as a single filter clause.
func (p OrgPlan) Clause() query.Clause {
	switch p.kind {
	case OrgOnly:
		return p.orgClause()
	case MajcomOnly:
		return p.majcomClause()
	default:
		return query.Should(p.majcomClause(), p.orgClause())
	}
}

func (p OrgPlan) orgClause() query.Clause {
	return nestedShould(PathFPDS, []query.Clause{
		query.QueryString(query.QueryStringOptions{
			Query:        p.Expression(),
			DefaultField: FieldOfficeCode,
		}),
	})
}

func (p OrgPlan) majcomClause() query.Clause {
	should := make([]query.Clause, 0, len(p.subOrgs))
	for _, sub := range p.subOrgs {
		should = append(should, query.MatchQuery(FieldAgencyName, sub, "AND"))
	}
	return nestedShould(PathFPDS, should)
}

// FPDSWildcard builds the shared fuzzy substring filter for an FPDS field.
// Query-syntax characters in value are backslash-escaped one by one. The PSC
// code field additionally matches the PSC description.
func FPDSWildcard(field, value string) query.Clause {
	pattern := "*" + EscapeQuery(value) + "*"
	should := []query.Clause{fuzzyQueryString(field, pattern)}
	if field == FieldPSC {
		should = append(should, fuzzyQueryString(FieldPSCDesc, pattern))
	}
	return nestedShould(PathFPDS, should)
}

func fuzzyQueryString(field, pattern string) query.Clause {
	return query.QueryString(query.QueryStringOptions{
		Query:        pattern,
		DefaultField: field,
		Fuzziness:    2,
	})
}

const specialChars = `+-=&|><!(){}[]^"~*?:\/`

// EscapeQuery backslash-prefixes every query_string special character.
func EscapeQuery(v string) string {
	if !strings.ContainsAny(v, specialChars) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 8)
	for _, r := range v {
		if strings.ContainsRune(specialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
