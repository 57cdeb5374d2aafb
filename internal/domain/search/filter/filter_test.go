package filter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/edasearch/internal/domain/search/query"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
)

func boolPtr(b bool) *bool { return &b }

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func mustBuild(t *testing.T, s settings.Search) []query.Clause {
	t.Helper()
	clauses, errs := Build(s)
	if len(errs) > 0 {
		t.Fatalf("unexpected dimension errors: %v", errs)
	}
	return clauses
}

func TestBuild_EmptySettings(t *testing.T) {
	cases := map[string]settings.Search{
		"zero":          {},
		"empty lists":   {Organizations: []string{}, PSC: []settings.Code{}, DUNS: []string{}},
		"all selected":  {AllOrgsSelected: true, Organizations: []string{"army"}},
		"years gated":   {FiscalYears: []settings.Scalar{"2020"}},
		"years all":     {AllYearsSelected: boolPtr(true), FiscalYears: []settings.Scalar{"2020"}},
		"data gated":    {ContractData: settings.ContractData{{Name: "pds", Enabled: true}}},
		"data disabled": {AllDataSelected: boolPtr(false), ContractData: settings.ContractData{{Name: "pds"}}},
		"both":          {ContractsOrMods: settings.ContractsBoth},
		"unknown mode":  {ContractsOrMods: "everything"},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			if got := mustBuild(t, s); len(got) != 0 {
				t.Errorf("Build() = %s, want no clauses", toJSON(t, got))
			}
		})
	}
}

func TestBuild_OrganizationsOrJoined(t *testing.T) {
	got := mustBuild(t, settings.Search{Organizations: []string{"army", "navy", "Air Force"}})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
		{"query_string":{"query":"W* OR N* OR M* OR F*","default_field":"fpds_ng_n.contracting_office_code_eda_ext"}}
	]}}}}`, toJSON(t, got[0]))
}

func TestPlanOrganizations(t *testing.T) {
	tests := []struct {
		name     string
		s        settings.Search
		wantKind OrgPlanKind
		wantOK   bool
		wantExpr string
		wantSubs []string
	}{
		{
			name:     "org only",
			s:        settings.Search{Organizations: []string{"defense", "army"}},
			wantKind: OrgOnly, wantOK: true, wantExpr: "H* OR W*",
		},
		{
			name: "majcom only",
			s: settings.Search{
				Organizations: []string{"air force"},
				Majcoms:       map[string][]string{"air force": {"ACC", "AMC"}},
			},
			wantKind: MajcomOnly, wantOK: true, wantSubs: []string{"ACC", "AMC"},
		},
		{
			name: "both",
			s: settings.Search{
				Organizations: []string{"army", "air force"},
				Majcoms:       map[string][]string{"air force": {"ACC"}, "army": {}},
			},
			wantKind: OrgAndMajcom, wantOK: true, wantExpr: "W*", wantSubs: []string{"ACC"},
		},
		{
			name:   "unknown org",
			s:      settings.Search{Organizations: []string{"coast guard"}},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := PlanOrganizations(tt.s)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if p.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", p.Kind(), tt.wantKind)
			}
			if p.Expression() != tt.wantExpr {
				t.Errorf("Expression() = %q, want %q", p.Expression(), tt.wantExpr)
			}
			assert.Equal(t, tt.wantSubs, p.SubOrgs())
		})
	}
}

func TestBuild_OrgAndMajcomWrappedInOr(t *testing.T) {
	got := mustBuild(t, settings.Search{
		Organizations: []string{"army", "air force"},
		Majcoms:       map[string][]string{"air force": {"ACC"}},
	})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"bool":{"should":[
		{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
			{"match":{"fpds_ng_n.contracting_agency_name_eda_ext":{"query":"ACC","operator":"AND"}}}
		]}}}},
		{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
			{"query_string":{"query":"W*","default_field":"fpds_ng_n.contracting_office_code_eda_ext"}}
		]}}}}
	]}}`, toJSON(t, got[0]))
}

func TestBuild_FiscalYear(t *testing.T) {
	got := mustBuild(t, settings.Search{
		AllYearsSelected: boolPtr(false),
		FiscalYears:      []settings.Scalar{"2020"},
	})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
		{"range":{"fpds_ng_n.date_signed_eda_ext_dt":{"gte":"2020","lte":"2021","format":"yyyy"}}}
	]}}}}`, toJSON(t, got[0]))
}

func TestBuild_InvalidFiscalYearSkipsOnlyThatDimension(t *testing.T) {
	clauses, errs := Build(settings.Search{
		AllYearsSelected: boolPtr(false),
		FiscalYears:      []settings.Scalar{"20x0"},
		DUNS:             []string{"123"},
	})
	require.Len(t, errs, 1)
	if errs[0].Dimension != "fiscalYears" {
		t.Errorf("Dimension = %q", errs[0].Dimension)
	}
	var de *DimensionError
	if !errors.As(errs[0], &de) {
		t.Error("expected *DimensionError")
	}
	require.Len(t, clauses, 1)
	assert.Contains(t, toJSON(t, clauses[0]), "fpds_ng_n.duns_eda_ext")
}

func TestBuild_ObligatedMinOnly(t *testing.T) {
	got := mustBuild(t, settings.Search{MinObligatedAmount: "1000"})
	require.Len(t, got, 1)
	js := toJSON(t, got[0])
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"range":{"fpds_ng_n.dollars_obligated_eda_ext_f":{"gte":"1000"}}}}}`, js)
	if strings.Contains(js, "lte") {
		t.Error("lte must be absent")
	}
}

func TestBuild_ObligatedInvalid(t *testing.T) {
	clauses, errs := Build(settings.Search{MaxObligatedAmount: "lots"})
	require.Len(t, errs, 1)
	assert.Empty(t, clauses)
}

func TestBuild_DateRange(t *testing.T) {
	got := mustBuild(t, settings.Search{EndDate: "2021-01-01"})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"range":{"fpds_ng_n.date_signed_eda_ext_dt":{"lte":"2021-01-01"}}}}}`, toJSON(t, got[0]))
}

func TestBuild_PSCService(t *testing.T) {
	got := mustBuild(t, settings.Search{PSC: []settings.Code{{Code: "Service"}}})
	require.Len(t, got, 1)

	var decoded struct {
		Nested struct {
			Query struct {
				Bool struct {
					Should []struct {
						QueryString struct {
							Query string `json:"query"`
						} `json:"query_string"`
					} `json:"should"`
				} `json:"bool"`
			} `json:"query"`
		} `json:"nested"`
	}
	require.NoError(t, json.Unmarshal([]byte(toJSON(t, got[0])), &decoded))
	should := decoded.Nested.Query.Bool.Should
	if len(should) != 23 {
		t.Fatalf("got %d clauses, want 23", len(should))
	}
	for _, c := range should {
		q := c.QueryString.Query
		if len(q) != 2 || q[1] != '*' || strings.ContainsAny(q[:1], "AIO") {
			t.Errorf("unexpected pattern %q", q)
		}
	}
}

func TestBuild_PSCAndNAICSCodes(t *testing.T) {
	got := mustBuild(t, settings.Search{
		PSC:       []settings.Code{{Code: "Product"}, {Code: "Research and Development"}, {Code: "R4", HasChildren: true}, {Code: "R408"}},
		NAICSCode: []settings.Code{{Code: "54", HasChildren: true}, {Code: "541330"}},
	})
	require.Len(t, got, 2)
	psc := toJSON(t, got[0])
	for _, want := range []string{`"1*"`, `"9*"`, `"A*"`, `"R4*"`, `"R408"`} {
		assert.Contains(t, psc, want)
	}
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
		{"query_string":{"query":"54*","default_field":"fpds_ng_n.naics_code_eda_ext","default_operator":"or"}},
		{"query_string":{"query":"541330","default_field":"fpds_ng_n.naics_code_eda_ext","default_operator":"or"}}
	]}}}}`, toJSON(t, got[1]))
}

func TestFPDSWildcard_Escapes(t *testing.T) {
	c := FPDSWildcard(FieldVendorName, "A+B")
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
		{"query_string":{"query":"*A\\+B*","default_field":"fpds_ng_n.vendor_name_eda_ext","fuzziness":2}}
	]}}}}`, toJSON(t, c))
}

func TestFPDSWildcard_PSCAddsDescription(t *testing.T) {
	js := toJSON(t, FPDSWildcard(FieldPSC, "R4"))
	assert.Contains(t, js, FieldPSCDesc)
}

func TestEscapeQuery(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"A+B":     `A\+B`,
		"a++b":    `a\+\+b`,
		"(x)/[y]": `\(x\)\/\[y\]`,
		`c:\d`:    `c\:\\d`,
		"":        "",
	}
	for in, want := range tests {
		if got := EscapeQuery(in); got != want {
			t.Errorf("EscapeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_ContractsOnly(t *testing.T) {
	got := mustBuild(t, settings.Search{ContractsOrMods: settings.ContractsOnly})
	require.Len(t, got, 1)
	js := toJSON(t, got[0])
	assert.JSONEq(t, `{"match":{"mod_identifier_eda_ext":"base_award"}}`, js)
	assert.NotContains(t, js, "must_not")
}

func TestBuild_ModsOnly(t *testing.T) {
	got := mustBuild(t, settings.Search{ContractsOrMods: settings.ModsOnly})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"bool":{"must_not":[{"term":{"mod_identifier_eda_ext":"base_award"}}]}}`, toJSON(t, got[0]))
}

func TestBuild_DataSource(t *testing.T) {
	got := mustBuild(t, settings.Search{
		AllDataSelected: boolPtr(false),
		ContractData: settings.ContractData{
			{Name: "syn", Enabled: true},
			{Name: "none", Enabled: true},
			{Name: "pds", Enabled: true},
			{Name: "fpds", Enabled: true},
		},
	})
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"bool":{"should":[
		{"match":{"is_supplementary_data_included_eda_ext_b":false}},
		{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
			{"query_string":{"query":"**","default_field":"fpds_ng_n.contracting_office_code_eda_ext","fuzziness":2}}
		]}}}},
		{"bool":{"must":[
			{"match":{"metadata_type_eda_ext":"syn, pds"}},
			{"match":{"is_supplementary_data_included_eda_ext_b":true}}
		]}}
	]}}`, toJSON(t, got[0]))
}

func decodeSettings(t *testing.T, body string) settings.Search {
	t.Helper()
	var s settings.Search
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	return s
}

func TestBuild_MalformedContractDataSkipsOnlyDataSource(t *testing.T) {
	s := decodeSettings(t, `{"allDataSelected":false,"contractData":["pds"],"duns":["123"]}`)
	clauses, errs := Build(s)
	require.Len(t, errs, 1)
	assert.Equal(t, "dataSource", errs[0].Dimension)
	require.Len(t, clauses, 1)
	assert.Contains(t, toJSON(t, clauses[0]), "fpds_ng_n.duns_eda_ext")

	// Gated off, the malformed value is never consulted.
	s = decodeSettings(t, `{"allDataSelected":true,"contractData":"pds"}`)
	_, errs = Build(s)
	assert.Empty(t, errs)
}

func TestBuild_WrongTypedScalarsSkipOnlyTheirDimension(t *testing.T) {
	s := decodeSettings(t, `{
		"allYearsSelected":false,"fiscalYears":[true],
		"minObligatedAmount":{"value":5},
		"duns":["123"]
	}`)
	clauses, errs := Build(s)
	require.Len(t, errs, 2)
	assert.Equal(t, "fiscalYears", errs[0].Dimension)
	assert.Equal(t, "obligatedAmount", errs[1].Dimension)
	require.Len(t, clauses, 1)
	assert.Contains(t, toJSON(t, clauses[0]), "fpds_ng_n.duns_eda_ext")
}

func TestBuild_DimensionOrder(t *testing.T) {
	got := mustBuild(t, settings.Search{
		ClinText:    "engine",
		IssueAgency: "DLA",
		DUNS:        []string{"1"},
		ContractSOW: "repair",
	})
	require.Len(t, got, 4)
	assert.Contains(t, toJSON(t, got[0]), FieldIssueOfficeName)
	assert.Contains(t, toJSON(t, got[1]), FieldDUNS)
	assert.JSONEq(t, `{"query_string":{"query":"*repair*","default_field":"sow_pws_text_eda_ext_t"}}`, toJSON(t, got[2]))
	assert.JSONEq(t, `{"query_string":{"query":"*engine*","default_field":"clins_raw_text_t"}}`, toJSON(t, got[3]))
}

func TestBuild_ListDimensions(t *testing.T) {
	got := mustBuild(t, settings.Search{
		IssueOfficeDoDAAC: []string{"W91", "N00"},
		ModNumber:         []string{"P00001"},
	})
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"nested":{"path":"fpds_ng_n","query":{"bool":{"should":[
		{"query_string":{"query":"W91","default_field":"fpds_ng_n.contracting_office_code_eda_ext","default_operator":"or"}},
		{"query_string":{"query":"N00","default_field":"fpds_ng_n.contracting_office_code_eda_ext","default_operator":"or"}}
	]}}}}`, toJSON(t, got[0]))
}

func TestExclusion(t *testing.T) {
	c, err := Exclusion("draft; memo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"should":[{"nested":{"path":"pages","query":{"bool":{"should":[
		{"wildcard":{"pages.filename.search":{"value":"*draft*"}}},
		{"match_phrase":{"pages.p_raw_text":"draft"}},
		{"wildcard":{"pages.filename.search":{"value":"*memo*"}}},
		{"match_phrase":{"pages.p_raw_text":"memo"}}
	]}}}}]}}`, toJSON(t, c))
}

func TestExclusion_Empty(t *testing.T) {
	for _, in := range []string{"", ";", " ; "} {
		if _, err := Exclusion(in); !errors.Is(err, ErrNoPhrases) {
			t.Errorf("Exclusion(%q) err = %v, want ErrNoPhrases", in, err)
		}
	}
}
