package settings

import (
	"encoding/json"
	"testing"
)

func TestContractData_PreservesOrder(t *testing.T) {
	var s Search
	body := `{"allDataSelected":false,"contractData":{"syn":true,"none":false,"pds":1,"fpds":"yes"}}`
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := s.ContractData.Enabled()
	want := []string{"syn", "pds", "fpds"}
	if len(got) != len(want) {
		t.Fatalf("Enabled() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Enabled()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if s.AllDataSelected == nil || *s.AllDataSelected {
		t.Error("allDataSelected should decode as explicit false")
	}
}

func TestContractData_RejectsNonObject(t *testing.T) {
	var c ContractData
	if err := json.Unmarshal([]byte(`["pds"]`), &c); err == nil {
		t.Fatal("expected error for array")
	}
}

func TestSearch_MalformedContractDataDecodesLoosely(t *testing.T) {
	var s Search
	body := `{"allDataSelected":false,"contractData":["pds"],"duns":["123"],"vendorName":"acme"}`
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.ContractDataError() == nil {
		t.Error("expected a contractData decode error")
	}
	if s.ContractData != nil {
		t.Errorf("ContractData = %v, want nil", s.ContractData)
	}
	if len(s.DUNS) != 1 || s.VendorName != "acme" {
		t.Errorf("other dimensions lost: %+v", s)
	}
}

func TestSearch_WellFormedContractData(t *testing.T) {
	var s Search
	if err := json.Unmarshal([]byte(`{"contractData":{"pds":true},"issueAgency":"dod"}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.ContractDataError(); err != nil {
		t.Errorf("ContractDataError() = %v", err)
	}
	if got := s.ContractData.Enabled(); len(got) != 1 || got[0] != "pds" {
		t.Errorf("Enabled() = %v", got)
	}
	if s.IssueAgency != "dod" {
		t.Errorf("IssueAgency = %q", s.IssueAgency)
	}
}

func TestSearch_InvalidJSONStillFails(t *testing.T) {
	var s Search
	if err := json.Unmarshal([]byte(`{"duns":`), &s); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestContractData_MarshalRoundTripOrder(t *testing.T) {
	c := ContractData{{Name: "pds", Enabled: true}, {Name: "none", Enabled: false}}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"pds":true,"none":false}` {
		t.Errorf("got %s", b)
	}
}

func TestScalar_StringOrNumber(t *testing.T) {
	var s struct {
		Years []Scalar `json:"years"`
		Min   Scalar   `json:"min"`
		Max   Scalar   `json:"max"`
	}
	if err := json.Unmarshal([]byte(`{"years":["2020",2021],"min":1000.5,"max":null}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Years[0] != "2020" || s.Years[1] != "2021" {
		t.Errorf("years = %v", s.Years)
	}
	if s.Min != "1000.5" {
		t.Errorf("min = %q", s.Min)
	}
	if !s.Max.IsEmpty() {
		t.Errorf("max = %q, want empty", s.Max)
	}
}

func TestScalar_KeepsWrongTypesRaw(t *testing.T) {
	var s struct {
		Years []Scalar `json:"years"`
		Min   Scalar   `json:"min"`
	}
	if err := json.Unmarshal([]byte(`{"years":[true,"2020"],"min":{"a":1}}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Years[0] != "true" || s.Years[1] != "2020" {
		t.Errorf("years = %v", s.Years)
	}
	if s.Min != `{"a":1}` {
		t.Errorf("min = %q", s.Min)
	}
}

func TestSubOrgs_NilMap(t *testing.T) {
	var s Search
	if got := s.SubOrgs("army"); got != nil {
		t.Errorf("SubOrgs() = %v, want nil", got)
	}
}
