// Package settings holds the user-facing EDA search filter options.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ContractsOrMods selects base awards, modifications, or both.
const (
	ContractsOnly = "contracts"
	ModsOnly      = "mods"
	ContractsBoth = "both"
)

// Search is the set of independently optional filter dimensions.
// Absent or empty dimensions contribute no filter clause.
type Search struct {
	IssueAgency string `json:"issueAgency,omitempty"`

	AllOrgsSelected bool                `json:"allOrgsSelected,omitempty"`
	Organizations   []string            `json:"organizations,omitempty"`
	Majcoms         map[string][]string `json:"majcoms,omitempty"`

	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	IssueOfficeDoDAAC []string `json:"issueOfficeDoDAAC,omitempty"`
	IssueOfficeName   []string `json:"issueOfficeName,omitempty"`

	AllYearsSelected *bool    `json:"allYearsSelected,omitempty"`
	FiscalYears      []Scalar `json:"fiscalYears,omitempty"`

	AllDataSelected *bool        `json:"allDataSelected,omitempty"`
	ContractData    ContractData `json:"contractData,omitempty"`

	MinObligatedAmount Scalar `json:"minObligatedAmount,omitempty"`
	MaxObligatedAmount Scalar `json:"maxObligatedAmount,omitempty"`

	ContractsOrMods string `json:"contractsOrMods,omitempty"`

	VendorName        string   `json:"vendorName,omitempty"`
	FundingOfficeCode []string `json:"fundingOfficeCode,omitempty"`
	IDVPIID           string   `json:"idvPIID,omitempty"`
	ModNumber         []string `json:"modNumber,omitempty"`
	PIID              string   `json:"piid,omitempty"`
	ReqDesc           string   `json:"reqDesc,omitempty"`
	PSC               []Code   `json:"psc,omitempty"`
	FundingAgencyName []string `json:"fundingAgencyName,omitempty"`
	NAICSCode         []Code   `json:"naicsCode,omitempty"`
	DUNS              []string `json:"duns,omitempty"`

	ContractSOW string `json:"contractSOW,omitempty"`
	ClinText    string `json:"clinText,omitempty"`

	// ExcludeTerms is a semicolon-delimited phrase list.
	ExcludeTerms string `json:"excludeTerms,omitempty"`

	contractDataErr error
}

// UnmarshalJSON decodes the settings loosely: a contractData value that is not
// an object leaves ContractData empty and is reported by ContractDataError
// instead of failing the whole payload.
func (s *Search) UnmarshalJSON(data []byte) error {
	type plain Search
	aux := struct {
		*plain
		ContractData json.RawMessage `json:"contractData,omitempty"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.ContractData, s.contractDataErr = nil, nil
	if len(aux.ContractData) > 0 {
		if err := json.Unmarshal(aux.ContractData, &s.ContractData); err != nil {
			s.ContractData, s.contractDataErr = nil, err
		}
	}
	return nil
}

// ContractDataError returns the decode error of a malformed contractData value.
func (s Search) ContractDataError() error { return s.contractDataErr }

// SubOrgs returns the majcom drill-down list for org. A nil map reads as empty.
func (s Search) SubOrgs(org string) []string {
	if s.Majcoms == nil {
		return nil
	}
	return s.Majcoms[org]
}

// Code is a PSC or NAICS code. Codes with children match by prefix.
type Code struct {
	Code        string `json:"code"`
	HasChildren bool   `json:"hasChildren,omitempty"`
}

// Scalar is a value the UI may send as either a JSON string or a number.
type Scalar string

// String returns the raw text.
func (s Scalar) String() string { return string(s) }

// IsEmpty reports whether no value was supplied.
func (s Scalar) IsEmpty() bool { return s == "" }

// UnmarshalJSON accepts "2020", 2020 and null. Any other JSON value is kept
// as its raw text so the consumer rejects it for its own dimension only.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*s = Scalar(data)
		return nil
	}
	*s = Scalar(n.String())
	return nil
}

// Flag is one data-source toggle.
type Flag struct {
	Name    string
	Enabled bool
}

// ContractData is the ordered set of data-source flags ("pds", "syn", "none", "fpds").
// Order matters: enabled metadata types are comma-joined in input order.
type ContractData []Flag

// Enabled returns the enabled flag names in order.
func (c ContractData) Enabled() []string {
	var out []string
	for _, f := range c {
		if f.Enabled {
			out = append(out, f.Name)
		}
	}
	return out
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (c *ContractData) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("contractData must be an object")
	}
	var flags ContractData
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("contractData %q: %w", name, err)
		}
		flags = append(flags, Flag{Name: name, Enabled: truthy(raw)})
	}
	*c = flags
	return nil
}

// MarshalJSON encodes the flags as an object in order.
func (c ContractData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatBool(f.Enabled))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// truthy mirrors loose UI payloads: true, non-zero numbers and non-empty strings enable a flag.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case nil:
		return false
	default:
		return true
	}
}
