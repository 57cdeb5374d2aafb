package search

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/edasearch/internal/domain/search/result"
)

// fpdsPrefix namespaces every fpds_ng_n source field copied onto a document.
// Keys are passed through as-is: fpds_ng_n.<key> becomes fpds_<key>.
const fpdsPrefix = "fpds_"

// extractedFieldMap maps extracted_data_eda_n source keys to document keys.
var extractedFieldMap = []struct{ from, to string }{
	{"contract_issue_office_name_eda_ext", "contract_issue_name_eda_ext"},
	{"contract_issue_office_dodaac_eda_ext", "contract_issue_dodaac_eda_ext"},
	{"vendor_name_eda_ext", "vendor_name_eda_ext"},
	{"vendor_duns_eda_ext", "vendor_duns_eda_ext"},
	{"vendor_cage_eda_ext", "vendor_cage_eda_ext"},
	{"contract_payment_office_name_eda_ext", "paying_office_name_eda_ext"},
	{"contract_payment_office_dodaac_eda_ext", "paying_office_dodaac_eda_ext"},
	{"modification_number_eda_ext", "modification_eda_ext"},
	{"award_id_eda_ext", "award_id_eda_ext"},
	{"referenced_idv_eda_ext", "reference_idv_eda_ext"},
	{"signature_date_eda_ext_dt", "signature_date_eda_ext"},
	{"effective_date_eda_ext_dt", "effective_date_eda_ext"},
	{"total_obligated_amount_eda_ext_f", "obligated_amounts_eda_ext"},
	{"naics_eda_ext", "naics_eda_ext"},
	{"dodaac_org_type_eda_ext", "issuing_organization_eda_ext"},
}

// extractFields copies the contract-specific source data onto doc. Missing
// source sections leave their fields absent.
func extractFields(source map[string]any, doc *result.Document) error {
	doc.SetIfPresent("clins_parsed_successfully_b", source["clins_parsed_successfully_b"])
	doc.SetIfPresent("clins", source["clins_parsed_n"])

	switch fpds := source["fpds_ng_n"].(type) {
	case map[string]any:
		for k, v := range fpds {
			doc.Set(fpdsPrefix+k, v)
		}
	case []any:
		for i, v := range fpds {
			doc.Set(fpdsPrefix+strconv.Itoa(i), v)
		}
	}

	data, err := extractedData(source["extracted_data_eda_n"])
	if err != nil || data == nil {
		return err
	}

	for _, m := range extractedFieldMap {
		doc.SetIfPresent(m.to, data[m.from])
	}

	issueDoDAAC := asString(data["contract_issue_office_dodaac_eda_ext"])
	adminDoDAAC := asString(data["contract_admin_office_dodaac_eda_ext"])
	adminPresent := issueDoDAAC != adminDoDAAC
	if adminPresent {
		doc.SetIfPresent("contract_admin_name_eda_ext", data["contract_admin_agency_name_eda_ext"])
		doc.SetIfPresent("contract_admin_office_dodaac_eda_ext", data["contract_admin_office_dodaac_eda_ext"])
	}

	if award := asString(data["award_id_eda_ext"]); len(award) == 4 {
		if idv := asString(data["referenced_idv_eda_ext"]); idv != "" {
			doc.Set("award_id_eda_ext", idv+"-"+award)
		}
	}

	orgs, err := vendorOrgs(data)
	if err != nil {
		return err
	}
	payingDoDAAC := asString(data["contract_payment_office_dodaac_eda_ext"])
	for _, org := range orgs {
		dodaac := asString(org["dodaac_eda_ext"])
		if dodaac == "" {
			continue
		}
		majcom := org["majcom_display_name_eda_ext"]
		switch {
		case dodaac == issueDoDAAC:
			doc.Set("contract_issue_majcom_eda_ext", majcom)
		case dodaac == payingDoDAAC:
			doc.Set("paying_office_majcom_eda_ext", majcom)
		case adminPresent && dodaac == adminDoDAAC:
			doc.Set("contract_admin_majcom_eda_ext", majcom)
		}
	}
	return nil
}

// extractedData accepts the nested section as an object or a one-element list.
func extractedData(v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return x, nil
	case []any:
		if len(x) == 0 {
			return nil, nil
		}
		m, ok := x[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("extracted_data_eda_n: unexpected element %T", x[0])
		}
		return m, nil
	}
	return nil, fmt.Errorf("extracted_data_eda_n: unexpected type %T", v)
}

func vendorOrgs(data map[string]any) ([]map[string]any, error) {
	hierarchy, ok := data["vendor_org_hierarchy_eda_n"].(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, ok := hierarchy["vendor_org_eda_ext_n"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("vendor_org_eda_ext_n: unexpected type %T", raw)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
