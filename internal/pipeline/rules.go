package pipeline

import (
	"encoding/json"
	"strings"
)

// Rule maps a product keyword to a GL account label.
type Rule struct {
	Keyword string `json:"keyword"`
	Label   string `json:"label"`
}

// DefaultRules is the GL mapping table. Order is significant: the first rule
// whose keyword occurs in the product text wins.
var DefaultRules = []Rule{
	{"Sales-KTV ( 5 sec Headline break all news Sarbottam steelTVC cost of KrV dated Magh 1-30 2081 ) (As per RO)", "Advertisement Expenses"},
	{"Toward the Cost of Facebook Page Management", "Advertisement Expenses"},
	{"Advertisement tax and service", "Advertisement Expenses"},
	{"Radio Advertising", "Advertisement Expenses"},
	{"Volume Branding", "Advertisement Expenses"},
	{"Consignment Note", "CARGO FEE"},
	{"DHL Express or any cargo company", "CARGO FEE"},
	{"Cargo and Courier", "CARGO FEE"},
	{"Harpic Dettol Lizol Exo Odonil (bhatbhateni)", "Cleaning Expenses"},
	{"related to energy companies (electricit charges of a certain month in line item)", "Electricity Expenses"},
	{"items related with furniture decor interiors", "FURNITURE & FIXTURE"},
	{"related to insurance companyt and vehicle insurance", "INSURANCE"},
	{"Laptop, Keyboard, Mouse any accessory supply", "IT & ACCESSORIES"},
	{"Fortinet Fortigate 80F Unified Threat Protection", "IT Expenses"},
	{"Sales Order ERP Web Software development", "IT Expenses"},
	{"SAP Business One (bizhub)", "IT Expenses"},
	{"related to equipment used in a business to carry out operation", "PLANT & MACHENERY"},
	{"related to books and stationary suppliers", "PRINTING AND STATIONARY"},
	{"Crayons Corp Pvt. Ltd. (company Name)", "PRINTING AND STATIONARY"},
	{"related to building, structure and similar works of permanent nature", "Rep Maint Exp-Pool A "},
	{"Auto or Repairing Workshop", "Rep Maint Exp-Pool A "},
	{"Electronics related repair and maintenance", "Repair and Maintainance Admin -Pool B"},
	{"computers, data processing equipments, furiture, fixture and office equpments", "Repair and Maintainance Admin -Pool B"},
	{"SMS and call related invoice", "Telephones Expenses"},
	{"related to hotel room expenses ", "Travelling Expenses-Directors"},
	{"Hotel names on vendor names", "Travelling Expenses-Directors"},
	{"(customer name: Atul Neupane)", "Travelling Expenses-Directors"},
	{"related to hotel room expenses ", "Travelling Expenses-Staffs"},
	{"Hotel names on vendor names", "Travelling Expenses-Staffs"},
	{"(customer name: Sabina, Mahesh)", "Travelling Expenses-Staffs"},
	{"related to hotel room expenses", "Travelling Expenses-Others"},
	{"Hotel names on vendor names", "Travelling Expenses-Others"},
	{"(customer name: Sarbottam)", "Travelling Expenses-Others"},
	{"automobile, bus and minibus", "Rep Maint Exp-Pool C"},
	{"Construction and earth moving equipments, unabsorbed pollution control cost and any tangible assets not included in above blocks", "Repair and Maintainance Admin -Pool D"},
	{"Intangible assets (patents, copyrights, trade marks, software etc (cost+life down to which are not included in block D assets)", "Rep Maint Exp-Pool E"},
	{"Related to iron scraps or metal scraps", "SCRAP"},
	{"Iron Scrap or Sponge Iron", "SCRAP"},
}

// MatchRule returns the label of the first rule whose keyword is contained in
// products, compared case-insensitively.
func MatchRule(rules []Rule, products string) (string, bool) {
	p := strings.ToLower(products)
	for _, r := range rules {
		if strings.Contains(p, strings.ToLower(r.Keyword)) {
			return r.Label, true
		}
	}
	return "", false
}

// mappingTable renders rules grouped by label in first-appearance order,
// the form the model sees as reference.
func mappingTable(rules []Rule) string {
	var labels []string
	grouped := map[string][]string{}
	for _, r := range rules {
		if _, ok := grouped[r.Label]; !ok {
			labels = append(labels, r.Label)
		}
		grouped[r.Label] = append(grouped[r.Label], r.Keyword)
	}

	type entry struct {
		Account  string   `json:"account"`
		Examples []string `json:"examples"`
	}
	table := make([]entry, 0, len(labels))
	for _, l := range labels {
		table = append(table, entry{Account: l, Examples: grouped[l]})
	}

	data, _ := json.MarshalIndent(table, "", "  ")
	return string(data)
}
