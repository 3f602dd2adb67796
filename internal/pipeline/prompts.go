package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/JaimeStill/tally/internal/erp"
)

const classificationInstructions = `You are a document classifier for an ERP system. Based on the invoice JSON data, classify the document as one of:
- ap_invoice: a standard vendor invoice
- ap_invoice_with_lc: an invoice that references a letter of credit (LC) in the payment mode, particulars or vendor behavior. If invoice_details.lc_no is present it is ap_invoice_with_lc.

Respond with only one of the labels: ap_invoice or ap_invoice_with_lc.`

func classificationPrompt(details json.RawMessage) string {
	var sb strings.Builder
	sb.WriteString(classificationInstructions)
	sb.WriteString("\n\nHere is the invoice data:\n")
	sb.WriteString(indent(details))
	return sb.String()
}

const glInstructions = `You classify invoice line items into G/L accounts.
Prefer an account from the mapping when the line item resembles one of its examples.
When no example is similar, use the products, the vendor name and the invoice description to suggest the most relevant G/L account by common accounting practice.`

func glPrompt(vendor, products string, rules []Rule) string {
	return fmt.Sprintf(`%s

Invoice Details:
Vendor Name: %s
Invoice Description: Invoice from vendor %s
Line Item Products: %s

G/L Account Mapping:
%s

Classify this line item and suggest a G/L account from the mapping if applicable, otherwise suggest the most relevant G/L account.`,
		glInstructions, vendor, vendor, products, mappingTable(rules))
}

func itemPrompt(description string, groups []erp.ItemGroup, uoms []erp.UoMGroup) string {
	return fmt.Sprintf(`You are given:
1. An item description: %q
2. Item groups, used to determine series (field Number):
%s
3. Unit of measure groups, used to determine uom_group_entry (field AbsEntry, matched by Code):
%s

Tasks:
1. Infer the item group the description most likely belongs to and return its Number as series.
2. Infer the unit of measure group that best fits the item and return its AbsEntry as uom_group_entry.
3. Return a concise item_name for the new item master record.
If no confident match is found, set series or uom_group_entry to null. Do not invent values that are not in the lists.`,
		description, compact(groups), compact(uoms))
}

func accountPrompt(description string, accounts []erp.Account) string {
	return fmt.Sprintf(`You are given a chart of accounts with Code and Name fields:
%s

Identify the account category that best matches the item %q.
The item name may not match any Name exactly but likely belongs to one of the categories; for example "Speaker" or "Mouse" belong under IT, office equipment or administrative expenses.
Return the Code of the best account as account_code. If no relevant category exists, return null for account_code.`,
		compact(accounts), description)
}

// itemSpec is the model's answer on the item creation path.
type itemSpec struct {
	Series        *int   `json:"series"`
	UoMGroupEntry *int   `json:"uom_group_entry"`
	ItemName      string `json:"item_name"`
}

var itemSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"series": {
			Type:        genai.TypeInteger,
			Nullable:    genai.Ptr(true),
			Description: "Number of the matching item group, or null",
		},
		"uom_group_entry": {
			Type:        genai.TypeInteger,
			Nullable:    genai.Ptr(true),
			Description: "AbsEntry of the matching unit of measure group, or null",
		},
		"item_name": {Type: genai.TypeString},
	},
	Required: []string{"series", "uom_group_entry", "item_name"},
}

type accountChoice struct {
	AccountCode *string `json:"account_code"`
}

var accountSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"account_code": {
			Type:     genai.TypeString,
			Nullable: genai.Ptr(true),
		},
	},
	Required: []string{"account_code"},
}

func indent(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
