package erp

import "encoding/json"

// Item is an item master record.
type Item struct {
	ItemCode          string `json:"ItemCode"`
	ItemName          string `json:"ItemName"`
	UoMGroupEntry     *int   `json:"UoMGroupEntry"`
	InventoryUoMEntry *int   `json:"InventoryUoMEntry"`
}

// ItemGroup maps a group name to the series number used when creating items.
type ItemGroup struct {
	GroupName string `json:"GroupName"`
	Number    int    `json:"Number"`
}

// UoMGroup is a unit-of-measure group.
type UoMGroup struct {
	AbsEntry int    `json:"AbsEntry"`
	Code     string `json:"Code"`
	BaseUoM  *int   `json:"BaseUoM"`
}

// Account is a chart-of-accounts entry.
type Account struct {
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// DistributionRule is a cost-center distribution rule.
type DistributionRule struct {
	FactorCode        string `json:"FactorCode"`
	FactorDescription string `json:"FactorDescription"`
}

// NewItem is the create-item payload. Nil fields are omitted.
type NewItem struct {
	ItemName      string `json:"ItemName"`
	Series        *int   `json:"Series,omitempty"`
	UoMGroupEntry *int   `json:"UoMGroupEntry,omitempty"`
}

// CreatedItem carries the ERP-assigned identity of a new item.
type CreatedItem struct {
	ItemCode          string `json:"ItemCode"`
	InventoryUoMEntry *int   `json:"InventoryUoMEntry"`
}

// Invoice is a purchase-invoice payload.
type Invoice struct {
	CardCode      string        `json:"CardCode"`
	CardName      string        `json:"CardName,omitempty"`
	NumAtCard     string        `json:"NumAtCard,omitempty"`
	DocDate       string        `json:"DocDate,omitempty"`
	DocumentLines []InvoiceLine `json:"DocumentLines"`
}

// InvoiceLine is one purchase-invoice line. Quantity and UnitPrice are
// decimal strings rendered as JSON numbers.
type InvoiceLine struct {
	ItemCode        string      `json:"ItemCode"`
	ItemDescription string      `json:"ItemDescription,omitempty"`
	Quantity        json.Number `json:"Quantity"`
	UnitPrice       json.Number `json:"UnitPrice"`
	TaxCode         string      `json:"TaxCode"`
	UoMEntry        *int        `json:"UoMEntry,omitempty"`
	AccountCode     string      `json:"AccountCode,omitempty"`
}

// PostedInvoice is the created purchase-invoice reference.
type PostedInvoice struct {
	DocEntry int `json:"DocEntry"`
	DocNum   int `json:"DocNum"`
}

type credentials struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

type page[T any] struct {
	Value      []T    `json:"value"`
	NextLink   string `json:"odata.nextLink"`
	NextLinkV4 string `json:"@odata.nextLink"`
}

func (p page[T]) next() string {
	if p.NextLink != "" {
		return p.NextLink
	}
	return p.NextLinkV4
}

type errorBody struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
	} `json:"error"`
}
