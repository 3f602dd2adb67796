// Package documents implements the document store for Tally.
// A document is one OCR-extracted invoice record. The pipeline reads it with
// optional projections and mutates it through sparse, versioned field updates.
package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the unit of work enriched by the pipeline.
type Document struct {
	ID               int64             `json:"id"`
	FileName         string            `json:"file_name,omitempty"`
	RawText          string            `json:"raw_text,omitempty"`
	Details          *ExtractedDetails `json:"extracted_details,omitempty"`
	Classification   *string           `json:"classification"`
	GLClassification *string           `json:"gl_classification"`
	PostedDocEntry   *int              `json:"posted_doc_entry"`
	Version          int               `json:"version"`
	UploadedAt       time.Time         `json:"uploaded_at,omitzero"`
	UpdatedAt        time.Time         `json:"updated_at,omitzero"`

	// Encoded is set when extracted_details was stored as a JSON string
	// and had to be decoded on read.
	Encoded bool `json:"encoded,omitempty"`
	// RawDetails holds the decoded extracted_details object.
	RawDetails json.RawMessage `json:"-"`
	// DetailsErr records why extracted_details could not be decoded.
	DetailsErr error `json:"-"`
}

// ExtractedDetails is the structured OCR output for an invoice.
type ExtractedDetails struct {
	VendorDetails   VendorDetails   `json:"vendor_details"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	InvoiceDetails  InvoiceDetails  `json:"invoice_details"`
	PaymentDetails  PaymentDetails  `json:"payment_details"`
	LineItems       []LineItem      `json:"line_items"`
}

// VendorDetails identifies the issuing vendor. Code is written by vendor resolution.
type VendorDetails struct {
	Name          Text  `json:"name"`
	Address       Text  `json:"address,omitempty"`
	ContactNumber Text  `json:"contact_number,omitempty"`
	Email         Text  `json:"email,omitempty"`
	Website       Text  `json:"website,omitempty"`
	PANNumber     Text  `json:"pan_number,omitempty"`
	Code          *Text `json:"code"`
}

// HasCode reports whether a vendor code has been assigned.
func (v VendorDetails) HasCode() bool {
	return v.Code != nil && *v.Code != ""
}

type CustomerDetails struct {
	Name          Text `json:"name,omitempty"`
	Address       Text `json:"address,omitempty"`
	ContactNumber Text `json:"contact_number,omitempty"`
	PANNumber     Text `json:"pan_number,omitempty"`
}

type InvoiceDetails struct {
	BillNumber          Text `json:"bill_number,omitempty"`
	BillDate            Text `json:"bill_date,omitempty"`
	ModeOfPayment       Text `json:"mode_of_payment,omitempty"`
	FinanceManager      Text `json:"finance_manager,omitempty"`
	AuthorizedSignatory Text `json:"authorized_signatory,omitempty"`
	LCNo                Text `json:"lc_no,omitempty"`
}

type PaymentDetails struct {
	NetAmount         Text `json:"net_amount,omitempty"`
	DiscountAmount    Text `json:"discount_amount,omitempty"`
	TaxableAmount     Text `json:"taxable_amount,omitempty"`
	VATPercentage     Text `json:"vat_percentage,omitempty"`
	VATAmount         Text `json:"vat_amount,omitempty"`
	GrandTotal        Text `json:"grand_total,omitempty"`
	GrandTotalInWords Text `json:"grand_total_in_words,omitempty"`
}

// LineItem is one element of extracted_details.line_items.
// Resolution fills ItemCode, UoMCode and AccountCode only while they are unset.
type LineItem struct {
	Products    Text  `json:"products"`
	Quantity    Text  `json:"quantity,omitempty"`
	Rate        Text  `json:"rate,omitempty"`
	Amount      Text  `json:"amount,omitempty"`
	HSCode      Text  `json:"hs_code,omitempty"`
	ItemCode    *Text `json:"item_code"`
	UoMCode     *Text `json:"uom_code"`
	AccountCode *Text `json:"account_code"`
}

// HasItemCode reports whether the line already carries an item code.
func (l LineItem) HasItemCode() bool {
	return l.ItemCode != nil && *l.ItemCode != ""
}

// Text is a free-form OCR value. It accepts JSON strings, numbers, booleans
// and null, and keeps the textual form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case data[0] == '{', data[0] == '[':
		return fmt.Errorf("text value cannot be %s", kind(data[0]))
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

func kind(b byte) string {
	if b == '{' {
		return "an object"
	}
	return "an array"
}

// decodeDetails populates the details fields of d from the raw column value.
// A JSON string holding an object is decoded and flagged as Encoded.
func (d *Document) decodeDetails(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			d.DetailsErr = fmt.Errorf("%w: %v", ErrMalformed, err)
			return
		}
		d.Encoded = true
		raw = bytes.TrimSpace([]byte(inner))
	}

	if len(raw) == 0 || raw[0] != '{' {
		d.DetailsErr = fmt.Errorf("%w: extracted_details is not an object", ErrMalformed)
		return
	}

	var details ExtractedDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		d.DetailsErr = fmt.Errorf("%w: %v", ErrMalformed, err)
		return
	}

	d.RawDetails = json.RawMessage(raw)
	d.Details = &details
}
