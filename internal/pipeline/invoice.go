package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/pkg/storage"
)

var notAmount = regexp.MustCompile(`[^0-9.\-]`)

var billDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

func (p *pipeline) BuildInvoice(doc *documents.Document) (*erp.Invoice, error) {
	if err := resolvable(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPostable, err)
	}

	d := doc.Details
	if !d.VendorDetails.HasCode() {
		return nil, fmt.Errorf("%w: vendor code unresolved", ErrNotPostable)
	}
	if len(d.LineItems) == 0 {
		return nil, fmt.Errorf("%w: no line items", ErrNotPostable)
	}

	inv := &erp.Invoice{
		CardCode:      d.VendorDetails.Code.String(),
		CardName:      strings.TrimSpace(d.VendorDetails.Name.String()),
		NumAtCard:     strings.TrimSpace(d.InvoiceDetails.BillNumber.String()),
		DocDate:       docDate(d.InvoiceDetails.BillDate),
		DocumentLines: make([]erp.InvoiceLine, 0, len(d.LineItems)),
	}

	for i, line := range d.LineItems {
		l, err := p.invoiceLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrNotPostable, i, err)
		}
		inv.DocumentLines = append(inv.DocumentLines, l)
	}
	return inv, nil
}

func (p *pipeline) invoiceLine(line documents.LineItem) (erp.InvoiceLine, error) {
	if !line.HasItemCode() {
		return erp.InvoiceLine{}, fmt.Errorf("item code unresolved")
	}

	qty, ok := amount(line.Quantity)
	if !ok || !qty.IsPositive() {
		return erp.InvoiceLine{}, fmt.Errorf("invalid quantity %q", line.Quantity)
	}

	price, ok := amount(line.Rate)
	if !ok {
		total, ok := amount(line.Amount)
		if !ok {
			return erp.InvoiceLine{}, fmt.Errorf("no rate or amount")
		}
		price = total.DivRound(qty, 6)
	}

	l := erp.InvoiceLine{
		ItemCode:        line.ItemCode.String(),
		ItemDescription: strings.TrimSpace(line.Products.String()),
		Quantity:        json.Number(qty.String()),
		UnitPrice:       json.Number(price.String()),
		TaxCode:         p.rt.Config.TaxCode,
	}

	if line.UoMCode != nil && *line.UoMCode != "" {
		entry, err := strconv.Atoi(line.UoMCode.String())
		if err != nil {
			return erp.InvoiceLine{}, fmt.Errorf("invalid uom code %q", *line.UoMCode)
		}
		l.UoMEntry = &entry
	}
	if line.AccountCode != nil {
		l.AccountCode = line.AccountCode.String()
	}
	return l, nil
}

// amount parses an OCR amount, ignoring currency symbols and separators.
func amount(raw documents.Text) (decimal.Decimal, bool) {
	cleaned := notAmount.ReplaceAllString(raw.String(), "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// docDate normalizes a bill date to YYYY-MM-DD. Unrecognized dates are
// omitted so the ERP applies its default.
func docDate(raw documents.Text) string {
	s := strings.TrimSpace(raw.String())
	for _, layout := range billDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

func (p *pipeline) Invoice(ctx context.Context, id int64) (*erp.Invoice, error) {
	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details")
	if err != nil {
		return nil, err
	}
	return p.BuildInvoice(doc)
}

func (p *pipeline) Post(ctx context.Context, id int64) (*erp.PostedInvoice, error) {
	unlock, err := p.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return p.post(ctx, id)
}

func (p *pipeline) post(ctx context.Context, id int64) (posted *erp.PostedInvoice, err error) {
	ctx, done := p.stage(ctx, StagePost, id)
	defer func() {
		status := StatusResolved
		if err != nil {
			status = StatusFailed
		}
		p.metrics.outcome(Outcome{Stage: StagePost, Status: status})
		done(err)
	}()

	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details", "posted_doc_entry")
	if err != nil {
		return nil, err
	}
	if doc.PostedDocEntry != nil {
		return nil, fmt.Errorf("%w: doc entry %d", ErrAlreadyPosted, *doc.PostedDocEntry)
	}

	inv, err := p.BuildInvoice(doc)
	if err != nil {
		return nil, err
	}

	posted, err = p.rt.Gateway.PostInvoice(ctx, *inv)
	if err != nil {
		p.logger.Error("invoice not posted", "id", id, "error", err)
		return nil, err
	}

	p.archive(ctx, id, posted, inv)

	if _, err := p.rt.Documents.Update(ctx, id, doc.Version, documents.FieldSet{
		"posted_doc_entry": posted.DocEntry,
	}); err != nil {
		p.logger.Error("posted invoice not recorded", "id", id, "doc_entry", posted.DocEntry, "error", err)
		return posted, fmt.Errorf("record doc entry %d: %w", posted.DocEntry, err)
	}

	p.logger.Info("invoice posted", "id", id, "doc_entry", posted.DocEntry, "doc_num", posted.DocNum)
	return posted, nil
}

// archive stores the posted payload at invoices/<id>/<doc entry>.json.
func (p *pipeline) archive(ctx context.Context, id int64, posted *erp.PostedInvoice, inv *erp.Invoice) {
	if p.rt.Storage == nil || !p.rt.Storage.Ready() {
		return
	}

	key := fmt.Sprintf("invoices/%d/%d.json", id, posted.DocEntry)
	record := struct {
		DocumentID int64              `json:"document_id"`
		Posted     *erp.PostedInvoice `json:"posted"`
		Invoice    *erp.Invoice       `json:"invoice"`
		PostedAt   time.Time          `json:"posted_at"`
	}{id, posted, inv, time.Now().UTC()}

	if err := storage.PutJSON(ctx, p.rt.Storage, key, record); err != nil {
		p.logger.Error("posted invoice not archived", "id", id, "key", key, "error", err)
	}
}
