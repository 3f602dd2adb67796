package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/formatting"
)

const (
	glNoLineItems  = "classification failed: no line items"
	glNoProducts   = "OTHER"
	glFailedPrefix = "classification failed"
)

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

func (p *pipeline) Classify(ctx context.Context, id int64) (Label, error) {
	unlock, err := p.locks.lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer unlock()

	label, _, err := p.classify(ctx, id)
	return label, err
}

// classify labels the document and persists classification and, for
// ap_invoice, gl_classification.
func (p *pipeline) classify(ctx context.Context, id int64) (Label, string, error) {
	ctx, done := p.stage(ctx, StageClassify, id)

	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details")
	if err != nil {
		done(err)
		return "", "", err
	}

	label := p.label(ctx, doc)
	p.metrics.label(label)

	fields := documents.FieldSet{"classification": string(label)}

	var gl string
	if label == LabelAPInvoice {
		gl = p.SuggestGLAccount(ctx, doc)
		fields["gl_classification"] = gl
	}

	if _, err := p.rt.Documents.Update(ctx, id, doc.Version, fields); err != nil {
		p.logger.Error("classification not saved", "id", id, "label", label, "error", err)
		done(err)
		return label, gl, err
	}

	p.logger.Info("document classified", "id", id, "label", label, "gl_classification", gl)
	done(nil)
	return label, gl, nil
}

func (p *pipeline) label(ctx context.Context, doc *documents.Document) Label {
	if doc.DetailsErr != nil {
		return failedLabel(doc.DetailsErr.Error())
	}
	if doc.Details == nil {
		return failedLabel("no extracted details")
	}

	if total, ok := grandTotal(doc.Details.PaymentDetails.GrandTotal); ok && total.LessThan(p.rt.Config.Materiality()) {
		p.logger.Info("below materiality limit", "id", doc.ID, "grand_total", total.String())
		return LabelOutgoingPayment
	}

	answer, err := semantic.Text(ctx, p.rt.Resolver, semantic.Request{
		Purpose: StageClassify,
		Prompt:  classificationPrompt(doc.RawDetails),
	})
	if err != nil {
		return failedLabel(err.Error())
	}
	return Label(answer)
}

// grandTotal strips everything but digits and dots and parses the rest.
func grandTotal(raw documents.Text) (decimal.Decimal, bool) {
	cleaned := nonNumeric.ReplaceAllString(raw.String(), "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (p *pipeline) SuggestGLAccount(ctx context.Context, doc *documents.Document) string {
	if doc.Details == nil || len(doc.Details.LineItems) == 0 {
		return glNoLineItems
	}

	products := strings.TrimSpace(doc.Details.LineItems[0].Products.String())
	if products == "" {
		return glNoProducts
	}

	if label, ok := MatchRule(p.rules, products); ok {
		return label
	}

	ctx, done := p.stage(ctx, StageGLAccount, doc.ID)

	answer, err := p.rt.Resolver.Generate(ctx, semantic.Request{
		Purpose: StageGLAccount,
		Prompt:  glPrompt(doc.Details.VendorDetails.Name.String(), products, p.rules),
	})
	done(err)
	if err != nil {
		return glFailedPrefix + ": " + err.Error()
	}
	return formatting.Emphasized(answer)
}
