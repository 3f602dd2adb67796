// Package pipeline enriches extracted invoice documents into ERP-postable
// purchase invoices. Stages run in a fixed order (classify, resolve vendor,
// resolve items, post); each reads the current document, writes sparse
// versioned updates, and can be invoked on its own.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/storage"
)

const tracerName = "github.com/JaimeStill/tally/internal/pipeline"

// Gateway is the subset of the ERP gateway the pipeline writes through.
type Gateway interface {
	CreateItem(ctx context.Context, item erp.NewItem) (*erp.CreatedItem, error)
	PostInvoice(ctx context.Context, invoice erp.Invoice) (*erp.PostedInvoice, error)
}

// Runtime bundles the dependencies the stages require.
// Storage and Metrics are optional.
type Runtime struct {
	Documents documents.System
	Gateway   Gateway
	Resolver  semantic.System
	Catalog   *catalog.Catalog
	Storage   storage.System
	Metrics   prometheus.Registerer
	Rules     []Rule
	Config    *Config
	Logger    *slog.Logger
}

// System is the pipeline contract.
type System interface {
	Handler() *Handler

	// Classify labels the document and, for ap_invoice, stores a GL account
	// suggestion. Model failures produce a soft-failure label, never an error;
	// errors come from the document store only.
	Classify(ctx context.Context, id int64) (Label, error)

	// SuggestGLAccount suggests a GL account from the first line item.
	SuggestGLAccount(ctx context.Context, doc *documents.Document) string

	// ResolveVendor assigns the vendor code from the vendor catalog.
	ResolveVendor(ctx context.Context, id int64) Outcome

	// ResolveItems assigns item codes line by line, creating ERP items when
	// nothing in the catalog matches. A failed line never stops the loop.
	ResolveItems(ctx context.Context, id int64) []Outcome

	// Process runs every stage in order and reports what happened.
	Process(ctx context.Context, id int64) (*Report, error)

	// BuildInvoice maps a fully resolved document to a purchase invoice.
	BuildInvoice(doc *documents.Document) (*erp.Invoice, error)

	// Invoice loads the document and builds its invoice without posting.
	Invoice(ctx context.Context, id int64) (*erp.Invoice, error)

	// Post builds and posts the invoice and records the ERP DocEntry.
	Post(ctx context.Context, id int64) (*erp.PostedInvoice, error)
}

type pipeline struct {
	rt      *Runtime
	rules   []Rule
	locks   *locker
	metrics *metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates the pipeline from rt. Rules default to DefaultRules.
func New(rt *Runtime) (System, error) {
	m, err := newMetrics(rt.Metrics)
	if err != nil {
		return nil, err
	}

	rules := rt.Rules
	if rules == nil {
		rules = DefaultRules
	}

	return &pipeline{
		rt:      rt,
		rules:   rules,
		locks:   newLocker(),
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		logger:  rt.Logger.With("system", "pipeline"),
	}, nil
}

func (p *pipeline) Handler() *Handler {
	return NewHandler(p, p.logger)
}

// stage starts a span and returns a finisher that records duration and the
// span status.
func (p *pipeline) stage(ctx context.Context, name string, id int64) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name,
		trace.WithAttributes(attribute.Int64("document.id", id)),
	)
	start := time.Now()

	return ctx, func(err error) {
		p.metrics.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (p *pipeline) record(o Outcome) Outcome {
	p.metrics.outcome(o)
	return o
}

func failed(stage string, line *int, detail string, err error) Outcome {
	return Outcome{Stage: stage, Line: line, Status: StatusFailed, Detail: detail, Err: err}
}

func skipped(stage string, line *int, detail string) Outcome {
	return Outcome{Stage: stage, Line: line, Status: StatusSkipped, Detail: detail}
}

// resolvable reports why doc cannot enter a resolution stage.
func resolvable(doc *documents.Document) error {
	if doc.DetailsErr != nil {
		return doc.DetailsErr
	}
	if doc.Encoded {
		return fmt.Errorf("%w: extracted_details is string-encoded", documents.ErrMalformed)
	}
	if doc.Details == nil {
		return fmt.Errorf("%w: extracted_details missing", documents.ErrMalformed)
	}
	return nil
}
