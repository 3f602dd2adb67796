package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/pkg/fuzzy"
)

func (p *pipeline) ResolveVendor(ctx context.Context, id int64) Outcome {
	unlock, err := p.locks.lock(ctx, id)
	if err != nil {
		return failed(StageVendor, nil, "document busy", err)
	}
	defer unlock()

	return p.resolveVendor(ctx, id)
}

func (p *pipeline) resolveVendor(ctx context.Context, id int64) Outcome {
	ctx, done := p.stage(ctx, StageVendor, id)
	o := p.record(p.matchVendor(ctx, id))
	done(o.Err)

	log := p.logger.With("id", id, "status", o.Status, "detail", o.Detail)
	switch o.Status {
	case StatusFailed:
		log.Error("vendor resolution failed", "error", o.Err)
	case StatusSkipped:
		log.Warn("vendor resolution skipped")
	default:
		log.Info("vendor resolved")
	}
	return o
}

func (p *pipeline) matchVendor(ctx context.Context, id int64) Outcome {
	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details")
	if err != nil {
		return failed(StageVendor, nil, "load document", err)
	}
	if err := resolvable(doc); err != nil {
		return failed(StageVendor, nil, err.Error(), err)
	}

	vd := doc.Details.VendorDetails
	name := strings.TrimSpace(vd.Name.String())
	if name == "" {
		return skipped(StageVendor, nil, "vendor name empty")
	}
	if vd.HasCode() {
		return skipped(StageVendor, nil, "vendor code already set")
	}

	vendors := p.rt.Catalog.Vendors()
	if len(vendors) == 0 {
		return skipped(StageVendor, nil, "vendor catalog empty")
	}

	names := make([]string, len(vendors))
	for i, v := range vendors {
		names[i] = v.Name
	}

	m, _ := fuzzy.BestMatch(name, names)

	if !m.Meets(p.rt.Config.VendorThreshold) {
		o := skipped(StageVendor, nil, fmt.Sprintf("no vendor above threshold for %q (best %q, score %.1f)", name, m.Value, m.Score))
		o.Match = &m
		return o
	}

	code := vendors[m.Index].Code
	if code == "" {
		o := skipped(StageVendor, nil, fmt.Sprintf("matched vendor %q has no code", m.Value))
		o.Match = &m
		return o
	}

	if _, err := p.rt.Documents.Update(ctx, id, doc.Version, documents.FieldSet{
		documents.VendorCodePath: code,
	}); err != nil {
		return failed(StageVendor, nil, "save vendor code", err)
	}

	return Outcome{
		Stage:  StageVendor,
		Status: StatusResolved,
		Detail: fmt.Sprintf("%q matched %q as %s", name, m.Value, code),
		Match:  &m,
	}
}
