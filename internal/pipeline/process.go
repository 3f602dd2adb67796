package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/documents"
)

// Process runs classify, vendor, items and, when AutoPost is set, post.
// A stage failure is recorded and later stages still run, except that a
// missing document ends the run with ErrNotFound and a document failing
// Validate is quarantined before vendor and item resolution. Cancellation is
// checked between stages.
func (p *pipeline) Process(ctx context.Context, id int64) (*Report, error) {
	unlock, err := p.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &Report{
		RunID:      uuid.New(),
		DocumentID: id,
		StartedAt:  time.Now().UTC(),
	}
	log := p.logger.With("id", id, "run_id", report.RunID)
	defer func() { report.FinishedAt = time.Now().UTC() }()

	label, gl, err := p.classify(ctx, id)
	report.Classification = label
	report.GLClassification = gl
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return nil, err
		}
		report.fail(StageClassify, err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details")
	if err != nil {
		report.fail(StageVendor, err)
		return report, nil
	}
	if err := documents.Validate(doc); err != nil {
		report.Quarantined = err.Error()
		log.Warn("document quarantined", "reason", err)
		return report, nil
	}

	vendor := p.resolveVendor(ctx, id)
	report.Vendor = &vendor
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Items = p.resolveItems(ctx, id)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if p.rt.Config.AutoPost {
		posted, err := p.post(ctx, id)
		report.Posted = posted
		if err != nil {
			report.fail(StagePost, err)
		}
	}

	log.Info(
		"document processed",
		"classification", report.Classification,
		"vendor", vendor.Status,
		"items", len(report.Items),
		"errors", len(report.Errors),
	)
	return report, nil
}
