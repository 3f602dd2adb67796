package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/pkg/fuzzy"
)

// Label is a classification result. Values other than the known labels are
// soft failures carrying a description.
type Label string

const (
	LabelAPInvoice       Label = "ap_invoice"
	LabelAPInvoiceWithLC Label = "ap_invoice_with_lc"
	LabelOutgoingPayment Label = "outgoing_payment"
)

// Known reports whether l is one of the classification labels.
func (l Label) Known() bool {
	switch l {
	case LabelAPInvoice, LabelAPInvoiceWithLC, LabelOutgoingPayment:
		return true
	}
	return false
}

func failedLabel(reason string) Label {
	return Label("Classification failed: " + reason)
}

// Status is the result of one resolution step.
type Status string

const (
	StatusResolved Status = "resolved"
	StatusCreated  Status = "created"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Stage names used in outcomes, logs and metrics.
const (
	StageClassify  = "classify"
	StageGLAccount = "gl_account"
	StageVendor    = "vendor"
	StageItems     = "items"
	StagePost      = "post"
)

// Outcome reports what a resolution step did. Line is set for item outcomes.
// Err holds the underlying error of a failed step.
type Outcome struct {
	Stage  string       `json:"stage"`
	Line   *int         `json:"line,omitempty"`
	Status Status       `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Match  *fuzzy.Match `json:"match,omitempty"`
	Err    error        `json:"-"`
}

// Report summarizes one Process run.
type Report struct {
	RunID            uuid.UUID          `json:"run_id"`
	DocumentID       int64              `json:"document_id"`
	Classification   Label              `json:"classification,omitempty"`
	GLClassification string             `json:"gl_classification,omitempty"`
	Quarantined      string             `json:"quarantined,omitempty"`
	Vendor           *Outcome           `json:"vendor,omitempty"`
	Items            []Outcome          `json:"items,omitempty"`
	Posted           *erp.PostedInvoice `json:"posted,omitempty"`
	Errors           []string           `json:"errors,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
}

func (r *Report) fail(stage string, err error) {
	r.Errors = append(r.Errors, stage+": "+err.Error())
}

func lineIndex(i int) *int { return &i }
