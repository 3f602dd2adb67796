package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/semantic"
)

func TestClassifyBelowMateriality(t *testing.T) {
	tests := []struct {
		name  string
		total any
	}{
		{"formatted string", "1,500.00"},
		{"currency code", "NPR 1,999.99"},
		{"json number", 500},
		{"zero", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.docs.put(1, invoice("ABC Traders", tt.total, line("Printer Paper A4")))

			label, err := f.sys.Classify(context.Background(), 1)
			require.NoError(t, err)

			assert.Equal(t, pipeline.LabelOutgoingPayment, label)
			assert.Zero(t, f.resolver.total(), "no model call below the materiality limit")
			assert.Equal(t, "outgoing_payment", f.docs.column(1, "classification"))
			assert.Nil(t, f.docs.column(1, "gl_classification"))
		})
	}
}

func TestClassifyAboveMaterialityCallsModel(t *testing.T) {
	tests := []struct {
		name  string
		total any
	}{
		{"at the limit", "2,000.00"},
		{"large", "1,25,000"},
		{"missing", nil},
		{"unparsable", "N/A"},
		{"multiple decimal points", "1.500.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.resolver.on(pipeline.StageClassify, "ap_invoice_with_lc")
			f.docs.put(1, invoice("ABC Traders", tt.total, line("Printer Paper A4")))

			label, err := f.sys.Classify(context.Background(), 1)
			require.NoError(t, err)

			assert.Equal(t, pipeline.LabelAPInvoiceWithLC, label)
			assert.Equal(t, 1, f.resolver.count(pipeline.StageClassify))
		})
	}
}

func TestClassifyAPInvoiceSuggestsGLAccount(t *testing.T) {
	f := newFixture(t)
	f.resolver.on(pipeline.StageClassify, "  `ap_invoice`\n")
	f.docs.put(1, invoice("Kantipur FM", "45,000", line("Radio Advertising - March slots")))

	label, err := f.sys.Classify(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, pipeline.LabelAPInvoice, label)
	assert.True(t, label.Known())
	assert.Equal(t, "ap_invoice", f.docs.column(1, "classification"))
	assert.Equal(t, "Advertisement Expenses", f.docs.column(1, "gl_classification"))
	assert.Zero(t, f.resolver.count(pipeline.StageGLAccount), "rule table answered")
	assert.Equal(t, 1, f.docs.updateCount(), "label and GL account written together")
}

func TestClassifyModelFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	f.resolver.fail(pipeline.StageClassify, errors.New("quota exhausted"))
	f.docs.put(1, invoice("ABC Traders", "10,000", line("Printer Paper A4")))

	label, err := f.sys.Classify(context.Background(), 1)
	require.NoError(t, err)

	assert.False(t, label.Known())
	assert.True(t, strings.HasPrefix(string(label), "Classification failed: "))
	assert.Contains(t, string(label), "quota exhausted")
	assert.Equal(t, string(label), f.docs.column(1, "classification"))
}

func TestClassifyEmptyModelResponse(t *testing.T) {
	f := newFixture(t)
	f.docs.put(1, invoice("ABC Traders", "10,000", line("Printer Paper A4")))

	label, err := f.sys.Classify(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, string(label), semantic.ErrEmptyResponse.Error())
}

func TestClassifyStoreErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.sys.Classify(context.Background(), 404)
	assert.ErrorIs(t, err, documents.ErrNotFound)

	f.docs.put(1, invoice("ABC Traders", "100", line("Printer Paper A4")))
	f.docs.failing = documents.ErrConflict

	label, err := f.sys.Classify(context.Background(), 1)
	assert.ErrorIs(t, err, documents.ErrConflict)
	assert.Equal(t, pipeline.LabelOutgoingPayment, label)
}

func TestSuggestGLAccount(t *testing.T) {
	tests := []struct {
		name   string
		lines  []documents.LineItem
		answer string
		err    error
		want   string
		model  bool
	}{
		{
			name: "no line items",
			want: "classification failed: no line items",
		},
		{
			name:  "first line without products",
			lines: []documents.LineItem{{Products: ""}, {Products: "Radio Advertising"}},
			want:  "OTHER",
		},
		{
			name:  "case-insensitive keyword",
			lines: []documents.LineItem{{Products: "HARPIC DETTOL LIZOL EXO ODONIL (BHATBHATENI) x 4"}},
			want:  "Cleaning Expenses",
		},
		{
			name:  "table order breaks ties",
			lines: []documents.LineItem{{Products: "Consignment Note for Radio Advertising"}},
			want:  "Advertisement Expenses",
		},
		{
			name:  "duplicate keyword goes to first label",
			lines: []documents.LineItem{{Products: "Hotel names on vendor names"}},
			want:  "Travelling Expenses-Directors",
		},
		{
			name:  "only the first line is considered",
			lines: []documents.LineItem{{Products: "Volume Branding"}, {Products: "Iron Scrap or Sponge Iron"}},
			want:  "Advertisement Expenses",
		},
		{
			name:   "model answer with emphasis",
			lines:  []documents.LineItem{{Products: "Ergonomic office chair"}},
			answer: "This belongs under **Office Furniture** or, more precisely, **FURNITURE & FIXTURE**.",
			want:   "FURNITURE & FIXTURE",
			model:  true,
		},
		{
			name:   "model answer without emphasis",
			lines:  []documents.LineItem{{Products: "Ergonomic office chair"}},
			answer: "The chair is office equipment. FURNITURE & FIXTURE",
			want:   "FURNITURE & FIXTURE",
			model:  true,
		},
		{
			name:  "model failure",
			lines: []documents.LineItem{{Products: "Ergonomic office chair"}},
			err:   errors.New("deadline exceeded"),
			want:  "classification failed: deadline exceeded",
			model: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.err != nil {
				f.resolver.fail(pipeline.StageGLAccount, tt.err)
			} else {
				f.resolver.on(pipeline.StageGLAccount, tt.answer)
			}

			doc := &documents.Document{
				ID: 1,
				Details: &documents.ExtractedDetails{
					VendorDetails: documents.VendorDetails{Name: "Sharma Furnishers"},
					LineItems:     tt.lines,
				},
			}

			got := f.sys.SuggestGLAccount(context.Background(), doc)
			assert.Equal(t, tt.want, got)

			calls := f.resolver.count(pipeline.StageGLAccount)
			if tt.model {
				assert.Equal(t, 1, calls)
			} else {
				assert.Zero(t, calls)
			}
		})
	}
}

func TestSuggestGLAccountPrompt(t *testing.T) {
	f := newFixture(t)

	var prompt string
	f.resolver.replies[pipeline.StageGLAccount] = func(req semantic.Request) (string, error) {
		prompt = req.Prompt
		return "**IT Expenses**", nil
	}

	doc := &documents.Document{
		Details: &documents.ExtractedDetails{
			VendorDetails: documents.VendorDetails{Name: "Mercantile Office Systems"},
			LineItems:     []documents.LineItem{{Products: "Annual antivirus licence"}},
		},
	}

	assert.Equal(t, "IT Expenses", f.sys.SuggestGLAccount(context.Background(), doc))
	assert.Contains(t, prompt, "Vendor Name: Mercantile Office Systems")
	assert.Contains(t, prompt, "Invoice from vendor Mercantile Office Systems")
	assert.Contains(t, prompt, "Line Item Products: Annual antivirus licence")
	assert.Contains(t, prompt, `"account": "SCRAP"`)
}
