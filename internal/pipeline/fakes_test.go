package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/storage/storagetest"
)

// fakeDocs is an in-memory document store that applies dotted-path updates
// to a JSON tree, the way the Postgres store applies jsonb_set chains.
type fakeDocs struct {
	mu      sync.Mutex
	records map[int64]*record
	updates []documents.FieldSet
	failing error
}

type record struct {
	details map[string]any
	columns map[string]any
	version int
	encoded bool
}

func newDocs() *fakeDocs {
	return &fakeDocs{records: map[int64]*record{}}
}

func (f *fakeDocs) put(id int64, details map[string]any) *record {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &record{details: roundTrip(details).(map[string]any), columns: map[string]any{}, version: 1}
	f.records[id] = r
	return r
}

func (f *fakeDocs) Handler() *documents.Handler { return nil }

func (f *fakeDocs) Find(_ context.Context, id int64, _ ...string) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.records[id]
	if !ok {
		return nil, documents.ErrNotFound
	}

	raw, err := json.Marshal(r.details)
	if err != nil {
		return nil, err
	}
	var details documents.ExtractedDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, err
	}

	doc := &documents.Document{
		ID:         id,
		Version:    r.version,
		Details:    &details,
		RawDetails: raw,
		Encoded:    r.encoded,
	}
	if v, ok := r.columns["classification"].(string); ok {
		doc.Classification = &v
	}
	if v, ok := r.columns["gl_classification"].(string); ok {
		doc.GLClassification = &v
	}
	if v, ok := r.columns["posted_doc_entry"].(int); ok {
		doc.PostedDocEntry = &v
	}
	return doc, nil
}

func (f *fakeDocs) Update(_ context.Context, id int64, version int, fields documents.FieldSet) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing != nil {
		return 0, f.failing
	}
	r, ok := f.records[id]
	if !ok {
		return 0, documents.ErrNotFound
	}
	if r.version != version {
		return 0, documents.ErrConflict
	}

	for path, v := range fields {
		segs := strings.Split(path, ".")
		if segs[0] != "extracted_details" {
			r.columns[path] = v
			continue
		}
		if err := setPath(r.details, segs[1:], roundTrip(v)); err != nil {
			return 0, err
		}
	}

	f.updates = append(f.updates, fields)
	r.version++
	return r.version, nil
}

func (f *fakeDocs) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeDocs) column(id int64, name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].columns[name]
}

// detail reads a dotted path under extracted_details.
func (f *fakeDocs) detail(id int64, path string) any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cur any = f.records[id].details
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

func setPath(node any, segs []string, v any) error {
	last := len(segs) == 1
	switch n := node.(type) {
	case map[string]any:
		if last {
			n[segs[0]] = v
			return nil
		}
		child, ok := n[segs[0]]
		if !ok {
			child = map[string]any{}
			n[segs[0]] = child
		}
		return setPath(child, segs[1:], v)
	case []any:
		i, err := strconv.Atoi(segs[0])
		if err != nil || i >= len(n) {
			return fmt.Errorf("bad index %q", segs[0])
		}
		if last {
			n[i] = v
			return nil
		}
		return setPath(n[i], segs[1:], v)
	default:
		return fmt.Errorf("cannot address %q", segs[0])
	}
}

func roundTrip(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	created  []erp.NewItem
	posted   []erp.Invoice
	createFn func(erp.NewItem) (*erp.CreatedItem, error)
	postFn   func(erp.Invoice) (*erp.PostedInvoice, error)
}

func (g *fakeGateway) CreateItem(_ context.Context, item erp.NewItem) (*erp.CreatedItem, error) {
	g.mu.Lock()
	g.created = append(g.created, item)
	g.mu.Unlock()
	if g.createFn == nil {
		return nil, fmt.Errorf("%w: create_item: unexpected call", erp.ErrNotCreated)
	}
	return g.createFn(item)
}

func (g *fakeGateway) PostInvoice(_ context.Context, inv erp.Invoice) (*erp.PostedInvoice, error) {
	g.mu.Lock()
	g.posted = append(g.posted, inv)
	g.mu.Unlock()
	if g.postFn == nil {
		return nil, fmt.Errorf("%w: post_invoice: unexpected call", erp.ErrNotCreated)
	}
	return g.postFn(inv)
}

// fakeResolver answers model calls by purpose.
type fakeResolver struct {
	mu      sync.Mutex
	calls   map[string]int
	replies map[string]func(semantic.Request) (string, error)
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		calls:   map[string]int{},
		replies: map[string]func(semantic.Request) (string, error){},
	}
}

func (r *fakeResolver) on(purpose, answer string) {
	r.replies[purpose] = func(semantic.Request) (string, error) { return answer, nil }
}

func (r *fakeResolver) fail(purpose string, err error) {
	r.replies[purpose] = func(semantic.Request) (string, error) { return "", err }
}

func (r *fakeResolver) Generate(_ context.Context, req semantic.Request) (string, error) {
	r.mu.Lock()
	r.calls[req.Purpose]++
	reply := r.replies[req.Purpose]
	r.mu.Unlock()

	if reply == nil {
		return "", semantic.ErrEmptyResponse
	}
	return reply(req)
}

func (r *fakeResolver) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *fakeResolver) count(purpose string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[purpose]
}

func intPtr(v int) *int { return &v }

func newCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Vendor{
			{Name: "abc traders pvt. ltd", Code: "V0001"},
			{Name: "Himalayan Office Supplies", Code: "V0002"},
		},
		[]catalog.Item{
			{Name: "Printer Paper A4", Code: "A0001", UoMGroupEntry: intPtr(1), InventoryUoMEntry: intPtr(3)},
		},
		catalog.Reference{
			ItemGroups: []erp.ItemGroup{{GroupName: "Hardware", Number: 105}},
			UoMGroups:  []erp.UoMGroup{{AbsEntry: 1, Code: "PCS"}},
			Accounts: []erp.Account{
				{Code: "620000", Name: "IT Expenses"},
				{Code: "610101", Name: "Printing and Stationery"},
			},
		},
	)
}

type fixture struct {
	docs     *fakeDocs
	gateway  *fakeGateway
	resolver *fakeResolver
	catalog  *catalog.Catalog
	store    *storagetest.Memory
	reg      *prometheus.Registry
	cfg      *pipeline.Config
	sys      pipeline.System
}

func newFixture(t *testing.T, configure ...func(*pipeline.Config)) *fixture {
	t.Helper()

	cfg := &pipeline.Config{}
	for _, fn := range configure {
		fn(cfg)
	}
	require.NoError(t, cfg.Finalize(nil))

	f := &fixture{
		docs:     newDocs(),
		gateway:  &fakeGateway{},
		resolver: newResolver(),
		catalog:  newCatalog(),
		store:    &storagetest.Memory{},
		reg:      prometheus.NewRegistry(),
		cfg:      cfg,
	}

	sys, err := pipeline.New(&pipeline.Runtime{
		Documents: f.docs,
		Gateway:   f.gateway,
		Resolver:  f.resolver,
		Catalog:   f.catalog,
		Storage:   f.store,
		Metrics:   f.reg,
		Config:    cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.sys = sys
	return f
}

func line(products string, extra ...any) map[string]any {
	l := map[string]any{
		"products":     products,
		"quantity":     "2",
		"rate":         "1,250.50",
		"amount":       "2,501.00",
		"item_code":    nil,
		"uom_code":     nil,
		"account_code": nil,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		l[extra[i].(string)] = extra[i+1]
	}
	return l
}

func invoice(vendor string, grandTotal any, lines ...map[string]any) map[string]any {
	items := make([]any, len(lines))
	for i, l := range lines {
		items[i] = l
	}
	return map[string]any{
		"vendor_details": map[string]any{"name": vendor, "code": nil},
		"invoice_details": map[string]any{
			"bill_number": "INV-0042",
			"bill_date":   "2025-03-14",
		},
		"payment_details": map[string]any{"grand_total": grandTotal},
		"line_items":      items,
	}
}
