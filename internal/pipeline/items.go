package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/fuzzy"
)

const (
	purposeItemSpec = "item_spec"
	purposeAccount  = "account_code"
)

func (p *pipeline) ResolveItems(ctx context.Context, id int64) []Outcome {
	unlock, err := p.locks.lock(ctx, id)
	if err != nil {
		return []Outcome{failed(StageItems, nil, "document busy", err)}
	}
	defer unlock()

	return p.resolveItems(ctx, id)
}

func (p *pipeline) resolveItems(ctx context.Context, id int64) []Outcome {
	ctx, done := p.stage(ctx, StageItems, id)

	doc, err := p.rt.Documents.Find(ctx, id, "extracted_details")
	if err != nil {
		done(err)
		return []Outcome{p.record(failed(StageItems, nil, "load document", err))}
	}
	if err := resolvable(doc); err != nil {
		done(err)
		return []Outcome{p.record(failed(StageItems, nil, err.Error(), err))}
	}

	version := doc.Version
	outcomes := make([]Outcome, 0, len(doc.Details.LineItems))

	for i, line := range doc.Details.LineItems {
		o, fields := p.resolveLine(ctx, i, line)

		if len(fields) > 0 {
			next, err := p.rt.Documents.Update(ctx, id, version, fields)
			if err != nil {
				o = failed(StageItems, lineIndex(i), "save line item", err)
			} else {
				version = next
			}
		}

		p.logLine(id, o)
		outcomes = append(outcomes, p.record(o))
	}

	done(nil)
	return outcomes
}

func (p *pipeline) logLine(id int64, o Outcome) {
	log := p.logger.With("id", id, "line", *o.Line, "status", o.Status, "detail", o.Detail)
	switch o.Status {
	case StatusFailed:
		log.Error("line item resolution failed", "error", o.Err)
	case StatusSkipped:
		log.Info("line item skipped")
	default:
		log.Info("line item resolved")
	}
}

// resolveLine decides the outcome of one line and the fields to write.
// Fields are only returned when every step they depend on succeeded.
func (p *pipeline) resolveLine(ctx context.Context, i int, line documents.LineItem) (Outcome, documents.FieldSet) {
	products := strings.TrimSpace(line.Products.String())
	if products == "" {
		return skipped(StageItems, lineIndex(i), "no product description"), nil
	}
	if line.HasItemCode() {
		return skipped(StageItems, lineIndex(i), "item code already set"), nil
	}
	if !p.rt.Catalog.Ready() {
		return skipped(StageItems, lineIndex(i), "item catalog not loaded"), nil
	}

	items := p.rt.Catalog.Items()
	names := make([]string, len(items))
	for j, it := range items {
		names[j] = it.Name
	}

	if m, ok := fuzzy.BestMatch(products, names); ok && m.Meets(p.rt.Config.ItemThreshold) {
		item := items[m.Index]
		o := Outcome{
			Stage:  StageItems,
			Line:   lineIndex(i),
			Status: StatusResolved,
			Detail: fmt.Sprintf("%q matched %q as %s", products, item.Name, item.Code),
			Match:  &m,
		}
		return o, documents.FieldSet{
			documents.LinePath(i, "item_code"): item.Code,
			documents.LinePath(i, "uom_code"):  item.InventoryUoMEntry,
		}
	}

	return p.createItem(ctx, i, products)
}

// createItem runs the creation path: infer attributes, create the ERP item,
// pick an account. Creation and account mapping both run once attributes
// are inferred; the three fields are returned only when both succeeded.
func (p *pipeline) createItem(ctx context.Context, i int, products string) (Outcome, documents.FieldSet) {
	ref := p.rt.Catalog.Reference()

	inferred, err := semantic.Structured[itemSpec](ctx, p.rt.Resolver, semantic.Request{
		Purpose: purposeItemSpec,
		Prompt:  itemPrompt(products, ref.ItemGroups, ref.UoMGroups),
		Schema:  itemSchema,
	})
	if err != nil {
		return failed(StageItems, lineIndex(i), "infer item attributes", err), nil
	}

	newItem := erp.NewItem{
		ItemName:      strings.TrimSpace(inferred.ItemName),
		Series:        knownSeries(inferred.Series, ref.ItemGroups),
		UoMGroupEntry: knownUoMGroup(inferred.UoMGroupEntry, ref.UoMGroups),
	}
	if newItem.ItemName == "" {
		newItem.ItemName = products
	}

	created, createErr := p.rt.Gateway.CreateItem(ctx, newItem)
	if createErr == nil {
		p.rt.Catalog.AddItem(catalog.Item{
			Name:              newItem.ItemName,
			Code:              created.ItemCode,
			UoMGroupEntry:     newItem.UoMGroupEntry,
			InventoryUoMEntry: created.InventoryUoMEntry,
		})
	}

	choice, mapErr := semantic.Structured[accountChoice](ctx, p.rt.Resolver, semantic.Request{
		Purpose: purposeAccount,
		Prompt:  accountPrompt(products, ref.Accounts),
		Schema:  accountSchema,
	})

	if createErr != nil {
		if mapErr != nil {
			p.logger.Warn("account mapping failed alongside item creation", "line", i, "error", mapErr)
		}
		return failed(StageItems, lineIndex(i), "create item", createErr), nil
	}
	if mapErr != nil {
		return failed(StageItems, lineIndex(i), fmt.Sprintf("map account for created item %s", created.ItemCode), mapErr), nil
	}
	if choice.AccountCode == nil {
		return failed(StageItems, lineIndex(i), fmt.Sprintf("no account for created item %s", created.ItemCode), nil), nil
	}
	account, ok := p.rt.Catalog.FindAccount(*choice.AccountCode)
	if !ok {
		return failed(StageItems, lineIndex(i), fmt.Sprintf("account %q not in chart of accounts", *choice.AccountCode), nil), nil
	}

	o := Outcome{
		Stage:  StageItems,
		Line:   lineIndex(i),
		Status: StatusCreated,
		Detail: fmt.Sprintf("created %s %q with account %s", created.ItemCode, newItem.ItemName, account.Code),
	}
	return o, documents.FieldSet{
		documents.LinePath(i, "item_code"):    created.ItemCode,
		documents.LinePath(i, "uom_code"):     created.InventoryUoMEntry,
		documents.LinePath(i, "account_code"): account.Code,
	}
}

// knownSeries drops a series that is not an item group number.
func knownSeries(series *int, groups []erp.ItemGroup) *int {
	if series == nil {
		return nil
	}
	if slices.ContainsFunc(groups, func(g erp.ItemGroup) bool { return g.Number == *series }) {
		return series
	}
	return nil
}

// knownUoMGroup drops an entry that is not a UoM group.
func knownUoMGroup(entry *int, groups []erp.UoMGroup) *int {
	if entry == nil {
		return nil
	}
	if slices.ContainsFunc(groups, func(g erp.UoMGroup) bool { return g.AbsEntry == *entry }) {
		return entry
	}
	return nil
}
