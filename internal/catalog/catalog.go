// Package catalog holds the reference data the pipeline resolves against:
// the vendor list, the ERP item master, and the ERP reference tables used to
// create new items.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/JaimeStill/tally/internal/erp"
)

// Vendor is one row of the vendor list. Order follows the source file.
type Vendor struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Item is an item master record available for matching.
type Item struct {
	Name              string `json:"name"`
	Code              string `json:"code"`
	UoMGroupEntry     *int   `json:"uom_group_entry"`
	InventoryUoMEntry *int   `json:"inventory_uom_entry"`
}

// Reference holds the ERP tables consulted on the item creation path.
type Reference struct {
	ItemGroups        []erp.ItemGroup        `json:"item_groups"`
	UoMGroups         []erp.UoMGroup         `json:"uom_groups"`
	Accounts          []erp.Account          `json:"accounts"`
	DistributionRules []erp.DistributionRule `json:"distribution_rules"`
}

// Catalog is a concurrency-safe snapshot of the reference data.
// Readers receive copies; the snapshot only changes through AddItem and Replace.
type Catalog struct {
	mu      sync.RWMutex
	vendors []Vendor
	items   []Item
	ref     Reference
}

// New creates a catalog holding the given data.
func New(vendors []Vendor, items []Item, ref Reference) *Catalog {
	return &Catalog{vendors: vendors, items: items, ref: ref}
}

func (c *Catalog) Vendors() []Vendor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vendors)
}

func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *Catalog) Reference() Reference {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Reference{
		ItemGroups:        slices.Clone(c.ref.ItemGroups),
		UoMGroups:         slices.Clone(c.ref.UoMGroups),
		Accounts:          slices.Clone(c.ref.Accounts),
		DistributionRules: slices.Clone(c.ref.DistributionRules),
	}
}

// AddItem appends a newly created item so later lines can match it.
func (c *Catalog) AddItem(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

// Ready reports whether the item master and the chart of accounts are
// loaded. Item resolution must not run against an unloaded catalog: every
// line would take the creation path and duplicate existing ERP items.
func (c *Catalog) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items) > 0 && len(c.ref.Accounts) > 0
}

// Replace swaps the whole snapshot.
func (c *Catalog) Replace(vendors []Vendor, items []Item, ref Reference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vendors = vendors
	c.items = items
	c.ref = ref
}

// FindAccount returns the chart-of-accounts entry with the given code.
func (c *Catalog) FindAccount(code string) (erp.Account, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return erp.Account{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.ref.Accounts {
		if a.Code == code {
			return a, true
		}
	}
	return erp.Account{}, false
}

func fromERP(items []erp.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ItemName) == "" {
			continue
		}
		out = append(out, Item{
			Name:              it.ItemName,
			Code:              it.ItemCode,
			UoMGroupEntry:     it.UoMGroupEntry,
			InventoryUoMEntry: it.InventoryUoMEntry,
		})
	}
	return out
}
