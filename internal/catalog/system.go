package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/storage"
)

// Source is the subset of the ERP gateway that supplies reference data.
type Source interface {
	Items(ctx context.Context) ([]erp.Item, error)
	ItemGroups(ctx context.Context) ([]erp.ItemGroup, error)
	UoMGroups(ctx context.Context) ([]erp.UoMGroup, error)
	Accounts(ctx context.Context) ([]erp.Account, error)
	DistributionRules(ctx context.Context) ([]erp.DistributionRule, error)
}

// System owns the live catalog and reloads it on demand.
type System interface {
	Handler() *Handler

	// Catalog returns the live catalog shared with the pipeline.
	Catalog() *Catalog

	// Start tracks catalog readiness with the lifecycle coordinator. The
	// service is not ready until a refresh has loaded the catalog.
	Start(lc *lifecycle.Coordinator)

	// Refresh reloads every table from the ERP and the vendor list, swaps the
	// live snapshot, and archives it to storage. When the ERP reads fail and a
	// snapshot exists in storage, the catalog is restored from it and the
	// summary reports Restored.
	Refresh(ctx context.Context) (*Summary, error)
}

// Summary describes a completed refresh.
type Summary struct {
	RunID             uuid.UUID `json:"run_id"`
	Vendors           int       `json:"vendors"`
	Items             int       `json:"items"`
	ItemGroups        int       `json:"item_groups"`
	UoMGroups         int       `json:"uom_groups"`
	Accounts          int       `json:"accounts"`
	DistributionRules int       `json:"distribution_rules"`
	Snapshot          string    `json:"snapshot,omitempty"`
	Restored          bool      `json:"restored,omitempty"`
	LoadedAt          time.Time `json:"loaded_at"`
}

type service struct {
	cfg     *Config
	source  Source
	store   storage.System
	catalog *Catalog
	logger  *slog.Logger
}

// NewSystem creates a catalog system with an empty catalog. Store may be nil,
// which disables snapshots.
func NewSystem(cfg *Config, source Source, store storage.System, logger *slog.Logger) System {
	return &service{
		cfg:     cfg,
		source:  source,
		store:   store,
		catalog: New(nil, nil, Reference{}),
		logger:  logger.With("system", "catalog"),
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *service) Catalog() *Catalog {
	return s.catalog
}

func (s *service) Start(lc *lifecycle.Coordinator) {
	lc.Track("catalog", s.catalog)
}

func (s *service) Refresh(ctx context.Context) (*Summary, error) {
	vendors := s.loadVendors()

	items, ref, err := s.load(ctx)
	if err != nil {
		restored, rerr := s.restore(ctx, vendors)
		if rerr != nil {
			return nil, err
		}
		s.logger.Warn("erp catalog unavailable, restored latest snapshot", "error", err)
		return restored, nil
	}

	s.catalog.Replace(vendors, items, ref)

	summary := newSummary(vendors, items, ref)
	if key, err := s.snapshot(ctx, summary.RunID, items, ref); err != nil {
		s.logger.Error("catalog snapshot failed", "run_id", summary.RunID, "error", err)
	} else {
		summary.Snapshot = key
	}

	s.logger.Info(
		"catalog refreshed",
		"run_id", summary.RunID,
		"vendors", summary.Vendors,
		"items", summary.Items,
		"accounts", summary.Accounts,
	)
	return summary, nil
}

// loadVendors reads the vendor list. A missing or unreadable file disables
// vendor matching rather than failing the refresh.
func (s *service) loadVendors() []Vendor {
	vendors, err := readVendorFile(s.cfg.VendorsFile)
	if err != nil {
		s.logger.Error("vendor list unavailable, vendor matching disabled", "path", s.cfg.VendorsFile, "error", err)
		return nil
	}
	return vendors
}

func (s *service) load(ctx context.Context) ([]Item, Reference, error) {
	var (
		items []erp.Item
		ref   Reference
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.source.Items(gctx)
		return wrapLoad("items", err)
	})
	g.Go(func() (err error) {
		ref.ItemGroups, err = s.source.ItemGroups(gctx)
		return wrapLoad("item groups", err)
	})
	g.Go(func() (err error) {
		ref.UoMGroups, err = s.source.UoMGroups(gctx)
		return wrapLoad("uom groups", err)
	})
	g.Go(func() (err error) {
		ref.Accounts, err = s.source.Accounts(gctx)
		return wrapLoad("accounts", err)
	})
	g.Go(func() (err error) {
		ref.DistributionRules, err = s.source.DistributionRules(gctx)
		return wrapLoad("distribution rules", err)
	})

	if err := g.Wait(); err != nil {
		return nil, Reference{}, err
	}
	return fromERP(items), ref, nil
}

func wrapLoad(table string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, table, err)
}

const (
	itemsSnapshot     = "items.json"
	referenceSnapshot = "reference.json"
	latestDir         = "latest"
)

// snapshot writes the tables under <prefix>/<run>/ and <prefix>/latest/ and
// returns the run directory.
func (s *service) snapshot(ctx context.Context, runID uuid.UUID, items []Item, ref Reference) (string, error) {
	if s.store == nil || !s.store.Ready() {
		return "", errors.New("storage not ready")
	}

	dir := path.Join(s.cfg.SnapshotPrefix, runID.String())
	for _, d := range []string{dir, path.Join(s.cfg.SnapshotPrefix, latestDir)} {
		if err := storage.PutJSON(ctx, s.store, path.Join(d, itemsSnapshot), items); err != nil {
			return "", err
		}
		if err := storage.PutJSON(ctx, s.store, path.Join(d, referenceSnapshot), ref); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func (s *service) restore(ctx context.Context, vendors []Vendor) (*Summary, error) {
	if s.store == nil || !s.store.Ready() {
		return nil, errors.New("storage not ready")
	}

	dir := path.Join(s.cfg.SnapshotPrefix, latestDir)
	items, err := storage.GetJSON[[]Item](ctx, s.store, path.Join(dir, itemsSnapshot))
	if err != nil {
		return nil, err
	}
	ref, err := storage.GetJSON[Reference](ctx, s.store, path.Join(dir, referenceSnapshot))
	if err != nil {
		return nil, err
	}

	s.catalog.Replace(vendors, items, ref)

	summary := newSummary(vendors, items, ref)
	summary.Snapshot = dir
	summary.Restored = true
	return summary, nil
}

func newSummary(vendors []Vendor, items []Item, ref Reference) *Summary {
	return &Summary{
		RunID:             uuid.New(),
		Vendors:           len(vendors),
		Items:             len(items),
		ItemGroups:        len(ref.ItemGroups),
		UoMGroups:         len(ref.UoMGroups),
		Accounts:          len(ref.Accounts),
		DistributionRules: len(ref.DistributionRules),
		LoadedAt:          time.Now().UTC(),
	}
}
