// Package erp is the gateway to the ERP Service Layer: session login,
// paginated reference reads, and item and purchase-invoice creation.
package erp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/JaimeStill/tally/pkg/throttle"
)

// System is the ERP gateway contract.
type System interface {
	// Login establishes a new session.
	Login(ctx context.Context) error

	Items(ctx context.Context) ([]Item, error)
	ItemGroups(ctx context.Context) ([]ItemGroup, error)
	UoMGroups(ctx context.Context) ([]UoMGroup, error)
	Accounts(ctx context.Context) ([]Account, error)
	DistributionRules(ctx context.Context) ([]DistributionRule, error)

	// CreateItem creates an item master record. Any status other than
	// 201 returns an error wrapping ErrNotCreated.
	CreateItem(ctx context.Context, item NewItem) (*CreatedItem, error)
	// PostInvoice creates a purchase invoice. Any status other than
	// 201 returns an error wrapping ErrNotCreated.
	PostInvoice(ctx context.Context, invoice Invoice) (*PostedInvoice, error)
}

const (
	itemsPath             = "Items/?$select=ItemCode,ItemName,UoMGroupEntry,InventoryUoMEntry"
	itemGroupsPath        = "ItemGroups?$select=GroupName,Number"
	uomGroupsPath         = "UnitOfMeasurementGroups?$select=AbsEntry,Code,BaseUoM&$orderby=AbsEntry"
	accountsPath          = "ChartOfAccounts?$select=Code,Name&$orderby=Name"
	distributionRulesPath = "DistributionRules?$select=FactorCode,FactorDescription&$orderby=FactorCode"
)

type client struct {
	base     *url.URL
	http     *http.Client
	creds    credentials
	policy   *throttle.Policy
	logger   *slog.Logger
	requests *prometheus.CounterVec
	reg      prometheus.Registerer
	loginMu  sync.Mutex
}

// Option configures the gateway.
type Option func(*client)

// WithHTTPClient replaces the HTTP client. A cookie jar is attached when the
// client has none, since the session is cookie based.
func WithHTTPClient(h *http.Client) Option {
	return func(c *client) { c.http = h }
}

// WithRegisterer registers the request counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *client) { c.reg = reg }
}

// New creates the gateway and logs in. A login failure returns an error
// wrapping ErrLoginFailed; the pipeline cannot run without a session.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (System, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}

	c := &client{
		base: base,
		creds: credentials{
			CompanyDB: cfg.CompanyDB,
			UserName:  cfg.Username,
			Password:  cfg.Password,
		},
		policy: throttle.New(&cfg.Throttle),
		logger: logger.With("system", "erp"),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_erp_requests_total",
				Help: "ERP Service Layer requests by operation and response status.",
			},
			[]string{"operation", "status"},
		),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(transport(cfg))}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}

	if c.reg != nil {
		if err := c.reg.Register(c.requests); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register erp metrics: %w", err)
			}
			c.requests = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}

	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func transport(cfg *Config) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}

func (c *client) Login(ctx context.Context) error {
	_, err := throttle.Do(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		err := c.login(ctx)
		var se *StatusError
		if errors.As(err, &se) && !retryableRead(se.Status) {
			return struct{}{}, throttle.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		c.logger.Error("login failed", "company_db", c.creds.CompanyDB, "error", err)
		return err
	}

	c.logger.Info("logged in", "company_db", c.creds.CompanyDB)
	return nil
}

// login performs a single login attempt.
func (c *client) login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	body, err := json.Marshal(c.creds)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	resp, err := c.send(ctx, http.MethodPost, "Login", body)
	if err != nil {
		c.count("login", "error")
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()
	c.count("login", strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return statusError("login", resp, ErrLoginFailed)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *client) Items(ctx context.Context) ([]Item, error) {
	return fetchAll[Item](ctx, c, "items", itemsPath)
}

func (c *client) ItemGroups(ctx context.Context) ([]ItemGroup, error) {
	return fetchAll[ItemGroup](ctx, c, "item_groups", itemGroupsPath)
}

func (c *client) UoMGroups(ctx context.Context) ([]UoMGroup, error) {
	return fetchAll[UoMGroup](ctx, c, "uom_groups", uomGroupsPath)
}

func (c *client) Accounts(ctx context.Context) ([]Account, error) {
	return fetchAll[Account](ctx, c, "accounts", accountsPath)
}

func (c *client) DistributionRules(ctx context.Context) ([]DistributionRule, error) {
	return fetchAll[DistributionRule](ctx, c, "distribution_rules", distributionRulesPath)
}

func (c *client) CreateItem(ctx context.Context, item NewItem) (*CreatedItem, error) {
	created, err := create[CreatedItem](ctx, c, "create_item", "Items", item)
	if err != nil {
		return nil, err
	}
	c.logger.Info("item created", "item_code", created.ItemCode, "item_name", item.ItemName)
	return created, nil
}

func (c *client) PostInvoice(ctx context.Context, invoice Invoice) (*PostedInvoice, error) {
	posted, err := create[PostedInvoice](ctx, c, "post_invoice", "PurchaseInvoices", invoice)
	if err != nil {
		return nil, err
	}
	c.logger.Info("purchase invoice posted", "doc_entry", posted.DocEntry, "card_code", invoice.CardCode)
	return posted, nil
}

// fetchAll follows continuation links from ref until none remain and
// returns the rows of every page in order.
func fetchAll[T any](ctx context.Context, c *client, op, ref string) ([]T, error) {
	var (
		rows  []T
		seen  = make(map[string]bool)
		start = time.Now()
	)

	for ref != "" {
		if seen[ref] {
			return nil, fmt.Errorf("%w: %s revisits %s", ErrPaginationLoop, op, ref)
		}
		seen[ref] = true

		p, err := throttle.Do(ctx, c.policy, func(ctx context.Context) (page[T], error) {
			return fetchPage[T](ctx, c, op, ref)
		})
		if err != nil {
			c.logger.Error("catalog read failed", "operation", op, "error", err)
			return nil, err
		}

		rows = append(rows, p.Value...)
		ref = p.next()
	}

	c.logger.Info(
		"catalog read",
		"operation", op,
		"rows", len(rows),
		"pages", len(seen),
		"duration", time.Since(start),
	)
	return rows, nil
}

func fetchPage[T any](ctx context.Context, c *client, op, ref string) (page[T], error) {
	var p page[T]

	resp, err := c.call(ctx, op, http.MethodGet, ref, nil)
	if err != nil {
		return p, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError(op, resp, ErrRequest)
		if retryableRead(resp.StatusCode) {
			return p, retryAfter(err, resp)
		}
		return p, throttle.Permanent(err)
	}

	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, throttle.Permanent(fmt.Errorf("%w: decode %s page: %v", ErrRequest, op, err))
	}
	return p, nil
}

// create performs a single-shot POST. Only throttling responses are retried;
// a transport failure is not, since the record may have been created.
func create[T any](ctx context.Context, c *client, op, ref string, payload any) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}

	result, err := throttle.Do(ctx, c.policy, func(ctx context.Context) (*T, error) {
		resp, err := c.call(ctx, op, http.MethodPost, ref, body)
		if err != nil {
			return nil, throttle.Permanent(fmt.Errorf("%w: %s: %v", ErrNotCreated, op, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			err := statusError(op, resp, ErrNotCreated)
			if retryableWrite(resp.StatusCode) {
				return nil, retryAfter(err, resp)
			}
			return nil, throttle.Permanent(err)
		}

		var out T
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, throttle.Permanent(fmt.Errorf("decode %s response: %w", op, err))
		}
		return &out, nil
	})
	if err != nil {
		c.logger.Error("erp write failed", "operation", op, "error", err)
		return nil, err
	}
	return result, nil
}

// call sends an authenticated request and logs in again once on 401.
func (c *client) call(ctx context.Context, op, method, ref string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, ref, body)
	if err != nil {
		c.count(op, "error")
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.count(op, strconv.Itoa(resp.StatusCode))

		c.logger.Warn("session rejected, logging in again", "operation", op)
		if err := c.login(ctx); err != nil {
			return nil, throttle.Permanent(err)
		}

		resp, err = c.send(ctx, method, ref, body)
		if err != nil {
			c.count(op, "error")
			return nil, err
		}
	}

	c.count(op, strconv.Itoa(resp.StatusCode))
	return resp, nil
}

func (c *client) send(ctx context.Context, method, ref string, body []byte) (*http.Response, error) {
	target, err := c.base.Parse(ref)
	if err != nil {
		return nil, throttle.Permanent(fmt.Errorf("resolve %s: %w", ref, err))
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, throttle.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

func (c *client) count(op, status string) {
	c.requests.WithLabelValues(op, status).Inc()
}

func retryableRead(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func retryableWrite(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func retryAfter(err error, resp *http.Response) error {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, perr := strconv.Atoi(v); perr == nil && seconds > 0 {
			return throttle.RetryAfter(err, time.Duration(seconds)*time.Second)
		}
	}
	return err
}
