package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/counterline/poscore/pkg/config"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/types"
)

var errBaseURLRequired = errors.New("ledger base url is required")

// SaleLine is one line item of a posted sale.
type SaleLine struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	DiscountCents  int64  `json:"discountCents"`
}

// SaleRequest is the payload the remote ledger accepts for one sale.
type SaleRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	TerminalID     string          `json:"terminalId"`
	Currency       string          `json:"currency"`
	Items          []SaleLine      `json:"items"`
	Totals         types.Totals    `json:"totals"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
	SoldAt         time.Time       `json:"soldAt"`
}

// SaleResult is the ledger's acknowledgment. Duplicate idempotency keys
// return the original result, not an error.
type SaleResult struct {
	SaleID     string `json:"saleId"`
	SaleNumber string `json:"saleNumber"`
}

// ProductDelta is one catalog row changed since the pull cursor.
type ProductDelta struct {
	ID             string    `json:"id"`
	Barcode        string    `json:"barcode"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CustomerDelta is one credit profile changed since the pull cursor.
type CustomerDelta struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	CurrentBalanceCents int64     `json:"currentBalanceCents"`
	CreditLimitCents    int64     `json:"creditLimitCents"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Client talks to the remote ledger service. Posting is idempotency-keyed;
// everything else is read-only.
type Client struct {
	http       *resty.Client
	terminalID string
	logg       *logger.Logger
}

// NewClient builds the ledger client from configuration.
func NewClient(cfg config.LedgerConfig, terminalID string, logg *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errBaseURLRequired
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	if cfg.APIKey != "" {
		httpClient.SetAuthScheme("Bearer")
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: httpClient, terminalID: terminalID, logg: logg}, nil
}

// PostSale submits one sale. A 2xx with a body is an acknowledgment; the
// ledger treats a duplicate idempotency key as a no-op returning the original
// result. Anything else is a SyncError and the caller leaves the sale queued.
func (c *Client) PostSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	if req.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	req.TerminalID = c.terminalID

	var result SaleResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.IdempotencyKey).
		SetBody(req).
		SetResult(&result).
		Post("/v1/sales")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync, err, "posting sale to ledger")
	}
	if resp.IsError() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync,
			fmt.Errorf("ledger responded %s: %s", resp.Status(), resp.String()),
			"posting sale to ledger")
	}
	if result.SaleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSync, "ledger acknowledgment missing sale id")
	}

	c.logg.Info(c.logg.WithSaleID(ctx, result.SaleID), "sale acknowledged by ledger")
	return &result, nil
}

// PullProducts fetches catalog rows changed since the cursor, oldest first.
func (c *Client) PullProducts(ctx context.Context, since time.Time, limit int) ([]ProductDelta, error) {
	var deltas []ProductDelta
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("since", since.UTC().Format(time.RFC3339Nano)).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&deltas).
		Get("/v1/catalog/products")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync, err, "pulling product deltas")
	}
	if resp.IsError() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync,
			fmt.Errorf("ledger responded %s", resp.Status()), "pulling product deltas")
	}
	return deltas, nil
}

// PullCustomers fetches credit profiles changed since the cursor, oldest first.
func (c *Client) PullCustomers(ctx context.Context, since time.Time, limit int) ([]CustomerDelta, error) {
	var deltas []CustomerDelta
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("since", since.UTC().Format(time.RFC3339Nano)).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&deltas).
		Get("/v1/customers")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync, err, "pulling customer deltas")
	}
	if resp.IsError() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync,
			fmt.Errorf("ledger responded %s", resp.Status()), "pulling customer deltas")
	}
	return deltas, nil
}

// Probe checks reachability without side effects; used by the connectivity
// watcher to detect online/offline edges.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeSync, err, "probing ledger")
	}
	if resp.StatusCode() != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeSync, fmt.Sprintf("ledger probe returned %s", resp.Status()))
	}
	return nil
}
