package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

var (
	errInvalidFeePercent  = errors.New("provider fee percent is not a valid decimal")
	errNegativeFeePercent = errors.New("provider fee percent must not be negative")
)

// InitiateRequest opens a redirect payment with the provider.
type InitiateRequest struct {
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	SuccessURL  string `json:"successUrl"`
	CancelURL   string `json:"cancelUrl"`
}

// InitiateResult carries the provider transaction handle and the page the
// customer is sent to.
type InitiateResult struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Client talks to the redirect payment provider: initiate, then poll by
// transaction id until a terminal status.
type Client struct {
	http       *resty.Client
	feePercent decimal.Decimal
	successURL string
	cancelURL  string
	logg       *logger.Logger
}

// NewClient builds the provider client and validates the fee configuration.
// A missing base URL is not an error: the terminal boots without a mobile
// money provider and the method reports unavailable.
func NewClient(cfg config.ProviderConfig, logg *logger.Logger) (*Client, error) {
	feePercent, err := decimal.NewFromString(cfg.FeePercent)
	if err != nil {
		return nil, errInvalidFeePercent
	}
	if feePercent.IsNegative() {
		return nil, errNegativeFeePercent
	}

	if cfg.BaseURL == "" {
		return &Client{feePercent: feePercent, logg: logg}, nil
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

	return &Client{
		http:       httpClient,
		feePercent: feePercent,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logg:       logg,
	}, nil
}

// FeeCents computes the provider surcharge on a sale total. The percentage is
// decimal arithmetic rounded half-up back to integer minor units; sale totals
// themselves never leave integer math.
func (c *Client) FeeCents(amountCents int64) int64 {
	if c.feePercent.IsZero() {
		return 0
	}
	fee := decimal.NewFromInt(amountCents).
		Mul(c.feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return fee.IntPart()
}

// Configured reports whether a provider base URL was supplied.
func (c *Client) Configured() bool {
	return c.http != nil
}

// Initiate opens a payment and returns the redirect handle.
func (c *Client) Initiate(ctx context.Context, amountCents int64, currency, reference string) (*InitiateResult, error) {
	if !c.Configured() {
		return nil, pkgerrors.Payment(pkgerrors.ReasonMethodUnavailable, "no mobile money provider configured")
	}

	var result InitiateResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(InitiateRequest{
			AmountCents: amountCents,
			Currency:    currency,
			Reference:   reference,
			SuccessURL:  c.successURL,
			CancelURL:   c.cancelURL,
		}).
		SetResult(&result).
		Post("/v1/payments")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiating provider payment")
	}
	if resp.IsError() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("provider responded %s: %s", resp.Status(), resp.String()),
			"initiating provider payment")
	}
	if result.TransactionID == "" || result.PaymentURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider response missing transaction handle")
	}

	c.logg.Info(c.logg.WithField(ctx, "provider_tx_id", result.TransactionID), "provider payment initiated")
	return &result, nil
}

// GetStatus polls the provider for the transaction's settlement state.
func (c *Client) GetStatus(ctx context.Context, transactionID string) (enums.ProviderStatus, error) {
	if !c.Configured() {
		return "", pkgerrors.Payment(pkgerrors.ReasonMethodUnavailable, "no mobile money provider configured")
	}

	var result statusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/payments/" + transactionID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "polling provider status")
	}
	if resp.IsError() {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("provider responded %s", resp.Status()), "polling provider status")
	}
	status, err := enums.ParseProviderStatus(result.Status)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "provider_tx_id", transactionID), "provider returned unknown status "+result.Status)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unexpected provider status")
	}
	return status, nil
}
