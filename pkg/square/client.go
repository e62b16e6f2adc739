package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/counterline/poscore/pkg/config"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errInvalidSquareEnv = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired   = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client drives the contactless card reader through Square, with centralized
// auth, logging, idempotency, and error mapping. A client with no access token
// or reader device is valid but reports the reader as absent.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	deviceID    string
	logger      *logger.Logger
}

// NewClient initializes the reader wrapper. Credentials are optional: a
// terminal without a paired reader still boots, it just cannot take tap.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	c := &Client{
		environment: env,
		locationID:  strings.TrimSpace(cfg.LocationID),
		deviceID:    strings.TrimSpace(cfg.DeviceID),
		logger:      logg,
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken != "" {
		c.sdk = sqclient.NewClient(
			sqoption.WithBaseURL(baseURLs[env]),
			sqoption.WithToken(accessToken),
		)
	}

	if c.ReaderPresent() {
		logg.Info(ctx, "square reader client initialized")
	} else {
		logg.Warn(ctx, "square reader not configured; tap payments unavailable")
	}
	return c, nil
}

// ReaderPresent reports whether a contactless reader is configured and
// chargeable. Callers surface the negative as a method-unavailable failure.
func (c *Client) ReaderPresent() bool {
	if c == nil {
		return false
	}
	return c.sdk != nil && c.deviceID != "" && c.locationID != ""
}

// DeviceID returns the paired reader's identifier.
func (c *Client) DeviceID() string {
	if c == nil {
		return ""
	}
	return c.deviceID
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "pos"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// ChargeTap captures a single contactless payment using the token the reader
// emitted for the tap.
func (c *Client) ChargeTap(ctx context.Context, params TapChargeParams) (*TapCharge, error) {
	if !c.ReaderPresent() {
		return nil, pkgerrors.Payment(pkgerrors.ReasonMethodUnavailable, "no contactless reader paired with this terminal")
	}

	req := params.toSquareRequest(c.locationID, c.ensureIdempotencyKey("tap.charge", params.IdempotencyKey))
	c.log(ctx, "request", "charge_tap", map[string]any{
		"location_id":  c.locationID,
		"device_id":    c.deviceID,
		"amount":       params.AmountCents,
		"reference_id": params.ReferenceID,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "charge_tap", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "charge tap")
	}

	payment := resp.GetPayment()
	charge := &TapCharge{
		PaymentID:   stringValue(payment.GetID()),
		Status:      stringValue(payment.GetStatus()),
		ReceiptURL:  stringValue(payment.GetReceiptURL()),
		AmountCents: params.AmountCents,
	}
	c.log(ctx, "response", "charge_tap", map[string]any{
		"payment_id": charge.PaymentID,
		"status":     charge.Status,
	})

	if !charge.Settled() {
		return charge, pkgerrors.Payment(pkgerrors.ReasonMethodUnavailable,
			fmt.Sprintf("tap payment %s not settled (status %s)", charge.PaymentID, charge.Status))
	}
	return charge, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeConflict
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case sandboxEnv, "":
		return sandboxEnv, nil
	case productionEnv:
		return productionEnv, nil
	default:
		return "", errInvalidSquareEnv
	}
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
