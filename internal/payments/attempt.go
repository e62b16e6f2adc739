package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// MethodContext is the method-specific payload of an attempt. Exactly one
// concrete type exists per payment method, so the orchestrator can match
// exhaustively and unknown-method states cannot arise.
type MethodContext interface {
	isMethodContext()
}

// CashContext resolves synchronously at the drawer.
type CashContext struct {
	ReceivedCents int64 `json:"received_cents"`
	ChangeCents   int64 `json:"change_cents"`
}

// RedirectContext is the mobile-money flow: a provider fee on top of the sale
// total, a correlation id persisted before navigating away, then polling.
type RedirectContext struct {
	CorrelationID string `json:"correlation_id"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	FeeCents      int64  `json:"fee_cents"`
	ChargedCents  int64  `json:"charged_cents"`
}

// QRContext is the scan-verify flow: a single-use request bound to amount,
// currency, and reference, completed only by an exactly matching callback.
type QRContext struct {
	Reference string `json:"reference"`
	TokenID   string `json:"token_id,omitempty"`
}

// TapContext records the contactless capture delegated to the reader.
type TapContext struct {
	PaymentID  string `json:"payment_id"`
	ReceiptURL string `json:"receipt_url,omitempty"`
}

// CreditContext ties the sale to a ledger-credit customer.
type CreditContext struct {
	CustomerID uuid.UUID `json:"customer_id"`
}

func (CashContext) isMethodContext()     {}
func (RedirectContext) isMethodContext() {}
func (QRContext) isMethodContext()       {}
func (TapContext) isMethodContext()      {}
func (CreditContext) isMethodContext()   {}

// Attempt is the ephemeral per-sale payment state machine. It lives only in
// memory; a terminal outcome is read by the finalizer and then destroyed.
type Attempt struct {
	ID          uuid.UUID            `json:"id"`
	Method      enums.PaymentMethod  `json:"method"`
	Status      enums.AttemptStatus  `json:"status"`
	AmountCents int64                `json:"amount_cents"`
	Currency    enums.Currency       `json:"currency"`
	Context     MethodContext        `json:"context,omitempty"`
	FailureNote string               `json:"failure_note,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
}

// Succeeded reports whether the attempt reached its one success state.
func (a *Attempt) Succeeded() bool {
	return a != nil && a.Status == enums.AttemptStatusSucceeded
}

// PaymentDetails renders the method context for the ledger record.
func (a *Attempt) PaymentDetails() json.RawMessage {
	if a == nil || a.Context == nil {
		return nil
	}
	raw, err := json.Marshal(a.Context)
	if err != nil {
		return nil
	}
	return raw
}

// clone returns a copy so callers cannot mutate orchestrator state.
func (a *Attempt) clone() *Attempt {
	if a == nil {
		return nil
	}
	copied := *a
	return &copied
}
