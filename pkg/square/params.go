package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// TapChargeParams encapsulates a single contactless capture. SourceID is the
// one-shot token the reader emits when the customer taps.
type TapChargeParams struct {
	AmountCents    int64
	Currency       string
	SourceID       string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p TapChargeParams) toSquareRequest(locationID, idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(locationID),
		SourceID:       p.SourceID,
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

// TapCharge is the outcome of a contactless capture.
type TapCharge struct {
	PaymentID   string
	Status      string
	ReceiptURL  string
	AmountCents int64
}

// Settled reports whether Square captured the funds.
func (t *TapCharge) Settled() bool {
	if t == nil {
		return false
	}
	switch t.Status {
	case "COMPLETED", "APPROVED":
		return true
	default:
		return false
	}
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
