package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// PaymentIntent is the pending-payment record persisted before the terminal
// navigates away for a redirect flow. The correlation ID survives a process
// restart mid-redirect so the poller can pick the attempt back up.
type PaymentIntent struct {
	ID            uuid.UUID `gorm:"column:id;type:text;primaryKey" json:"id"`
	CorrelationID string    `gorm:"column:correlation_id;not null;uniqueIndex:ux_payment_intents_corr" json:"correlation_id"`

	Method        enums.PaymentMethod  `gorm:"column:method;not null" json:"method"`
	AmountCents   int64                `gorm:"column:amount_cents;not null" json:"amount_cents"`
	FeeCents      int64                `gorm:"column:fee_cents;not null;default:0" json:"fee_cents"`
	Currency      enums.Currency       `gorm:"column:currency;not null" json:"currency"`
	ProviderTxID  string               `gorm:"column:provider_tx_id;index" json:"provider_tx_id"`
	PaymentURL    string               `gorm:"column:payment_url" json:"payment_url"`
	Status        enums.ProviderStatus `gorm:"column:status;not null;default:'pending'" json:"status"`

	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }
