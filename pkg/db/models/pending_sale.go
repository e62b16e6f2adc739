package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// PendingSale is a committed sale awaiting remote acknowledgment. Seq is a
// monotonically increasing local sequence so drains replay sales in the exact
// order they were sold. The row leaves the pending queue only after the
// ledger acks the idempotency key; timeouts and 5xx leave it queued for the
// next pass, and acked rows stay behind as local sale history.
type PendingSale struct {
	Seq            int64     `gorm:"column:seq;primaryKey;autoIncrement" json:"seq"`
	ID             uuid.UUID `gorm:"column:id;type:text;not null;uniqueIndex" json:"id"`
	IdempotencyKey string    `gorm:"column:idempotency_key;not null;uniqueIndex:ux_pending_sales_key" json:"idempotency_key"`

	Method         enums.PaymentMethod `gorm:"column:method;not null" json:"method"`
	Currency       enums.Currency      `gorm:"column:currency;not null" json:"currency"`
	Items          json.RawMessage     `gorm:"column:items;not null" json:"items"`
	Totals         json.RawMessage     `gorm:"column:totals;not null" json:"totals"`
	PaymentDetails json.RawMessage     `gorm:"column:payment_details" json:"payment_details,omitempty"`

	SyncStatus   enums.SyncStatus `gorm:"column:sync_status;not null;default:'pending'" json:"sync_status"`
	AttemptCount int              `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError    *string          `gorm:"column:last_error" json:"last_error,omitempty"`

	RemoteSaleID     *string `gorm:"column:remote_sale_id" json:"remote_sale_id,omitempty"`
	RemoteSaleNumber *string `gorm:"column:remote_sale_number" json:"remote_sale_number,omitempty"`

	CommittedAt time.Time  `gorm:"column:committed_at;not null" json:"committed_at"`
	SyncedAt    *time.Time `gorm:"column:synced_at" json:"synced_at,omitempty"`
}

func (PendingSale) TableName() string { return "pending_sales" }
