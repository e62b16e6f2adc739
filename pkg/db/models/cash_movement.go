package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// CashMovement is an immutable manual drawer entry. Corrections are made with
// inverse entries, never by editing a past movement.
type CashMovement struct {
	ID        uuid.UUID           `gorm:"column:id;type:text;primaryKey" json:"id"`
	SessionID uuid.UUID           `gorm:"column:session_id;type:text;not null;index" json:"session_id"`
	Direction enums.CashDirection `gorm:"column:direction;not null" json:"direction"`

	AmountCents int64  `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Reason      string `gorm:"column:reason;not null" json:"reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CashMovement) TableName() string { return "cash_movements" }
