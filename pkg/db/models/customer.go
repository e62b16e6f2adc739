package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the locally cached credit profile used by the store-credit
// payment method. Balance and limit come from the remote read API; the
// terminal never mutates them directly.
type Customer struct {
	ID    uuid.UUID `gorm:"column:id;type:text;primaryKey" json:"id"`
	Name  string    `gorm:"column:name;not null" json:"name"`
	Phone string    `gorm:"column:phone;index" json:"phone"`

	CurrentBalanceCents int64 `gorm:"column:current_balance_cents;not null;default:0" json:"current_balance_cents"`
	CreditLimitCents    int64 `gorm:"column:credit_limit_cents;not null;default:0" json:"credit_limit_cents"`

	RemoteUpdatedAt time.Time `gorm:"column:remote_updated_at;not null;index" json:"remote_updated_at"`
	PulledAt        time.Time `gorm:"column:pulled_at;not null" json:"pulled_at"`
}

func (Customer) TableName() string { return "customers" }
