package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// CashSession records the drawer float for one business day. Expected and
// variance are computed once at close and persisted; a closed session is
// immutable.
type CashSession struct {
	ID      uuid.UUID               `gorm:"column:id;type:text;primaryKey" json:"id"`
	Version int                     `gorm:"column:version;not null;default:1" json:"version"`
	Status  enums.CashSessionStatus `gorm:"column:status;not null;default:'open'" json:"status"`

	// BusinessDate is the terminal-local day (YYYY-MM-DD); one session per day.
	BusinessDate string `gorm:"column:business_date;not null;uniqueIndex:ux_cash_sessions_day" json:"business_date"`

	OpeningBalanceCents int64 `gorm:"column:opening_balance_cents;not null" json:"opening_balance_cents"`
	CashSalesCents      int64 `gorm:"column:cash_sales_cents;not null;default:0" json:"cash_sales_cents"`

	CountedCents  *int64 `gorm:"column:counted_cents" json:"counted_cents,omitempty"`
	ExpectedCents *int64 `gorm:"column:expected_cents" json:"expected_cents,omitempty"`
	VarianceCents *int64 `gorm:"column:variance_cents" json:"variance_cents,omitempty"`

	Movements []CashMovement `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"movements"`

	OpenedAt time.Time  `gorm:"column:opened_at;not null" json:"opened_at"`
	ClosedAt *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`
}

func (CashSession) TableName() string { return "cash_sessions" }
