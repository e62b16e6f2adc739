package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/counterline/poscore/pkg/enums"
)

// HeldOrder is a parked cart snapshot, priced at hold time. It can be resumed
// exactly once or discarded; both outcomes are recorded rather than deleting
// the row so the day's activity stays auditable.
type HeldOrder struct {
	ID      uuid.UUID             `gorm:"column:id;type:text;primaryKey" json:"id"`
	Version int                   `gorm:"column:version;not null;default:1" json:"version"`
	Status  enums.HeldOrderStatus `gorm:"column:status;not null;default:'held'" json:"status"`

	Label         string         `gorm:"column:label;not null" json:"label"`
	CustomerName  *string        `gorm:"column:customer_name" json:"customer_name,omitempty"`
	CustomerPhone *string        `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	Notes         *string        `gorm:"column:notes" json:"notes,omitempty"`
	Tags          pq.StringArray `gorm:"column:tags;type:text" json:"tags,omitempty"`

	// Snapshot is the full priced cart (items + totals + discount) at hold time.
	Snapshot json.RawMessage `gorm:"column:snapshot;not null" json:"snapshot"`

	HeldAt      time.Time  `gorm:"column:held_at;not null" json:"held_at"`
	ResumedAt   *time.Time `gorm:"column:resumed_at" json:"resumed_at,omitempty"`
	DiscardedAt *time.Time `gorm:"column:discarded_at" json:"discarded_at,omitempty"`
}

func (HeldOrder) TableName() string { return "held_orders" }
