package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogProduct is the locally cached slice of the remote catalog needed to
// price offline: id, barcode, name, unit price. Pulled as deltas during drain.
type CatalogProduct struct {
	ID             uuid.UUID `gorm:"column:id;type:text;primaryKey" json:"id"`
	Barcode        string    `gorm:"column:barcode;index" json:"barcode"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Active         bool      `gorm:"column:active;not null;default:true" json:"active"`

	RemoteUpdatedAt time.Time `gorm:"column:remote_updated_at;not null;index" json:"remote_updated_at"`
	PulledAt        time.Time `gorm:"column:pulled_at;not null" json:"pulled_at"`
}

func (CatalogProduct) TableName() string { return "catalog_products" }
