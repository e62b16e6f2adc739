package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// CartRecord is the single live cart on the terminal. Exactly one row carries
// status=active at a time; holding an order swaps the snapshot out and clears
// this record. Version guards concurrent read/modify/write cycles.
type CartRecord struct {
	ID      uuid.UUID        `gorm:"column:id;type:text;primaryKey" json:"id"`
	Version int              `gorm:"column:version;not null;default:1" json:"version"`
	Status  enums.CartStatus `gorm:"column:status;not null;default:'active'" json:"status"`

	DiscountCode     *string             `gorm:"column:discount_code" json:"discount_code,omitempty"`
	DiscountType     *enums.DiscountType `gorm:"column:discount_type" json:"discount_type,omitempty"`
	DiscountValue    int64               `gorm:"column:discount_value;not null;default:0" json:"discount_value"`
	MinPurchaseCents int64               `gorm:"column:min_purchase_cents;not null;default:0" json:"min_purchase_cents"`

	Currency          enums.Currency `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	SubtotalCents     int64          `gorm:"column:subtotal_cents;not null;default:0" json:"subtotal_cents"`
	ItemDiscountCents int64          `gorm:"column:item_discount_cents;not null;default:0" json:"item_discount_cents"`
	CodeDiscountCents int64          `gorm:"column:code_discount_cents;not null;default:0" json:"code_discount_cents"`
	TaxCents          int64          `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	TotalCents        int64          `gorm:"column:total_cents;not null;default:0" json:"total_cents"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CartRecord) TableName() string { return "cart_records" }
