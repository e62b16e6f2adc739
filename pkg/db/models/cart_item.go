package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/enums"
)

// CartItem is one line of the live cart. Quantity and discount are clamped by
// the pricing engine so a line never prices negative.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:text;primaryKey" json:"id"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:text;not null;index" json:"cart_id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:text;not null" json:"product_id"`

	Name           string `gorm:"column:name;not null" json:"name"`
	UnitPriceCents int64  `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Quantity       int    `gorm:"column:quantity;not null" json:"quantity"`

	LineDiscountType  *enums.DiscountType `gorm:"column:line_discount_type" json:"line_discount_type,omitempty"`
	LineDiscountValue int64               `gorm:"column:line_discount_value;not null;default:0" json:"line_discount_value"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CartItem) TableName() string { return "cart_items" }
