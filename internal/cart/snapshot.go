package cart

import (
	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	"github.com/counterline/poscore/pkg/types"
)

// Snapshot is a priced, self-contained copy of a cart, stored verbatim with a
// held order and replayed on resume.
type Snapshot struct {
	Currency enums.Currency `json:"currency"`
	Items    []SnapshotItem `json:"items"`

	DiscountCode     *string             `json:"discount_code,omitempty"`
	DiscountType     *enums.DiscountType `json:"discount_type,omitempty"`
	DiscountValue    int64               `json:"discount_value,omitempty"`
	MinPurchaseCents int64               `json:"min_purchase_cents,omitempty"`

	Totals types.Totals `json:"totals"`
}

// SnapshotItem is one frozen cart line.
type SnapshotItem struct {
	ProductID         uuid.UUID           `json:"product_id"`
	Name              string              `json:"name"`
	UnitPriceCents    int64               `json:"unit_price_cents"`
	Quantity          int                 `json:"quantity"`
	LineDiscountType  *enums.DiscountType `json:"line_discount_type,omitempty"`
	LineDiscountValue int64               `json:"line_discount_value,omitempty"`
}

// SnapshotOf freezes the record, pricing included.
func SnapshotOf(record *models.CartRecord) Snapshot {
	items := make([]SnapshotItem, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, SnapshotItem{
			ProductID:         item.ProductID,
			Name:              item.Name,
			UnitPriceCents:    item.UnitPriceCents,
			Quantity:          item.Quantity,
			LineDiscountType:  item.LineDiscountType,
			LineDiscountValue: item.LineDiscountValue,
		})
	}
	return Snapshot{
		Currency:         record.Currency,
		Items:            items,
		DiscountCode:     record.DiscountCode,
		DiscountType:     record.DiscountType,
		DiscountValue:    record.DiscountValue,
		MinPurchaseCents: record.MinPurchaseCents,
		Totals: types.Totals{
			SubtotalCents:     record.SubtotalCents,
			ItemDiscountCents: record.ItemDiscountCents,
			CodeDiscountCents: record.CodeDiscountCents,
			TaxCents:          record.TaxCents,
			TotalCents:        record.TotalCents,
		},
	}
}

// IsEmpty reports whether the snapshot carries no sellable lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}
