package types

// Totals is the fully-priced breakdown of a cart in integer minor units.
// total = subtotal - item discounts - code discount + tax, and every
// component stays non-negative.
type Totals struct {
	SubtotalCents     int64 `json:"subtotal_cents"`
	ItemDiscountCents int64 `json:"item_discount_cents"`
	CodeDiscountCents int64 `json:"code_discount_cents"`
	TaxCents          int64 `json:"tax_cents"`
	TotalCents        int64 `json:"total_cents"`
}

// IsZero reports whether no amount has been computed.
func (t Totals) IsZero() bool {
	return t == Totals{}
}
