package pricing

import (
	"fmt"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/types"
)

// LineInput is one cart line as the engine sees it: price and quantity plus an
// optional per-line discount.
type LineInput struct {
	ProductID      string
	UnitPriceCents int64
	Quantity       int64
	DiscountType   enums.DiscountType
	DiscountValue  int64
}

// CodeDiscount is the single cart-level discount. MinPurchaseCents of zero
// means no threshold.
type CodeDiscount struct {
	Code             string
	Type             enums.DiscountType
	Value            int64
	MinPurchaseCents int64
}

// LineQuote is the priced form of one input line.
type LineQuote struct {
	ProductID      string
	UnitPriceCents int64
	Quantity       int64
	GrossCents     int64
	DiscountCents  int64
	NetCents       int64
}

// Quote is a fully priced cart. Totals always satisfy
// total = subtotal - itemDiscounts - codeDiscount + tax.
type Quote struct {
	Lines  []LineQuote
	Totals types.Totals
}

// Engine prices a cart. It performs no I/O and holds no mutable state, so a
// single instance serves every recompute.
type Engine interface {
	Quote(items []LineInput, discount *CodeDiscount) (*Quote, error)
}

type engine struct {
	taxEnabled bool
	taxRateBps int64
}

// NewEngine builds a pricing engine from the terminal's tax rule.
func NewEngine(cfg config.TaxConfig) (Engine, error) {
	if cfg.RateBps < 0 {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	return &engine{
		taxEnabled: cfg.Enabled,
		taxRateBps: int64(cfg.RateBps),
	}, nil
}

// Quote prices the cart in integer minor units. The cart service calls this on
// every mutation; results are never cached across mutations.
func (e *engine) Quote(items []LineInput, discount *CodeDiscount) (*Quote, error) {
	lines := make([]LineQuote, 0, len(items))
	var subtotal, itemDiscounts int64

	for i, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: quantity must be at least 1", i))
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: unit price must not be negative", i))
		}

		gross := item.UnitPriceCents * item.Quantity
		lineDiscount, err := lineDiscountCents(item, gross, i)
		if err != nil {
			return nil, err
		}

		lines = append(lines, LineQuote{
			ProductID:      item.ProductID,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			GrossCents:     gross,
			DiscountCents:  lineDiscount,
			NetCents:       gross - lineDiscount,
		})
		subtotal += gross
		itemDiscounts += lineDiscount
	}

	discounted := subtotal - itemDiscounts
	codeDiscount, err := codeDiscountCents(discount, discounted)
	if err != nil {
		return nil, err
	}
	discounted -= codeDiscount

	var tax int64
	if e.taxEnabled && e.taxRateBps > 0 {
		tax = discounted * e.taxRateBps / 10000
	}

	return &Quote{
		Lines: lines,
		Totals: types.Totals{
			SubtotalCents:     subtotal,
			ItemDiscountCents: itemDiscounts,
			CodeDiscountCents: codeDiscount,
			TaxCents:          tax,
			TotalCents:        discounted + tax,
		},
	}, nil
}

// lineDiscountCents computes a per-line discount, clamped so the line never
// goes negative.
func lineDiscountCents(item LineInput, gross int64, index int) (int64, error) {
	if item.DiscountType == "" || item.DiscountValue == 0 {
		return 0, nil
	}
	if item.DiscountValue < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("line %d: discount value must not be negative", index))
	}

	var amount int64
	switch item.DiscountType {
	case enums.DiscountTypePercent:
		if item.DiscountValue > 100 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: percent discount exceeds 100", index))
		}
		amount = gross * item.DiscountValue / 100
	case enums.DiscountTypeFixed:
		amount = item.DiscountValue
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("line %d: unknown discount type %q", index, item.DiscountType))
	}

	if amount > gross {
		amount = gross
	}
	return amount, nil
}

// codeDiscountCents computes the cart-level discount against the
// post-item-discount subtotal, clamped to it.
func codeDiscountCents(discount *CodeDiscount, discountedSubtotal int64) (int64, error) {
	if discount == nil {
		return 0, nil
	}
	if discount.Value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "discount value must not be negative")
	}
	if discount.MinPurchaseCents > 0 && discountedSubtotal < discount.MinPurchaseCents {
		return 0, pkgerrors.Payment(pkgerrors.ReasonDiscountNotApplicable,
			fmt.Sprintf("discount %q requires a minimum purchase of %d", discount.Code, discount.MinPurchaseCents))
	}

	var amount int64
	switch discount.Type {
	case enums.DiscountTypePercent:
		if discount.Value > 100 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "percent discount exceeds 100")
		}
		amount = discountedSubtotal * discount.Value / 100
	case enums.DiscountTypeFixed:
		amount = discount.Value
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown discount type %q", discount.Type))
	}

	if amount > discountedSubtotal {
		amount = discountedSubtotal
	}
	return amount, nil
}
