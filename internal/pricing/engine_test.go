package pricing

import (
	"testing"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

func newEngine(t *testing.T, cfg config.TaxConfig) Engine {
	t.Helper()
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func twoItemCart() []LineInput {
	return []LineInput{
		{ProductID: "prod-a", UnitPriceCents: 5000, Quantity: 2},
		{ProductID: "prod-b", UnitPriceCents: 3000, Quantity: 1},
	}
}

func TestQuote_NoDiscountNoTax(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	quote, err := eng.Quote(twoItemCart(), nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if quote.Totals.SubtotalCents != 13000 {
		t.Fatalf("subtotal = %d, want 13000", quote.Totals.SubtotalCents)
	}
	if quote.Totals.TotalCents != 13000 {
		t.Fatalf("total = %d, want 13000", quote.Totals.TotalCents)
	}
	if quote.Totals.ItemDiscountCents != 0 || quote.Totals.CodeDiscountCents != 0 || quote.Totals.TaxCents != 0 {
		t.Fatalf("unexpected non-zero components: %+v", quote.Totals)
	}
}

func TestQuote_PercentCodeWithMinPurchase(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	quote, err := eng.Quote(twoItemCart(), &CodeDiscount{
		Code:             "SAVE10",
		Type:             enums.DiscountTypePercent,
		Value:            10,
		MinPurchaseCents: 10000,
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if quote.Totals.CodeDiscountCents != 1300 {
		t.Fatalf("code discount = %d, want 1300", quote.Totals.CodeDiscountCents)
	}
	if quote.Totals.TotalCents != 11700 {
		t.Fatalf("total = %d, want 11700", quote.Totals.TotalCents)
	}
}

func TestQuote_MinPurchaseUnmet(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	_, err := eng.Quote(
		[]LineInput{{ProductID: "prod-b", UnitPriceCents: 3000, Quantity: 1}},
		&CodeDiscount{Code: "SAVE10", Type: enums.DiscountTypePercent, Value: 10, MinPurchaseCents: 10000},
	)
	if pkgerrors.ReasonOf(err) != pkgerrors.ReasonDiscountNotApplicable {
		t.Fatalf("expected DiscountNotApplicable, got %v", err)
	}
}

func TestQuote_LineDiscounts(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	quote, err := eng.Quote([]LineInput{
		{ProductID: "prod-a", UnitPriceCents: 5000, Quantity: 2, DiscountType: enums.DiscountTypePercent, DiscountValue: 10},
		{ProductID: "prod-b", UnitPriceCents: 3000, Quantity: 1, DiscountType: enums.DiscountTypeFixed, DiscountValue: 500},
	}, nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	// 10% of 10000 plus a flat 500.
	if quote.Totals.ItemDiscountCents != 1500 {
		t.Fatalf("item discounts = %d, want 1500", quote.Totals.ItemDiscountCents)
	}
	if quote.Totals.TotalCents != 11500 {
		t.Fatalf("total = %d, want 11500", quote.Totals.TotalCents)
	}
	if quote.Lines[0].NetCents != 9000 || quote.Lines[1].NetCents != 2500 {
		t.Fatalf("unexpected line nets: %+v", quote.Lines)
	}
}

func TestQuote_FixedDiscountClampedToLine(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	quote, err := eng.Quote([]LineInput{
		{ProductID: "prod-b", UnitPriceCents: 3000, Quantity: 1, DiscountType: enums.DiscountTypeFixed, DiscountValue: 9999},
	}, nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Lines[0].NetCents != 0 {
		t.Fatalf("line net = %d, want 0", quote.Lines[0].NetCents)
	}
	if quote.Totals.TotalCents != 0 {
		t.Fatalf("total = %d, want 0", quote.Totals.TotalCents)
	}
}

func TestQuote_FixedCodeClampedToSubtotal(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})
	quote, err := eng.Quote(
		[]LineInput{{ProductID: "prod-b", UnitPriceCents: 3000, Quantity: 1}},
		&CodeDiscount{Code: "BIG", Type: enums.DiscountTypeFixed, Value: 50000},
	)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Totals.CodeDiscountCents != 3000 || quote.Totals.TotalCents != 0 {
		t.Fatalf("unexpected totals: %+v", quote.Totals)
	}
}

func TestQuote_TaxOnDiscountedSubtotal(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{Enabled: true, RateBps: 800})
	quote, err := eng.Quote(twoItemCart(), &CodeDiscount{
		Code:  "SAVE10",
		Type:  enums.DiscountTypePercent,
		Value: 10,
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	// 8% of 11700.
	if quote.Totals.TaxCents != 936 {
		t.Fatalf("tax = %d, want 936", quote.Totals.TaxCents)
	}
	if quote.Totals.TotalCents != 12636 {
		t.Fatalf("total = %d, want 12636", quote.Totals.TotalCents)
	}
}

func TestQuote_TotalsIdentityHolds(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{Enabled: true, RateBps: 725})
	carts := [][]LineInput{
		twoItemCart(),
		{{ProductID: "p", UnitPriceCents: 1, Quantity: 1}},
		{
			{ProductID: "p1", UnitPriceCents: 999, Quantity: 3, DiscountType: enums.DiscountTypePercent, DiscountValue: 33},
			{ProductID: "p2", UnitPriceCents: 12345, Quantity: 7, DiscountType: enums.DiscountTypeFixed, DiscountValue: 1000},
		},
	}

	for _, items := range carts {
		quote, err := eng.Quote(items, &CodeDiscount{Code: "X", Type: enums.DiscountTypePercent, Value: 5})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		totals := quote.Totals
		sum := totals.SubtotalCents - totals.ItemDiscountCents - totals.CodeDiscountCents + totals.TaxCents
		if totals.TotalCents != sum {
			t.Fatalf("identity broken: total %d != %d", totals.TotalCents, sum)
		}
		for _, v := range []int64{totals.SubtotalCents, totals.ItemDiscountCents, totals.CodeDiscountCents, totals.TaxCents} {
			if v < 0 {
				t.Fatalf("negative component in %+v", totals)
			}
		}
	}
}

func TestQuote_Validation(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, config.TaxConfig{})

	cases := []struct {
		name  string
		items []LineInput
	}{
		{name: "zero quantity", items: []LineInput{{ProductID: "p", UnitPriceCents: 100, Quantity: 0}}},
		{name: "negative price", items: []LineInput{{ProductID: "p", UnitPriceCents: -1, Quantity: 1}}},
		{name: "percent over 100", items: []LineInput{{ProductID: "p", UnitPriceCents: 100, Quantity: 1, DiscountType: enums.DiscountTypePercent, DiscountValue: 101}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.Quote(tc.items, nil)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
