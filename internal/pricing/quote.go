package pricing

import "github.com/shopspring/decimal"

// MaxLineQuantity caps the units of one requested line.
const MaxLineQuantity = 100000

// PricedLine is a line whose unit price and split are already resolved.
type PricedLine struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
	Split     Split
}

// Totals aggregates a quote.
type Totals struct {
	PreDiscountBase float64
	PreDiscountTax  float64
	Gross           float64
	Rate            float64
	Base            float64
	Tax             float64
	Discount        float64
	Total           float64
}

// ComputeTotals accumulates base and tax per unit times quantity and applies
// rate to the tax-exclusive subtotal. With a discount the tax is recomputed
// on the discounted base; without one the accumulated values are kept.
func ComputeTotals(lines []PricedLine, rate float64) Totals {
	var base, tax, gross decimal.Decimal
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		base = base.Add(decimal.NewFromFloat(l.Split.Base).Mul(qty))
		tax = tax.Add(decimal.NewFromFloat(l.Split.Tax).Mul(qty))
		gross = gross.Add(decimal.NewFromFloat(l.UnitPrice).Mul(qty))
	}

	t := Totals{
		PreDiscountBase: round2(base).InexactFloat64(),
		PreDiscountTax:  round2(tax).InexactFloat64(),
		Gross:           round2(gross).InexactFloat64(),
	}
	if rate <= 0 {
		t.Base = t.PreDiscountBase
		t.Tax = t.PreDiscountTax
		t.Total = round2(base.Add(tax)).InexactFloat64()
		return t
	}

	r := decimal.NewFromFloat(rate)
	discountedBase := round2(base.Mul(decimal.NewFromInt(1).Sub(r)))
	discountedTax := round2(discountedBase.Mul(taxRate))
	final := discountedBase.Add(discountedTax)

	t.Rate = rate
	t.Base = discountedBase.InexactFloat64()
	t.Tax = discountedTax.InexactFloat64()
	t.Total = final.InexactFloat64()
	t.Discount = round2(base.Add(tax).Sub(final)).InexactFloat64()
	return t
}
