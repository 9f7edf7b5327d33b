// Package pricing holds the pure money rules shared by quotations and orders:
// the VAT split of tax-inclusive prices, discount rule selection and the
// aggregation of quote totals.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the uniform VAT rate embedded in every catalog price.
const TaxRate = 0.19

var (
	taxRate    = decimal.NewFromFloat(TaxRate)
	taxDivisor = decimal.NewFromInt(1).Add(taxRate)
)

// Split is the tax-exclusive base and the tax portion of one unit.
type Split struct {
	Base float64 `json:"precio_base"`
	Tax  float64 `json:"impuesto"`
}

// Round2 rounds v to two decimals, halves away from zero. Going through the
// shortest decimal representation of v absorbs binary float error, so 1.005
// rounds to 1.01.
func Round2(v float64) float64 {
	return round2(decimal.NewFromFloat(v)).InexactFloat64()
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SplitTax reconciles a tax-inclusive unit price into base and tax.
// Authoritative pre-split values win when present; missing parts are derived
// from price with base = round2(price / 1.19) and tax = round2(price - base).
func SplitTax(price float64, base, tax *float64) Split {
	p := decimal.NewFromFloat(price)
	var b decimal.Decimal
	if base != nil {
		b = decimal.NewFromFloat(*base)
	} else {
		b = round2(p.Div(taxDivisor))
	}
	var t decimal.Decimal
	if tax != nil {
		t = decimal.NewFromFloat(*tax)
	} else {
		t = round2(p.Sub(b))
	}
	return Split{Base: b.InexactFloat64(), Tax: t.InexactFloat64()}
}

// LineSubtotal returns price * quantity rounded to cents.
func LineSubtotal(price float64, quantity int) float64 {
	return round2(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))).InexactFloat64()
}
