package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreexpress/ferreexpress/internal/pricing"
)

func TestSeedProductsMixStoredAndDerivedSplits(t *testing.T) {
	derived := 0
	for _, p := range products {
		base, tax := p.split(p.base), p.split(p.tax)
		if base == nil {
			require.Nil(t, tax, p.name)
			derived++
			continue
		}
		require.NotNil(t, tax, p.name)
		assert.Equal(t, p.price, *base+*tax, p.name)
	}
	assert.Equal(t, 1, derived)
}

func TestUnsplitSeedProductDerivesFromPrice(t *testing.T) {
	paint := products[len(products)-1]
	split := pricing.SplitTax(paint.price, paint.split(paint.base), paint.split(paint.tax))
	assert.Equal(t, 75546.22, split.Base)
	assert.Equal(t, 14353.78, split.Tax)
}
