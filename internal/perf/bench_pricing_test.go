package perf

import (
	"sort"
	"testing"
	"time"

	"github.com/ferreexpress/ferreexpress/internal/pricing"
)

func basket(n int) ([]pricing.Item, []pricing.PricedLine) {
	items := make([]pricing.Item, n)
	lines := make([]pricing.PricedLine, n)
	for i := 0; i < n; i++ {
		price := float64(1000 + i*250)
		items[i] = pricing.Item{ProductID: int64(i + 1), Quantity: 1 + i%15}
		lines[i] = pricing.PricedLine{
			ProductID: int64(i + 1),
			Quantity:  items[i].Quantity,
			UnitPrice: price,
			Split:     pricing.SplitTax(price, nil, nil),
		}
	}
	return items, lines
}

func rules() []pricing.Rule {
	qty, itemsThreshold := 12, 3
	return []pricing.Rule{
		{ID: 1, Type: pricing.RuleSameProductBulk, QuantityThreshold: &qty, Percentage: 10, Active: true, Version: 1},
		{ID: 2, Type: pricing.RuleMultiProductBasket, ItemThreshold: &itemsThreshold, Percentage: 5, Active: true, Version: 1},
	}
}

func BenchmarkSelectDiscount(b *testing.B) {
	items, _ := basket(200)
	rs := rules()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pricing.SelectDiscount(items, rs)
	}
}

func BenchmarkComputeTotals(b *testing.B) {
	_, lines := basket(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pricing.ComputeTotals(lines, 0.10)
	}
}

func BenchmarkSplitTax(b *testing.B) {
	for i := 0; i < b.N; i++ {
		pricing.SplitTax(float64(9520+i%100), nil, nil)
	}
}

func TestQuotePricingLatencyTarget(t *testing.T) {
	items, lines := basket(500)
	rs := rules()
	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		sel := pricing.SelectDiscount(items, rs)
		pricing.ComputeTotals(lines, sel.Rate)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("pricing latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
