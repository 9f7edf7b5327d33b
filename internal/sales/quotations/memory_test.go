package quotations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	products    map[int64]catalog.Product
	quotes      map[int64]Quotation
	nextQuote   int64
	nextLine    int64
	expireWrite int
}

func newMemoryRepo(products ...catalog.Product) *memoryRepo {
	m := &memoryRepo{products: map[int64]catalog.Product{}, quotes: map[int64]Quotation{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func cloneQuote(q Quotation) Quotation {
	q.Lines = append([]Line(nil), q.Lines...)
	return q
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := make(map[int64]Quotation, len(m.quotes))
	for id, q := range m.quotes {
		staged[id] = cloneQuote(q)
	}
	tx := &memoryTx{repo: m, quotes: staged, nextQuote: m.nextQuote, nextLine: m.nextLine}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.quotes = tx.quotes
	m.nextQuote = tx.nextQuote
	m.nextLine = tx.nextLine
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	q = cloneQuote(q)
	for i := range q.Lines {
		p := m.products[q.Lines[i].ProductID]
		q.Lines[i].ProductBase = p.BasePrice
		q.Lines[i].ProductTax = p.TaxAmount
	}
	return q, nil
}

func (m *memoryRepo) List(ctx context.Context, f ListFilter) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotes {
		if f.OwnerID != nil && q.OwnerID != *f.OwnerID {
			continue
		}
		if f.ManagementStatus != nil && q.ManagementStatus != *f.ManagementStatus {
			continue
		}
		if f.Validity != nil && q.Validity != *f.Validity {
			continue
		}
		if f.From != nil && q.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !q.CreatedAt.Before(*f.To) {
			continue
		}
		q.Lines = nil
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memoryRepo) ExpireStale(ctx context.Context, ownerID *int64, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, q := range m.quotes {
		if ownerID != nil && q.OwnerID != *ownerID {
			continue
		}
		if q.Validity == ValidityValid && q.ValidUntil.Before(now) {
			q.Validity = ValidityExpired
			m.quotes[id] = q
			m.expireWrite++
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ExpireOne(ctx context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.Validity != ValidityValid || !q.ValidUntil.Before(now) {
		return false, nil
	}
	q.Validity = ValidityExpired
	m.quotes[id] = q
	m.expireWrite++
	return true, nil
}

type memoryTx struct {
	repo      *memoryRepo
	quotes    map[int64]Quotation
	nextQuote int64
	nextLine  int64
}

func (t *memoryTx) Product(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := t.repo.products[id]
	if !ok || !p.Active {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (t *memoryTx) Insert(ctx context.Context, q *Quotation) error {
	t.nextQuote++
	q.ID = t.nextQuote
	stored := *q
	stored.Lines = nil
	t.quotes[q.ID] = stored
	return nil
}

func (t *memoryTx) InsertLine(ctx context.Context, l *Line) error {
	q, ok := t.quotes[l.QuotationID]
	if !ok {
		return fmt.Errorf("quotation %d missing", l.QuotationID)
	}
	t.nextLine++
	l.ID = t.nextLine
	stored := *l
	stored.Split = pricing.Split{}
	q.Lines = append(q.Lines, stored)
	t.quotes[q.ID] = q
	return nil
}

func (t *memoryTx) Lock(ctx context.Context, id int64) (Quotation, error) {
	q, ok := t.quotes[id]
	if !ok {
		return Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return cloneQuote(q), nil
}

func (t *memoryTx) SetManagementStatus(ctx context.Context, id int64, status ManagementStatus) error {
	q, ok := t.quotes[id]
	if !ok {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	q.ManagementStatus = status
	t.quotes[id] = q
	return nil
}

type staticRules []pricing.Rule

func (s staticRules) CurrentRules(ctx context.Context) ([]pricing.Rule, error) { return s, nil }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
