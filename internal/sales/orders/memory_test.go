package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

type state struct {
	products  map[int64]catalog.Product
	quotes    map[int64]quotations.Quotation
	orders    map[int64]Order
	addresses map[int64]int64
	movements []inventory.Movement
	nextOrder int64
	nextLine  int64
	nextMove  int64
}

func (s state) clone() state {
	c := s
	c.products = make(map[int64]catalog.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.quotes = make(map[int64]quotations.Quotation, len(s.quotes))
	for k, v := range s.quotes {
		c.quotes[k] = v
	}
	c.orders = make(map[int64]Order, len(s.orders))
	for k, v := range s.orders {
		v.Lines = append([]Line(nil), v.Lines...)
		c.orders[k] = v
	}
	c.movements = append([]inventory.Movement(nil), s.movements...)
	return c
}

type memoryRepo struct {
	mu sync.Mutex
	state
}

func newMemoryRepo(products ...catalog.Product) *memoryRepo {
	m := &memoryRepo{state: state{
		products:  map[int64]catalog.Product{},
		quotes:    map[int64]quotations.Quotation{},
		orders:    map[int64]Order{},
		addresses: map[int64]int64{},
	}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memoryRepo) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	o.Lines = append([]Line(nil), o.Lines...)
	return o, nil
}

func (m *memoryRepo) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if f.OwnerID != nil && o.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		o.Lines = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

type memoryTx struct {
	state
}

func (t *memoryTx) LockBalance(ctx context.Context, productID int64) (inventory.Balance, error) {
	p, ok := t.products[productID]
	if !ok {
		return inventory.Balance{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return inventory.Balance{ProductID: productID, Stock: p.Stock}, nil
}

func (t *memoryTx) UpdateStock(ctx context.Context, productID int64, stock int) error {
	p := t.products[productID]
	p.Stock = stock
	t.products[productID] = p
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, mv inventory.Movement) (int64, error) {
	t.nextMove++
	mv.ID = t.nextMove
	t.movements = append(t.movements, mv)
	return mv.ID, nil
}

func (t *memoryTx) LockProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := t.products[id]
	if !ok || !p.Active {
		return catalog.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (t *memoryTx) EnsureAddress(ctx context.Context, addressID, userID int64) error {
	if owner, ok := t.addresses[addressID]; !ok || owner != userID {
		return fmt.Errorf("%w: address %d", shared.ErrNotFound, addressID)
	}
	return nil
}

func (t *memoryTx) LockQuotation(ctx context.Context, id int64) (quotations.Quotation, error) {
	q, ok := t.quotes[id]
	if !ok {
		return quotations.Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return q, nil
}

func (t *memoryTx) MarkQuotationConverted(ctx context.Context, id int64) error {
	q := t.quotes[id]
	q.ManagementStatus = quotations.StatusConverted
	t.quotes[id] = q
	return nil
}

func (t *memoryTx) Insert(ctx context.Context, o *Order) error {
	t.nextOrder++
	o.ID = t.nextOrder
	stored := *o
	stored.Lines = nil
	t.orders[o.ID] = stored
	return nil
}

func (t *memoryTx) InsertLine(ctx context.Context, l *Line) error {
	o := t.orders[l.OrderID]
	t.nextLine++
	l.ID = t.nextLine
	o.Lines = append(o.Lines, *l)
	t.orders[o.ID] = o
	return nil
}

func (t *memoryTx) Lock(ctx context.Context, id int64) (Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	o.Lines = append([]Line(nil), o.Lines...)
	return o, nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, o Order) error {
	stored, ok := t.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, o.ID)
	}
	stored.Status = o.Status
	stored.ShippedAt = o.ShippedAt
	stored.DeliveredAt = o.DeliveredAt
	t.orders[o.ID] = stored
	return nil
}

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (k *memoryKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys == nil {
		k.keys = map[string]struct{}{}
	}
	if _, ok := k.keys[module+"/"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	k.keys[module+"/"+key] = struct{}{}
	return nil
}

func (k *memoryKeys) Delete(ctx context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, module+"/"+key)
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
