package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/notifications"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/sales/quotations"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

var (
	customer = shared.Principal{ID: 7, Role: shared.RoleCustomer, Email: "cliente@example.com"}
	other    = shared.Principal{ID: 8, Role: shared.RoleContractor}
	admin    = shared.Principal{ID: 1, Role: shared.RoleAdmin}

	drill = catalog.Product{ID: 1, Name: "Taladro", Price: 119000, Stock: 3, Active: true}
	tape  = catalog.Product{ID: 2, Name: "Cinta", Price: 5950, Stock: 50, Active: true}
)

func modePtr(m DeliveryMode) *DeliveryMode { return &m }

type counters struct {
	created  map[string]int
	rejected int
	payments map[bool]int
}

func (c *counters) OrderCreated(source string) {
	if c.created == nil {
		c.created = map[string]int{}
	}
	c.created[source]++
}

func (c *counters) StockRejected() { c.rejected++ }

func (c *counters) PaymentProcessed(approved bool) {
	if c.payments == nil {
		c.payments = map[bool]int{}
	}
	c.payments[approved]++
}

type recordingNotifier struct{ items []notifications.Notification }

func (r *recordingNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	r.items = append(r.items, n)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	clock    *fakeClock
	metrics  *counters
	keys     *memoryKeys
	notifier *recordingNotifier
	service  *Service
}

func newFixture(products ...catalog.Product) *fixture {
	f := &fixture{
		repo:     newMemoryRepo(products...),
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		metrics:  &counters{},
		keys:     &memoryKeys{},
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.repo, inventory.NewLedger(), notifications.NewDispatcher(f.notifier, nil, nil, logger), logger, Options{
		ShippingFee: DefaultShippingFee,
		Keys:        f.keys,
		Metrics:     f.metrics,
		Clock:       f.clock.Now,
	})
	return f
}

func cod() Checkout { return Checkout{PaymentMethod: PaymentCashOnDelivery} }

func online(mode DeliveryMode) Checkout {
	return Checkout{PaymentMethod: PaymentOnline, DeliveryMode: modePtr(mode)}
}

func TestCreateDirectInsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(drill)

	_, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: online(DeliveryHome),
		Lines:    []LineRequest{{ProductID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, 3, f.repo.stock(1))
	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.repo.movements)
	assert.Equal(t, 1, f.metrics.rejected)
}

func TestCreateDirectRejectsOversizedQuantity(t *testing.T) {
	f := newFixture(drill)
	_, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: cod(),
		Lines:    []LineRequest{{ProductID: 1, Quantity: pricing.MaxLineQuantity + 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, 3, f.repo.stock(1))
}

func TestCreateDirectAggregatesDuplicateLines(t *testing.T) {
	f := newFixture(drill)

	_, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: cod(),
		Lines:    []LineRequest{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 2}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, 3, f.repo.stock(1))
}

func TestCreateDirectDebitsStockAndChargesShipping(t *testing.T) {
	f := newFixture(drill, tape)

	order, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: cod(),
		Lines:    []LineRequest{{ProductID: 2, Quantity: 4}, {ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 10000.0, order.ShippingCost)
	assert.Equal(t, 4*5950.0+2*119000.0+10000, order.Total)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "Cinta", order.Lines[0].ProductName)
	assert.Equal(t, 1, f.repo.stock(1))
	assert.Equal(t, 46, f.repo.stock(2))

	require.Len(t, f.repo.movements, 2)
	for _, mv := range f.repo.movements {
		assert.Equal(t, inventory.MovementOut, mv.Type)
		assert.Equal(t, "orders", mv.RefModule)
		assert.Equal(t, "1", mv.RefID)
	}
	assert.Equal(t, 1, f.metrics.created["direct"])
	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, notifications.CategoryOrder, f.notifier.items[0].Category)
}

func TestShippingRules(t *testing.T) {
	cases := []struct {
		name     string
		checkout Checkout
		want     float64
		invalid  bool
	}{
		{name: "cash on delivery", checkout: cod(), want: 10000},
		{name: "cash on delivery with pickup", checkout: Checkout{PaymentMethod: PaymentCashOnDelivery, DeliveryMode: modePtr(DeliveryStorePickup)}, want: 10000},
		{name: "online home", checkout: online(DeliveryHome), want: 10000},
		{name: "online pickup", checkout: online(DeliveryStorePickup), want: 0},
		{name: "online without mode", checkout: Checkout{PaymentMethod: PaymentOnline}, invalid: true},
		{name: "unknown method", checkout: Checkout{PaymentMethod: "TRUEQUE"}, invalid: true},
		{name: "unknown mode", checkout: online("DRON"), invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ShippingCost(tc.checkout, DefaultShippingFee)
			if tc.invalid {
				require.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCreateDirectRejectsForeignAddress(t *testing.T) {
	f := newFixture(tape)
	f.repo.addresses[10] = other.ID
	f.repo.addresses[11] = customer.ID

	addr := int64(10)
	_, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: Checkout{PaymentMethod: PaymentCashOnDelivery, AddressID: &addr},
		Lines:    []LineRequest{{ProductID: 2, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	addr = 11
	order, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: Checkout{PaymentMethod: PaymentCashOnDelivery, AddressID: &addr},
		Lines:    []LineRequest{{ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), *order.AddressID)
}

func acceptedQuote(f *fixture, id int64, owner int64, validUntil time.Time) {
	f.repo.quotes[id] = quotations.Quotation{
		ID:               id,
		OwnerID:          owner,
		Total:            160650,
		Discount:         17850,
		ManagementStatus: quotations.StatusAccepted,
		Validity:         quotations.ValidityValid,
		ValidUntil:       validUntil,
		Lines: []quotations.Line{
			{ProductID: 2, ProductName: "Cinta", Quantity: 15, UnitPrice: 5000, Subtotal: 75000},
		},
	}
}

func TestCreateFromQuotationConvertsOnce(t *testing.T) {
	f := newFixture(tape)
	acceptedQuote(f, 5, customer.ID, f.clock.now.Add(48*time.Hour))
	req := CreateFromQuotationRequest{Checkout: online(DeliveryStorePickup), QuotationID: 5}

	order, err := f.service.CreateFromQuotation(context.Background(), customer, req)
	require.NoError(t, err)
	assert.Equal(t, 160650.0, order.Total)
	assert.Zero(t, order.ShippingCost)
	require.NotNil(t, order.QuotationID)
	assert.Equal(t, int64(5), *order.QuotationID)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 5000.0, order.Lines[0].UnitPrice)
	assert.Equal(t, 35, f.repo.stock(2))
	assert.Equal(t, quotations.StatusConverted, f.repo.quotes[5].ManagementStatus)
	assert.Equal(t, 1, f.metrics.created["quotation"])

	_, err = f.service.CreateFromQuotation(context.Background(), customer, req)
	require.ErrorIs(t, err, shared.ErrQuotationNotConvertible)
	assert.Equal(t, 35, f.repo.stock(2))
}

func TestCreateFromQuotationAddsShipping(t *testing.T) {
	f := newFixture(tape)
	acceptedQuote(f, 5, customer.ID, f.clock.now.Add(time.Hour))

	order, err := f.service.CreateFromQuotation(context.Background(), customer, CreateFromQuotationRequest{Checkout: cod(), QuotationID: 5})
	require.NoError(t, err)
	assert.Equal(t, 170650.0, order.Total)
}

func TestCreateFromQuotationRejections(t *testing.T) {
	cases := map[string]func(f *fixture){
		"expired": func(f *fixture) { acceptedQuote(f, 5, customer.ID, f.clock.now.Add(-time.Minute)) },
		"foreign": func(f *fixture) { acceptedQuote(f, 5, other.ID, f.clock.now.Add(time.Hour)) },
		"pending": func(f *fixture) {
			acceptedQuote(f, 5, customer.ID, f.clock.now.Add(time.Hour))
			q := f.repo.quotes[5]
			q.ManagementStatus = quotations.StatusPending
			f.repo.quotes[5] = q
		},
		"rejected": func(f *fixture) {
			acceptedQuote(f, 5, customer.ID, f.clock.now.Add(time.Hour))
			q := f.repo.quotes[5]
			q.ManagementStatus = quotations.StatusRejected
			f.repo.quotes[5] = q
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(tape)
			setup(f)
			_, err := f.service.CreateFromQuotation(context.Background(), customer, CreateFromQuotationRequest{Checkout: cod(), QuotationID: 5})
			require.ErrorIs(t, err, shared.ErrQuotationNotConvertible)
			assert.Equal(t, 50, f.repo.stock(2))
			assert.Empty(t, f.repo.orders)
		})
	}

	f := newFixture(tape)
	_, err := f.service.CreateFromQuotation(context.Background(), customer, CreateFromQuotationRequest{Checkout: cod(), QuotationID: 404})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateFromQuotationRollsBackOnStockShortage(t *testing.T) {
	low := tape
	low.Stock = 10
	f := newFixture(low)
	acceptedQuote(f, 5, customer.ID, f.clock.now.Add(time.Hour))

	_, err := f.service.CreateFromQuotation(context.Background(), customer, CreateFromQuotationRequest{Checkout: cod(), QuotationID: 5})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, quotations.StatusAccepted, f.repo.quotes[5].ManagementStatus)
	assert.Equal(t, 10, f.repo.stock(2))
}

func placeOrder(t *testing.T, f *fixture, qty int) Order {
	t.Helper()
	order, err := f.service.CreateDirect(context.Background(), customer, CreateDirectRequest{
		Checkout: cod(),
		Lines:    []LineRequest{{ProductID: 2, Quantity: qty}},
	})
	require.NoError(t, err)
	return order
}

func TestStatusTransitionMatrix(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}
	allowed := map[transition][]shared.Principal{
		{StatusPending, StatusConfirmed}:   {admin},
		{StatusPending, StatusCancelled}:   {admin, customer},
		{StatusConfirmed, StatusShipped}:   {admin},
		{StatusConfirmed, StatusCancelled}: {admin, customer},
		{StatusShipped, StatusDelivered}:   {admin},
	}
	for _, from := range all {
		for _, to := range all {
			for _, actor := range []shared.Principal{admin, customer} {
				permitted := false
				for _, p := range allowed[transition{from, to}] {
					if p.ID == actor.ID {
						permitted = true
					}
				}
				order := Order{ID: 1, OwnerID: customer.ID, Status: from}
				_, err := authorize(actor, order, to)
				if permitted {
					assert.NoError(t, err, "%s -> %s by %s", from, to, actor.Role)
				} else {
					assert.ErrorIs(t, err, shared.ErrForbiddenTransition, "%s -> %s by %s", from, to, actor.Role)
				}
			}
		}
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	order := placeOrder(t, f, 5)

	_, err := f.service.UpdateStatus(ctx, customer, order.ID, StatusConfirmed)
	require.ErrorIs(t, err, shared.ErrForbiddenTransition)

	_, err = f.service.UpdateStatus(ctx, other, order.ID, StatusCancelled)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.UpdateStatus(ctx, admin, order.ID, "PERDIDO")
	require.ErrorIs(t, err, shared.ErrValidation)

	confirmed, err := f.service.UpdateStatus(ctx, admin, order.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	shipped, err := f.service.UpdateStatus(ctx, admin, order.ID, StatusShipped)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, f.clock.now, *shipped.ShippedAt)

	_, err = f.service.UpdateStatus(ctx, customer, order.ID, StatusCancelled)
	require.ErrorIs(t, err, shared.ErrForbiddenTransition)

	delivered, err := f.service.UpdateStatus(ctx, admin, order.ID, StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, 45, f.repo.stock(2))
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	for _, terminal := range []Status{StatusCancelled, StatusDelivered} {
		f := newFixture(tape)
		order := placeOrder(t, f, 1)
		stored := f.repo.orders[order.ID]
		stored.Status = terminal
		f.repo.orders[order.ID] = stored

		for _, target := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
			for _, actor := range []shared.Principal{admin, customer} {
				_, err := f.service.UpdateStatus(context.Background(), actor, order.ID, target)
				assert.ErrorIs(t, err, shared.ErrForbiddenTransition, "%s -> %s by %s", terminal, target, actor.Role)
			}
		}
	}
}

func TestStockConservation(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	const start = 50
	debited, credited := 0, 0

	first := placeOrder(t, f, 20)
	debited += 20
	second := placeOrder(t, f, 25)
	debited += 25
	assert.Equal(t, start-debited+credited, f.repo.stock(2))

	_, err := f.service.CreateDirect(ctx, customer, CreateDirectRequest{Checkout: cod(), Lines: []LineRequest{{ProductID: 2, Quantity: 6}}})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, start-debited+credited, f.repo.stock(2))

	_, err = f.service.UpdateStatus(ctx, customer, first.ID, StatusCancelled)
	require.NoError(t, err)
	credited += 20
	assert.Equal(t, start-debited+credited, f.repo.stock(2))

	_, err = f.service.UpdateStatus(ctx, admin, second.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.service.UpdateStatus(ctx, admin, second.ID, StatusCancelled)
	require.NoError(t, err)
	credited += 25
	assert.Equal(t, start, f.repo.stock(2))

	ins := 0
	for _, mv := range f.repo.movements {
		if mv.Type == inventory.MovementIn {
			ins += mv.Quantity
		}
	}
	assert.Equal(t, credited, ins)
}

func TestProcessPaymentParity(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	order := placeOrder(t, f, 1)

	rejected, err := f.service.ProcessPayment(ctx, customer, order.ID, "4111 1111 1111 1113", "")
	require.NoError(t, err)
	assert.False(t, rejected.Approved)
	assert.Equal(t, StatusPending, rejected.Status)
	assert.Equal(t, StatusPending, f.repo.orders[order.ID].Status)

	approved, err := f.service.ProcessPayment(ctx, customer, order.ID, "4111-1111-1111-1114", "")
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.NotEmpty(t, approved.Reference)
	assert.Equal(t, StatusConfirmed, approved.Status)
	assert.Equal(t, StatusConfirmed, f.repo.orders[order.ID].Status)

	_, err = f.service.ProcessPayment(ctx, customer, order.ID, "4111111111111114", "")
	require.ErrorIs(t, err, shared.ErrForbiddenTransition)

	assert.Equal(t, 1, f.metrics.payments[true])
	assert.Equal(t, 1, f.metrics.payments[false])
}

func TestProcessPaymentValidationAndOwnership(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	order := placeOrder(t, f, 1)

	_, err := f.service.ProcessPayment(ctx, customer, order.ID, "", "")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.ProcessPayment(ctx, customer, order.ID, "12ab", "")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.ProcessPayment(ctx, other, order.ID, "4111111111111114", "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProcessPaymentIdempotencyKey(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	order := placeOrder(t, f, 1)

	_, err := f.service.ProcessPayment(ctx, customer, order.ID, "not-a-card", "k-1")
	require.ErrorIs(t, err, shared.ErrValidation)

	// the failed attempt released its key
	result, err := f.service.ProcessPayment(ctx, customer, order.ID, "4111111111111113", "k-1")
	require.NoError(t, err)
	assert.False(t, result.Approved)

	_, err = f.service.ProcessPayment(ctx, customer, order.ID, "4111111111111114", "k-1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Equal(t, StatusPending, f.repo.orders[order.ID].Status)
}

func TestListAndGetScopeToOwner(t *testing.T) {
	f := newFixture(tape)
	ctx := context.Background()
	order := placeOrder(t, f, 1)

	mine, total, err := f.service.List(ctx, customer, ListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, order.ID, mine[0].ID)

	_, total, err = f.service.List(ctx, other, ListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = f.service.Get(ctx, other, order.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := f.service.Get(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)

	bogus := Status("PERDIDO")
	_, _, err = f.service.List(ctx, admin, ListFilter{Status: &bogus})
	require.ErrorIs(t, err, shared.ErrValidation)
}
