package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/ferreexpress/ferreexpress/internal/catalog"
	"github.com/ferreexpress/ferreexpress/internal/inventory"
	"github.com/ferreexpress/ferreexpress/internal/notifications"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

const (
	refModule        = "orders"
	idempotencyScope = "orders.payment"
)

// Recorder receives order metrics.
type Recorder interface {
	OrderCreated(source string)
	StockRejected()
	PaymentProcessed(approved bool)
}

// KeyStore guards payments against replays.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Options carries the optional collaborators and knobs of Service.
type Options struct {
	ShippingFee float64
	Gateway     PaymentGateway
	Keys        KeyStore
	Metrics     Recorder
	Clock       func() time.Time
}

// Service implements the order lifecycle.
type Service struct {
	repo        Repository
	ledger      *inventory.Ledger
	dispatcher  *notifications.Dispatcher
	logger      *slog.Logger
	shippingFee float64
	gateway     PaymentGateway
	keys        KeyStore
	metrics     Recorder
	clock       func() time.Time
}

// NewService constructs Service.
func NewService(repo Repository, ledger *inventory.Ledger, dispatcher *notifications.Dispatcher, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if opts.Gateway == nil {
		opts.Gateway = ParityGateway{}
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        repo,
		ledger:      ledger,
		dispatcher:  dispatcher,
		logger:      logger,
		shippingFee: opts.ShippingFee,
		gateway:     opts.Gateway,
		keys:        opts.Keys,
		metrics:     opts.Metrics,
		clock:       opts.Clock,
	}
}

// demand is the total quantity requested per product.
type demand struct {
	productID int64
	quantity  int
}

// aggregate sums quantities per product, sorted by product id so concurrent
// orders lock rows in the same order.
func aggregate(lines []Line) []demand {
	totals := make(map[int64]int, len(lines))
	for _, l := range lines {
		totals[l.ProductID] += l.Quantity
	}
	out := make([]demand, 0, len(totals))
	for id, qty := range totals {
		out = append(out, demand{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

// reserve locks every product of lines and checks stock before anything is
// written.
func reserve(ctx context.Context, tx TxRepository, lines []Line) ([]demand, map[int64]catalog.Product, error) {
	wanted := aggregate(lines)
	products := make(map[int64]catalog.Product, len(wanted))
	for _, d := range wanted {
		product, err := tx.LockProduct(ctx, d.productID)
		if err != nil {
			return nil, nil, err
		}
		if product.Stock < d.quantity {
			return nil, nil, fmt.Errorf("%w: product %d has %d, requested %d", shared.ErrInsufficientStock, product.ID, product.Stock, d.quantity)
		}
		products[product.ID] = product
	}
	return wanted, products, nil
}

func (s *Service) persist(ctx context.Context, tx TxRepository, order *Order, wanted []demand) error {
	if err := tx.Insert(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if err := tx.InsertLine(ctx, &order.Lines[i]); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	ref := strconv.FormatInt(order.ID, 10)
	for _, d := range wanted {
		if _, err := s.ledger.Debit(ctx, tx, inventory.MovementInput{ProductID: d.productID, Quantity: d.quantity, RefModule: refModule, RefID: ref}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkout(ctx context.Context, tx TxRepository, owner shared.Principal, c Checkout) error {
	if c.AddressID == nil {
		return nil
	}
	return tx.EnsureAddress(ctx, *c.AddressID, owner.ID)
}

// CreateDirect checks out a cart at current product prices.
func (s *Service) CreateDirect(ctx context.Context, owner shared.Principal, req CreateDirectRequest) (Order, error) {
	shipping, err := ShippingCost(req.Checkout, s.shippingFee)
	if err != nil {
		return Order{}, err
	}
	if len(req.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	for i, l := range req.Lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line %d: product and a positive quantity are required", shared.ErrValidation, i+1)
		}
		if l.Quantity > pricing.MaxLineQuantity {
			return Order{}, fmt.Errorf("%w: line %d: quantity exceeds %d", shared.ErrValidation, i+1, pricing.MaxLineQuantity)
		}
	}

	order := Order{
		OwnerID:       owner.ID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		DeliveryMode:  req.DeliveryMode,
		ShippingCost:  shipping,
		Status:        StatusPending,
		CreatedAt:     s.clock(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkout(ctx, tx, owner, req.Checkout); err != nil {
			return err
		}
		lines := make([]Line, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, Line{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		wanted, products, err := reserve(ctx, tx, lines)
		if err != nil {
			return err
		}
		sum := 0.0
		for i := range lines {
			product := products[lines[i].ProductID]
			lines[i].ProductName = product.Name
			lines[i].UnitPrice = product.Price
			lines[i].Subtotal = pricing.LineSubtotal(product.Price, lines[i].Quantity)
			sum += lines[i].Subtotal
		}
		order.Lines = lines
		order.Total = pricing.Round2(sum + shipping)
		return s.persist(ctx, tx, &order, wanted)
	})
	if err != nil {
		s.recordFailure(err)
		return Order{}, err
	}
	s.created(ctx, owner, order, "direct")
	return order, nil
}

// CreateFromQuotation converts an accepted, unexpired quotation owned by the
// caller. The quotation's frozen prices and total are reused and the
// quotation is marked converted in the same transaction.
func (s *Service) CreateFromQuotation(ctx context.Context, owner shared.Principal, req CreateFromQuotationRequest) (Order, error) {
	shipping, err := ShippingCost(req.Checkout, s.shippingFee)
	if err != nil {
		return Order{}, err
	}
	if req.QuotationID <= 0 {
		return Order{}, fmt.Errorf("%w: cotizacion_id is required", shared.ErrValidation)
	}

	order := Order{
		QuotationID:   &req.QuotationID,
		OwnerID:       owner.ID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		DeliveryMode:  req.DeliveryMode,
		ShippingCost:  shipping,
		Status:        StatusPending,
		CreatedAt:     s.clock(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.LockQuotation(ctx, req.QuotationID)
		if err != nil {
			return err
		}
		if quote.OwnerID != owner.ID {
			return fmt.Errorf("%w: quotation %d does not belong to the caller", shared.ErrQuotationNotConvertible, quote.ID)
		}
		if !quote.Convertible(order.CreatedAt) {
			return fmt.Errorf("%w: quotation %d is %s/%s", shared.ErrQuotationNotConvertible, quote.ID, quote.ManagementStatus, quote.ValidityAt(order.CreatedAt))
		}
		if len(quote.Lines) == 0 {
			return fmt.Errorf("%w: quotation %d has no lines", shared.ErrQuotationNotConvertible, quote.ID)
		}
		if err := s.checkout(ctx, tx, owner, req.Checkout); err != nil {
			return err
		}
		lines := make([]Line, 0, len(quote.Lines))
		for _, ql := range quote.Lines {
			lines = append(lines, Line{
				ProductID:   ql.ProductID,
				ProductName: ql.ProductName,
				Quantity:    ql.Quantity,
				UnitPrice:   ql.UnitPrice,
				Subtotal:    ql.Subtotal,
			})
		}
		wanted, _, err := reserve(ctx, tx, lines)
		if err != nil {
			return err
		}
		order.Lines = lines
		order.Total = pricing.Round2(quote.Total + shipping)
		if err := s.persist(ctx, tx, &order, wanted); err != nil {
			return err
		}
		return tx.MarkQuotationConverted(ctx, quote.ID)
	})
	if err != nil {
		s.recordFailure(err)
		return Order{}, err
	}
	s.created(ctx, owner, order, "quotation")
	return order, nil
}

func (s *Service) recordFailure(err error) {
	if s.metrics != nil && errors.Is(err, shared.ErrInsufficientStock) {
		s.metrics.StockRejected()
	}
}

func (s *Service) created(ctx context.Context, owner shared.Principal, order Order, source string) {
	if s.metrics != nil {
		s.metrics.OrderCreated(source)
	}
	s.dispatcher.Notify(ctx, notifications.Notification{
		UserID:   owner.ID,
		Title:    "Pedido recibido",
		Message:  fmt.Sprintf("Tu pedido #%d por $%.2f quedó registrado.", order.ID, order.Total),
		Category: notifications.CategoryOrder,
	})
	s.dispatcher.Mail(ctx, notifications.Mail{
		To:      owner.Email,
		Subject: fmt.Sprintf("FerreExpress: pedido #%d recibido", order.ID),
		Text:    orderSummary(order),
		HTML:    "<p>" + orderSummary(order) + "</p>",
	})
	s.dispatcher.Audit(ctx, shared.AuditLog{
		ActorID:  owner.ID,
		Action:   "order.create",
		Entity:   "order",
		EntityID: strconv.FormatInt(order.ID, 10),
		Changes:  map[string]any{"source": source, "total": order.Total},
		At:       order.CreatedAt,
	})
}

func orderSummary(o Order) string {
	return fmt.Sprintf("Pedido #%d: %d productos, envío $%.2f, total $%.2f. Estado %s.", o.ID, len(o.Lines), o.ShippingCost, o.Total, o.Status)
}

// List returns the caller's orders, or all of them for admins.
func (s *Service) List(ctx context.Context, requester shared.Principal, filter ListFilter) ([]Order, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown estado %q", shared.ErrValidation, *filter.Status)
	}
	filter.OwnerID = nil
	if !requester.IsAdmin() {
		id := requester.ID
		filter.OwnerID = &id
	}
	return s.repo.List(ctx, filter)
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, requester shared.Principal, id int64) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !requester.CanAccess(order.OwnerID) {
		return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
	}
	return order, nil
}

// UpdateStatus applies one transition of the lifecycle table.
func (s *Service) UpdateStatus(ctx context.Context, actor shared.Principal, id int64, target Status) (Order, error) {
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown estado %q", shared.ErrValidation, target)
	}
	var order Order
	var previous Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(current.OwnerID) {
			return fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		r, err := authorize(actor, current, target)
		if err != nil {
			return err
		}
		now := s.clock()
		switch r.effect {
		case effectRestock:
			ref := strconv.FormatInt(current.ID, 10)
			for _, d := range aggregate(current.Lines) {
				if _, err := s.ledger.Credit(ctx, tx, inventory.MovementInput{ProductID: d.productID, Quantity: d.quantity, RefModule: refModule, RefID: ref}); err != nil {
					return err
				}
			}
		case effectStampShipped:
			current.ShippedAt = &now
		case effectStampDelivered:
			current.DeliveredAt = &now
		}
		previous = current.Status
		current.Status = target
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.dispatcher.Notify(ctx, notifications.Notification{
		UserID:   order.OwnerID,
		Title:    "Pedido actualizado",
		Message:  fmt.Sprintf("Tu pedido #%d pasó de %s a %s.", order.ID, previous, order.Status),
		Category: notifications.CategoryOrder,
	})
	s.dispatcher.Audit(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "order.status",
		Entity:   "order",
		EntityID: strconv.FormatInt(order.ID, 10),
		Changes:  map[string]any{"from": previous, "to": order.Status},
		At:       s.clock(),
	})
	return order, nil
}

// ProcessPayment charges a pending order through the gateway. A declined
// charge is a normal result with Approved false and leaves the order
// pending. A non-empty key is recorded so a replay fails with
// shared.ErrIdempotencyConflict; the key is released when the attempt errors.
func (s *Service) ProcessPayment(ctx context.Context, owner shared.Principal, id int64, cardNumber, key string) (PaymentResult, error) {
	if cardNumber == "" {
		return PaymentResult{}, fmt.Errorf("%w: numero_tarjeta is required", shared.ErrValidation)
	}
	if key != "" && s.keys != nil {
		if err := s.keys.CheckAndInsert(ctx, key, idempotencyScope); err != nil {
			return PaymentResult{}, err
		}
	}

	result, order, err := s.charge(ctx, owner, id, cardNumber)
	if err != nil {
		if key != "" && s.keys != nil {
			if derr := s.keys.Delete(context.WithoutCancel(ctx), key, idempotencyScope); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return PaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentProcessed(result.Approved)
	}
	title := "Pago rechazado"
	if result.Approved {
		title = "Pago aprobado"
	}
	s.dispatcher.Notify(ctx, notifications.Notification{
		UserID:   order.OwnerID,
		Title:    title,
		Message:  fmt.Sprintf("Pedido #%d: %s", order.ID, result.Message),
		Category: notifications.CategoryPayment,
	})
	if result.Approved {
		s.dispatcher.Audit(ctx, shared.AuditLog{
			ActorID:  owner.ID,
			Action:   "order.payment",
			Entity:   "order",
			EntityID: strconv.FormatInt(order.ID, 10),
			Changes:  map[string]any{"reference": result.Reference, "from": StatusPending, "to": StatusConfirmed},
			At:       s.clock(),
		})
	}
	return result, nil
}

func (s *Service) charge(ctx context.Context, owner shared.Principal, id int64, cardNumber string) (PaymentResult, Order, error) {
	var result PaymentResult
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if !owner.CanAccess(current.OwnerID) {
			return fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: order %d is %s, only pending orders accept payment", shared.ErrForbiddenTransition, id, current.Status)
		}
		decision, err := s.gateway.Charge(ctx, ChargeRequest{OrderID: current.ID, Amount: current.Total, CardNumber: cardNumber})
		if err != nil {
			return err
		}
		if !decision.Approved {
			result = PaymentResult{Approved: false, Message: "Pago rechazado por la entidad emisora", Status: current.Status}
			order = current
			return nil
		}
		current.Status = StatusConfirmed
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		result = PaymentResult{Approved: true, Message: "Pago aprobado", Reference: decision.Reference, Status: current.Status}
		order = current
		return nil
	})
	return result, order, err
}
