package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ferreexpress/ferreexpress/internal/notifications"
	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
	"github.com/ferreexpress/ferreexpress/report"
)

// DefaultValidity is the lifetime of a new quotation.
const DefaultValidity = 7 * 24 * time.Hour

// RuleSource supplies the discount rules in force.
type RuleSource interface {
	CurrentRules(ctx context.Context) ([]pricing.Rule, error)
}

// Recorder receives quotation metrics.
type Recorder interface {
	QuotationCreated(ruleType string)
}

// Renderer turns a quotation document into a PDF.
type Renderer interface {
	RenderQuotation(ctx context.Context, doc report.QuotationDocument) ([]byte, error)
}

// Options carries the optional collaborators and knobs of Service.
type Options struct {
	Validity time.Duration
	Company  report.Company
	Metrics  Recorder
	Renderer Renderer
	Clock    func() time.Time
}

// Service implements the quotation engine.
type Service struct {
	repo       Repository
	rules      RuleSource
	dispatcher *notifications.Dispatcher
	logger     *slog.Logger
	validity   time.Duration
	company    report.Company
	metrics    Recorder
	renderer   Renderer
	clock      func() time.Time
}

// NewService constructs Service.
func NewService(repo Repository, rules RuleSource, dispatcher *notifications.Dispatcher, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:       repo,
		rules:      rules,
		dispatcher: dispatcher,
		logger:     logger,
		validity:   opts.Validity,
		company:    opts.Company,
		metrics:    opts.Metrics,
		renderer:   opts.Renderer,
		clock:      opts.Clock,
	}
}

// Create prices the requested lines, applies at most one discount rule and
// persists the quotation with its frozen lines in one transaction.
func (s *Service) Create(ctx context.Context, owner shared.Principal, req CreateRequest) (Quotation, error) {
	if len(req.Lines) == 0 {
		return Quotation{}, fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	items := make([]pricing.Item, 0, len(req.Lines))
	for i, l := range req.Lines {
		if l.ProductID <= 0 {
			return Quotation{}, fmt.Errorf("%w: line %d: invalid product", shared.ErrValidation, i+1)
		}
		if l.Quantity <= 0 {
			return Quotation{}, fmt.Errorf("%w: line %d: quantity must be positive", shared.ErrValidation, i+1)
		}
		if l.Quantity > pricing.MaxLineQuantity {
			return Quotation{}, fmt.Errorf("%w: line %d: quantity exceeds %d", shared.ErrValidation, i+1, pricing.MaxLineQuantity)
		}
		items = append(items, pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	rules, err := s.rules.CurrentRules(ctx)
	if err != nil {
		return Quotation{}, fmt.Errorf("load discount rules: %w", err)
	}
	selection := pricing.SelectDiscount(items, rules)

	now := s.clock()
	quote := Quotation{
		OwnerID:          owner.ID,
		ManagementStatus: StatusPending,
		Validity:         ValidityValid,
		ValidUntil:       now.Add(s.validity),
		CreatedAt:        now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		priced := make([]pricing.PricedLine, 0, len(req.Lines))
		lines := make([]Line, 0, len(req.Lines))
		for _, l := range req.Lines {
			product, err := tx.Product(ctx, l.ProductID)
			if err != nil {
				return err
			}
			split := product.Split()
			priced = append(priced, pricing.PricedLine{ProductID: product.ID, Quantity: l.Quantity, UnitPrice: product.Price, Split: split})
			base, tax := split.Base, split.Tax
			lines = append(lines, Line{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    l.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    pricing.LineSubtotal(product.Price, l.Quantity),
				Split:       split,
				BaseUnit:    &base,
				TaxUnit:     &tax,
			})
		}

		totals := pricing.ComputeTotals(priced, selection.Rate)
		quote.BaseTotal = totals.Base
		quote.TaxTotal = totals.Tax
		quote.Discount = totals.Discount
		quote.Total = totals.Total
		quote.DiscountRate = totals.Rate
		if selection.Rule != nil && totals.Rate > 0 {
			id := selection.Rule.ID
			quote.DiscountRule = &id
		}
		if err := tx.Insert(ctx, &quote); err != nil {
			return fmt.Errorf("insert quotation: %w", err)
		}
		for i := range lines {
			lines[i].QuotationID = quote.ID
			if err := tx.InsertLine(ctx, &lines[i]); err != nil {
				return fmt.Errorf("insert quotation line: %w", err)
			}
		}
		quote.Lines = lines
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}

	if s.metrics != nil {
		ruleType := ""
		if quote.DiscountRule != nil {
			ruleType = string(selection.Rule.Type)
		}
		s.metrics.QuotationCreated(ruleType)
	}
	s.dispatcher.Notify(ctx, notifications.Notification{
		UserID:   owner.ID,
		Title:    "Cotización creada",
		Message:  fmt.Sprintf("Tu cotización #%d por $%.2f está vigente hasta %s.", quote.ID, quote.Total, quote.ValidUntil.Format("2006-01-02")),
		Category: notifications.CategoryQuotation,
	})
	return quote, nil
}

// List returns the caller's quotations, or all of them for admins. Overdue
// rows in scope are expired first so validity filters see current values.
func (s *Service) List(ctx context.Context, requester shared.Principal, filter ListFilter) ([]Quotation, int, error) {
	if filter.ManagementStatus != nil && !filter.ManagementStatus.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown estado_gestion %q", shared.ErrValidation, *filter.ManagementStatus)
	}
	if filter.Validity != nil && !filter.Validity.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown estado_vigencia %q", shared.ErrValidation, *filter.Validity)
	}
	filter.OwnerID = nil
	if !requester.IsAdmin() {
		id := requester.ID
		filter.OwnerID = &id
	}

	now := s.clock()
	if _, err := s.repo.ExpireStale(ctx, filter.OwnerID, now); err != nil {
		return nil, 0, fmt.Errorf("expire quotations: %w", err)
	}
	quotes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range quotes {
		quotes[i].Validity = quotes[i].ValidityAt(now)
	}
	return quotes, total, nil
}

// Detail returns one quotation with its lines. Quotations of other users
// resolve to not found for non-admins.
func (s *Service) Detail(ctx context.Context, requester shared.Principal, id int64) (Quotation, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if !requester.CanAccess(quote.OwnerID) {
		return Quotation{}, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	if err := s.reconcile(ctx, &quote); err != nil {
		return Quotation{}, err
	}
	for i := range quote.Lines {
		quote.Lines[i].ResolveSplit()
	}
	return quote, nil
}

func (s *Service) reconcile(ctx context.Context, quote *Quotation) error {
	now := s.clock()
	derived := quote.ValidityAt(now)
	if derived == quote.Validity {
		return nil
	}
	if derived == ValidityExpired {
		if _, err := s.repo.ExpireOne(ctx, quote.ID, now); err != nil {
			return fmt.Errorf("expire quotation: %w", err)
		}
	}
	quote.Validity = derived
	return nil
}

// ChangeManagementStatus lets an admin accept or reject a quotation.
// Converted quotations are final.
func (s *Service) ChangeManagementStatus(ctx context.Context, actor shared.Principal, id int64, status ManagementStatus) (Quotation, error) {
	if !actor.IsAdmin() {
		return Quotation{}, fmt.Errorf("%w: only admins manage quotations", shared.ErrForbiddenTransition)
	}
	if status != StatusAccepted && status != StatusRejected {
		return Quotation{}, fmt.Errorf("%w: estado_gestion must be ACEPTADA or RECHAZADA", shared.ErrValidation)
	}

	var previous ManagementStatus
	var quote Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if current.ManagementStatus == StatusConverted {
			return fmt.Errorf("%w: quotation %d was already converted", shared.ErrForbiddenTransition, id)
		}
		previous = current.ManagementStatus
		if err := tx.SetManagementStatus(ctx, id, status); err != nil {
			return err
		}
		current.ManagementStatus = status
		quote = current
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	if err := s.reconcile(ctx, &quote); err != nil {
		s.logger.Warn("reconcile quotation validity", slog.Int64("quotation_id", id), slog.Any("error", err))
	}
	for i := range quote.Lines {
		quote.Lines[i].ResolveSplit()
	}

	verb := "aceptada"
	if status == StatusRejected {
		verb = "rechazada"
	}
	s.dispatcher.Notify(ctx, notifications.Notification{
		UserID:   quote.OwnerID,
		Title:    "Cotización " + verb,
		Message:  fmt.Sprintf("Tu cotización #%d fue %s.", quote.ID, verb),
		Category: notifications.CategoryQuotation,
	})
	s.dispatcher.Audit(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "quotation.status",
		Entity:   "quotation",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  map[string]any{"from": previous, "to": status},
		At:       s.clock(),
	})
	return quote, nil
}

// Document builds the printable payload of a quotation.
func (s *Service) Document(ctx context.Context, requester shared.Principal, id int64) (report.QuotationDocument, error) {
	quote, err := s.Detail(ctx, requester, id)
	if err != nil {
		return report.QuotationDocument{}, err
	}
	doc := report.QuotationDocument{
		Company:    s.company,
		Number:     quote.ID,
		ClientID:   quote.OwnerID,
		IssuedAt:   quote.CreatedAt,
		ValidUntil: quote.ValidUntil,
		Validity:   string(quote.Validity),
		BaseTotal:  quote.BaseTotal,
		TaxTotal:   quote.TaxTotal,
		Discount:   quote.Discount,
		Total:      quote.Total,
		Legal:      report.DefaultLegalNotice,
		Lines:      make([]report.DocumentLine, 0, len(quote.Lines)),
	}
	if requester.ID == quote.OwnerID {
		doc.ClientEmail = requester.Email
	}
	for _, l := range quote.Lines {
		doc.Lines = append(doc.Lines, report.DocumentLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			BaseUnit:    l.Split.Base,
			TaxUnit:     l.Split.Tax,
			Subtotal:    l.Subtotal,
		})
	}
	return doc, nil
}

// ExportDocument renders the quotation as a PDF.
func (s *Service) ExportDocument(ctx context.Context, requester shared.Principal, id int64) ([]byte, error) {
	doc, err := s.Document(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("quotation renderer not configured")
	}
	pdf, err := s.renderer.RenderQuotation(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render quotation %d: %w", id, err)
	}
	return pdf, nil
}

// ExpireOverdue expires every overdue quotation. It backs the periodic sweep.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.ExpireStale(ctx, nil, now)
}
