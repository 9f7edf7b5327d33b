// Package discounts administers the versioned discount rule table and serves
// the current rule set to the quotation engine.
package discounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ferreexpress/ferreexpress/internal/pricing"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// PublishInput describes a new rule version.
type PublishInput struct {
	Type              pricing.RuleType `json:"tipo" validate:"required,oneof=MISMO_PRODUCTO MULTI_PRODUCTO"`
	QuantityThreshold *int             `json:"umbral_cantidad,omitempty" validate:"omitempty,gte=1"`
	ItemThreshold     *int             `json:"umbral_items,omitempty" validate:"omitempty,gte=1"`
	Percentage        float64          `json:"porcentaje" validate:"gte=0,lt=100"`
}

// loadTimeout bounds a shared rule load once it is detached from the
// request that started it.
const loadTimeout = 5 * time.Second

// Service coordinates rule reads and writes.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CurrentRules returns the current rule per type. Cache errors degrade to a
// database read.
func (s *Service) CurrentRules(ctx context.Context) ([]pricing.Rule, error) {
	if !s.cache.enabled() {
		return s.repo.ListCurrent(ctx)
	}
	key, err := s.cache.Key(ctx)
	if err != nil {
		s.logger.Warn("discount cache key", slog.Any("error", err))
		return s.repo.ListCurrent(ctx)
	}
	var rules []pricing.Rule
	if hit, err := s.cache.Get(ctx, key, &rules); err != nil {
		s.logger.Warn("discount cache get", slog.Any("error", err))
	} else if hit {
		return rules, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		loaded, err := s.repo.ListCurrent(ctx)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = []pricing.Rule{}
		}
		if err := s.cache.Set(ctx, key, loaded); err != nil {
			s.logger.Warn("discount cache set", slog.Any("error", err))
		}
		return loaded, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]pricing.Rule), nil
	}
}

// ListRules returns the rule history, optionally for one type.
func (s *Service) ListRules(ctx context.Context, typ *pricing.RuleType) ([]pricing.Rule, error) {
	if typ != nil && !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown rule type %q", shared.ErrValidation, *typ)
	}
	return s.repo.List(ctx, typ)
}

// Publish stores a new version of a rule and invalidates the cache.
func (s *Service) Publish(ctx context.Context, actor shared.Principal, in PublishInput) (pricing.Rule, error) {
	if !actor.IsAdmin() {
		return pricing.Rule{}, fmt.Errorf("%w: only admins publish discount rules", shared.ErrForbiddenTransition)
	}
	if err := validatePublish(in); err != nil {
		return pricing.Rule{}, err
	}
	rule, err := s.repo.Publish(ctx, in)
	if err != nil {
		return pricing.Rule{}, err
	}
	s.invalidate(ctx)
	s.logger.Info("discount rule published", slog.Int64("rule_id", rule.ID), slog.String("type", string(rule.Type)), slog.Int("version", rule.Version))
	return rule, nil
}

// Deactivate retires a rule version and invalidates the cache.
func (s *Service) Deactivate(ctx context.Context, actor shared.Principal, id int64) (pricing.Rule, error) {
	if !actor.IsAdmin() {
		return pricing.Rule{}, fmt.Errorf("%w: only admins deactivate discount rules", shared.ErrForbiddenTransition)
	}
	rule, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pricing.Rule{}, err
	}
	s.invalidate(ctx)
	return rule, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("discount cache bump", slog.Any("error", err))
	}
}

func validatePublish(in PublishInput) error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown rule type %q", shared.ErrValidation, in.Type)
	}
	if in.Percentage < 0 || in.Percentage >= 100 {
		return fmt.Errorf("%w: porcentaje must be in [0,100)", shared.ErrValidation)
	}
	switch in.Type {
	case pricing.RuleSameProductBulk:
		if in.QuantityThreshold == nil || *in.QuantityThreshold < 1 {
			return fmt.Errorf("%w: umbral_cantidad required", shared.ErrValidation)
		}
	case pricing.RuleMultiProductBasket:
		if in.ItemThreshold == nil || *in.ItemThreshold < 1 {
			return fmt.Errorf("%w: umbral_items required", shared.ErrValidation)
		}
	}
	return nil
}
