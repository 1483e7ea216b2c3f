package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks a code against items without consuming a use.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item) (*Discount, error)
}

// Redeemer consumes one use of a code.
type Redeemer interface {
	Redeem(ctx context.Context, code string) error
}

// Service validates codes against a Repository. Uses are counted only by
// Redeem, once the order they were applied to is confirmed.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService returns a Service over repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Validate looks up code, checks its validity window and remaining uses and
// applies it to items.
func (s *Service) Validate(ctx context.Context, code string, items []Item) (*Discount, error) {
	rule, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup promo")
	}

	now := s.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem counts one use of code.
func (s *Service) Redeem(ctx context.Context, code string) error {
	if err := s.repo.IncrementUses(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "increment promo uses")
	}
	return nil
}
