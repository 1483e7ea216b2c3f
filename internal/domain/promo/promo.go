// Package promo applies promotional codes to a checkout subtotal.
package promo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest waives one unit of the cheapest line.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidCode is returned for unknown codes and carts that do not meet
	// the rule's minimum item count.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrExpired is returned outside the rule's validity window.
	ErrExpired = errors.New("promo code expired")
	// ErrUsageLimitReached is returned when the code has no uses left.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule is a promo code definition.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
	// MaxDiscount of zero means uncapped.
	MaxDiscount decimal.Decimal
}

// Discount is the computed reduction of a subtotal.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item is a cart line as seen by discount rules.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository stores promo rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// NormalizeCode canonicalizes user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ Repository = (*Memory)(nil)

// Memory is an in-process Repository.
type Memory struct {
	mu    sync.Mutex
	rules map[string]Rule
}

// NewMemory returns a Memory holding rules.
func NewMemory(rules ...Rule) *Memory {
	m := &Memory{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		m.rules[NormalizeCode(r.Code)] = r
	}
	return m
}

// FindByCode implements Repository.
func (m *Memory) FindByCode(_ context.Context, code string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[NormalizeCode(code)]
	if !ok {
		return nil, ErrInvalidCode
	}
	return &r, nil
}

// IncrementUses implements Repository.
func (m *Memory) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := NormalizeCode(code)
	r, ok := m.rules[key]
	if !ok {
		return ErrInvalidCode
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrUsageLimitReached
	}
	r.Uses++
	m.rules[key] = r
	return nil
}
