package loyalty

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultWelcomeBonus is granted once per profile.
const DefaultWelcomeBonus int64 = 100

var (
	// ErrProfileNotFound is returned by ProfileStore.Load for unknown users.
	ErrProfileNotFound = errors.New("loyalty profile not found")
	// ErrAlreadyAwarded is returned when an order was credited before.
	ErrAlreadyAwarded = errors.New("order already awarded")
)

// ProfileStore is the user profile boundary.
type ProfileStore interface {
	Load(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
}

// Engine applies rewards operations to stored profiles. Each operation is a
// load-apply-save cycle serialized by the engine.
type Engine struct {
	mu           sync.Mutex
	store        ProfileStore
	welcomeBonus int64
	now          func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWelcomeBonus overrides DefaultWelcomeBonus.
func WithWelcomeBonus(points int64) EngineOption {
	return func(e *Engine) { e.welcomeBonus = points }
}

// WithClock overrides the clock stamping transactions.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine over store.
func NewEngine(store ProfileStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		welcomeBonus: DefaultWelcomeBonus,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) load(ctx context.Context, userID string) (Profile, bool, error) {
	p, err := e.store.Load(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return NewProfile(userID), false, nil
	}
	if err != nil {
		return Profile{}, false, errors.Wrap(err, "load profile")
	}
	return *p, true, nil
}

func (e *Engine) save(ctx context.Context, p Profile) error {
	if err := e.store.Save(ctx, &p); err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}

// InitProfile creates the profile of userID on first call and grants the
// welcome bonus. Later calls return the stored profile unchanged.
func (e *Engine) InitProfile(ctx context.Context, userID string) (*Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, exists, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, granted := GrantWelcome(p, e.welcomeBonus, e.now().UTC())
	if exists && !granted {
		return &p, nil
	}
	if err := e.save(ctx, next); err != nil {
		return nil, err
	}
	if granted {
		zctx.From(ctx).Info("Welcome bonus granted",
			zap.String("user_id", userID),
			zap.Int64("points", e.welcomeBonus),
		)
	}
	return &next, nil
}

// Profile returns the stored profile of userID or ErrProfileNotFound.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	return e.store.Load(ctx, userID)
}

// Quote fixes the points an order of total earns for userID at the current
// tier. The order is later credited with exactly this quote.
func (e *Engine) Quote(ctx context.Context, userID string, total decimal.Decimal) (PointsQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, _, err := e.load(ctx, userID)
	if err != nil {
		return PointsQuote{}, err
	}
	return QuoteFor(p, total), nil
}

// AwardForOrder credits orderID to userID with the points of q. A second call
// for the same order returns the original award together with
// ErrAlreadyAwarded and leaves the profile untouched.
func (e *Engine) AwardForOrder(ctx context.Context, userID, orderID string, total decimal.Decimal, q PointsQuote) (Award, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, _, err := e.load(ctx, userID)
	if err != nil {
		return Award{}, err
	}
	if tx, ok := p.EarnedFor(orderID); ok {
		return Award{
			OrderID:      orderID,
			Earned:       tx.Points,
			NewPoints:    p.Points,
			PreviousTier: tx.TierAtTime,
			NewTier:      p.Tier,
			TierChanged:  tx.TierAtTime != p.Tier,
		}, ErrAlreadyAwarded
	}

	next, award := AwardQuoted(p, orderID, total, q, e.now().UTC())
	if err := e.save(ctx, next); err != nil {
		return Award{}, err
	}

	lg := zctx.From(ctx)
	lg.Info("Points awarded",
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.Int64("earned", award.Earned),
		zap.Int64("balance", award.NewPoints),
	)
	if award.TierChanged {
		lg.Info("Tier changed",
			zap.String("user_id", userID),
			zap.Stringer("from", award.PreviousTier),
			zap.Stringer("to", award.NewTier),
		)
	}
	return award, nil
}

// Redeem debits points from userID.
func (e *Engine) Redeem(ctx context.Context, userID string, points int64, reason string) (*Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, exists, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProfileNotFound
	}
	next, err := RedeemPoints(p, points, reason, e.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, next); err != nil {
		return nil, err
	}
	return &next, nil
}
