// Package storefront owns the per-client shopping sessions and exposes the
// operations the HTTP layer dispatches to.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/checkout"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/payment"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/domain/user"
	"github.com/xenking/acidic-storefront/internal/state"
)

var (
	// ErrNotSignedIn is returned by operations that need a current user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidUser is returned when signing in without a user ID.
	ErrInvalidUser = errors.New("user id required")
)

// Deps are the collaborators of a Service. Promos is optional.
type Deps struct {
	State    state.Store
	Catalog  product.Repository
	Orders   order.Repository
	Recorder *order.Recorder
	Loyalty  *loyalty.Engine
	Promos   *promo.Service
	Payments payment.Processor
	Pricing  cart.Pricing
	Metrics  *Metrics
}

// Session is the cart and checkout of one client.
type Session struct {
	ClientID string
	Cart     *cart.Store
	Checkout *checkout.Flow

	lastSeen time.Time
}

// Service routes client requests to their sessions.
type Service struct {
	deps    Deps
	catalog *sharedCatalog
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	opening  singleflight.Group
}

// New returns a Service over deps.
func New(deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics()
	}
	return &Service{
		deps:     deps,
		catalog:  &sharedCatalog{next: deps.Catalog},
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session of clientID, restoring its cart from storage
// on first use. Concurrent first requests of one client share a single open;
// other clients are not held up by it.
func (s *Service) Session(ctx context.Context, clientID string) (*Session, error) {
	if sess, ok := s.lookup(clientID); ok {
		return sess, nil
	}
	v, err, _ := s.opening.Do(clientID, func() (any, error) {
		if sess, ok := s.lookup(clientID); ok {
			return sess, nil
		}
		sess, err := s.open(ctx, clientID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.sessions[clientID]; ok {
			return existing, nil
		}
		s.sessions[clientID] = sess
		zctx.From(ctx).Debug("Session opened", zap.String("client_id", clientID))
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *Service) lookup(clientID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[clientID]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

func (s *Service) open(ctx context.Context, clientID string) (*Session, error) {
	store, err := cart.Open(ctx, cart.NewStateStorage(s.deps.State, clientID), s.deps.Pricing)
	if err != nil {
		return nil, errors.Wrap(err, "open cart")
	}
	cfg := checkout.Config{
		ClientID: clientID,
		Cart:     store,
		Payments: s.deps.Payments,
		Orders:   s.deps.Recorder,
		Rewards:  s.deps.Loyalty,
	}
	if s.deps.Promos != nil {
		cfg.Promos = s.deps.Promos
	}
	return &Session{
		ClientID: clientID,
		Cart:     store,
		Checkout: checkout.New(cfg),
		lastSeen: s.now(),
	}, nil
}

// Sweep drops sessions idle for longer than idle. Carts stay in storage; an
// unfinished checkout is lost unless its payment is in flight.
func (s *Service) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	var n int
	for id, sess := range s.sessions {
		if sess.lastSeen.After(cutoff) {
			continue
		}
		cs := sess.Checkout.Session()
		if cs.PaymentSubmitted || (cs.State == checkout.StateConfirmed && cs.Receipt == nil) {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	return n
}

// CurrentUser returns the signed-in user of clientID, or nil for guests.
func (s *Service) CurrentUser(ctx context.Context, clientID string) (*user.User, error) {
	data, err := s.deps.State.Get(ctx, clientID, state.KeyCurrentUser)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get current user")
	}
	var u user.User
	if err := u.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "decode current user")
	}
	return &u, nil
}

// SignIn binds u to clientID and initializes the loyalty profile. The
// welcome bonus is granted only on the first sign-in of the user.
func (s *Service) SignIn(ctx context.Context, clientID string, u user.User) (*loyalty.Profile, error) {
	if u.ID == "" {
		return nil, ErrInvalidUser
	}
	var e jx.Encoder
	u.Encode(&e)
	if err := s.deps.State.Set(ctx, clientID, state.KeyCurrentUser, e.Bytes()); err != nil {
		return nil, errors.Wrap(err, "set current user")
	}
	p, err := s.deps.Loyalty.InitProfile(ctx, u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "init profile")
	}
	zctx.From(ctx).Info("Signed in",
		zap.String("client_id", clientID),
		zap.String("user_id", u.ID),
	)
	return p, nil
}

// SignOut unbinds the current user of clientID.
func (s *Service) SignOut(ctx context.Context, clientID string) error {
	if err := s.deps.State.Delete(ctx, clientID, state.KeyCurrentUser); err != nil {
		return errors.Wrap(err, "delete current user")
	}
	return nil
}

// CartView is the cart as presented to clients.
type CartView struct {
	Items  []cart.LineItem
	Totals cart.Totals
}

func viewOf(store *cart.Store) *CartView {
	return &CartView{Items: store.Items(), Totals: store.Totals()}
}

// Cart returns the cart of clientID.
func (s *Service) Cart(ctx context.Context, clientID string) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := sess.Cart.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "reload cart")
	}
	return viewOf(sess.Cart), nil
}

// AddItemRequest describes a product to put in the cart.
type AddItemRequest struct {
	ProductID        string
	Color            string
	Size             string
	Quantity         int
	Customized       bool
	CustomizationFee decimal.Decimal
}

// AddItem looks the product up in the catalog and adds it to the cart.
func (s *Service) AddItem(ctx context.Context, clientID string, req AddItemRequest) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	v := cart.Variant{Color: req.Color, Size: req.Size}
	if req.Customized {
		err = sess.Cart.AddCustomizedItem(ctx, *p, v, req.Quantity, req.CustomizationFee)
	} else {
		err = sess.Cart.AddItem(ctx, *p, v, req.Quantity)
	}
	if err != nil {
		return nil, err
	}
	return viewOf(sess.Cart), nil
}

// SetQuantity changes the quantity of a cart line. Zero removes it.
func (s *Service) SetQuantity(ctx context.Context, clientID string, index, qty int) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := sess.Cart.SetQuantity(ctx, index, qty); err != nil {
		return nil, err
	}
	return viewOf(sess.Cart), nil
}

// RemoveItem removes a cart line.
func (s *Service) RemoveItem(ctx context.Context, clientID string, index int) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := sess.Cart.RemoveItem(ctx, index); err != nil {
		return nil, err
	}
	return viewOf(sess.Cart), nil
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context, clientID string) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := sess.Cart.Clear(ctx); err != nil {
		return nil, err
	}
	return viewOf(sess.Cart), nil
}

// RefreshCart updates cart lines from the catalog.
func (s *Service) RefreshCart(ctx context.Context, clientID string) (*CartView, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	changed, err := sess.Cart.Refresh(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	if changed > 0 {
		zctx.From(ctx).Info("Cart refreshed",
			zap.String("client_id", clientID),
			zap.Int("changed", changed),
		)
	}
	return viewOf(sess.Cart), nil
}

// Checkout returns the checkout session of clientID.
func (s *Service) Checkout(ctx context.Context, clientID string) (*checkout.Session, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	cs := sess.Checkout.Session()
	return &cs, nil
}

func (s *Service) withCheckout(ctx context.Context, clientID string, fn func(f *checkout.Flow) error) (*checkout.Session, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess.Checkout); err != nil {
		return nil, err
	}
	cs := sess.Checkout.Session()
	return &cs, nil
}

// StartCheckout begins checkout with the current cart.
func (s *Service) StartCheckout(ctx context.Context, clientID string) (*checkout.Session, error) {
	return s.withCheckout(ctx, clientID, func(f *checkout.Flow) error {
		return f.StartCheckout(ctx)
	})
}

// SubmitAddress validates the shipping address.
func (s *Service) SubmitAddress(ctx context.Context, clientID string, a user.Address) (*checkout.Session, error) {
	return s.withCheckout(ctx, clientID, func(f *checkout.Flow) error {
		return f.ValidateAddress(ctx, a)
	})
}

// ApplyPromo applies a promo code to the checkout.
func (s *Service) ApplyPromo(ctx context.Context, clientID, code string) (*checkout.Session, error) {
	return s.withCheckout(ctx, clientID, func(f *checkout.Flow) error {
		_, err := f.ApplyPromo(ctx, code)
		return err
	})
}

// SubmitPayment pays for the checkout as the current user, or as a guest
// when nobody is signed in.
func (s *Service) SubmitPayment(ctx context.Context, clientID string) (*checkout.Receipt, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	u, err := s.CurrentUser(ctx, clientID)
	if err != nil {
		return nil, err
	}

	receipt, err := sess.Checkout.SubmitPayment(ctx, u)
	switch {
	case err == nil:
		s.deps.Metrics.payment(ctx, "success")
		var points int64
		if receipt.Award != nil {
			points = receipt.Award.Earned
		}
		s.deps.Metrics.order(ctx, receipt.Order.Customer.Guest(), points)
	case errors.Is(err, checkout.ErrPaymentFailed):
		s.deps.Metrics.payment(ctx, "failure")
	case errors.Is(err, checkout.ErrPaymentAlreadyInProgress):
		s.deps.Metrics.payment(ctx, "duplicate")
	}
	return receipt, err
}

// ConfirmOrder reruns the confirmation sequence of a confirmed checkout.
func (s *Service) ConfirmOrder(ctx context.Context, clientID string) (*checkout.Receipt, error) {
	sess, err := s.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return sess.Checkout.Confirm(ctx)
}

// AbandonCheckout cancels the checkout.
func (s *Service) AbandonCheckout(ctx context.Context, clientID string) (*checkout.Session, error) {
	return s.withCheckout(ctx, clientID, func(f *checkout.Flow) error {
		return f.Abandon(ctx)
	})
}

// LoyaltyView is a profile with its distance to the next tier.
type LoyaltyView struct {
	Profile  loyalty.Profile
	Progress loyalty.Progress
}

func (s *Service) currentUserID(ctx context.Context, clientID string) (string, error) {
	u, err := s.CurrentUser(ctx, clientID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNotSignedIn
	}
	return u.ID, nil
}

// Loyalty returns the profile of the current user.
func (s *Service) Loyalty(ctx context.Context, clientID string) (*LoyaltyView, error) {
	userID, err := s.currentUserID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	p, err := s.deps.Loyalty.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LoyaltyView{Profile: *p, Progress: loyalty.ProgressToNextTier(p.Points)}, nil
}

// RedeemPoints debits points from the current user.
func (s *Service) RedeemPoints(ctx context.Context, clientID string, points int64, reason string) (*LoyaltyView, error) {
	userID, err := s.currentUserID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	p, err := s.deps.Loyalty.Redeem(ctx, userID, points, reason)
	if err != nil {
		return nil, err
	}
	return &LoyaltyView{Profile: *p, Progress: loyalty.ProgressToNextTier(p.Points)}, nil
}

// Orders returns the order history of the current user, or of the client
// for guests. Newest first.
func (s *Service) Orders(ctx context.Context, clientID string) ([]order.Order, error) {
	u, err := s.CurrentUser(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return s.deps.Orders.ListByUser(ctx, u.ID)
	}
	return s.deps.Orders.ListByClient(ctx, clientID)
}

// Products lists the catalog.
func (s *Service) Products(ctx context.Context) ([]product.Product, error) {
	return s.deps.Catalog.List(ctx)
}

// Product returns one catalog entry.
func (s *Service) Product(ctx context.Context, id string) (*product.Product, error) {
	return s.catalog.GetByID(ctx, id)
}
