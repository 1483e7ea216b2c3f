package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/payment"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/domain/user"
)

// Rewards is the part of the loyalty engine used at confirmation.
type Rewards interface {
	Quote(ctx context.Context, userID string, total decimal.Decimal) (loyalty.PointsQuote, error)
	AwardForOrder(ctx context.Context, userID, orderID string, total decimal.Decimal, q loyalty.PointsQuote) (loyalty.Award, error)
}

// Promos validates codes and counts their use.
type Promos interface {
	promo.Validator
	promo.Redeemer
}

// Config wires a Flow to its collaborators. Rewards and Promos are optional.
type Config struct {
	ClientID string
	Cart     *cart.Store
	Payments payment.Processor
	Orders   *order.Recorder
	Rewards  Rewards
	Promos   Promos
}

// Session is a read-only view of the checkout.
type Session struct {
	ID               string
	State            State
	Address          user.Address
	Items            []cart.LineItem
	Totals           cart.Totals
	Discount         *promo.Discount
	LockedTotal      decimal.Decimal
	PaymentSubmitted bool
	LastError        string
	Receipt          *Receipt
}

// Receipt is the result of a completed confirmation.
type Receipt struct {
	Order *order.Order
	// Award is nil for guest orders.
	Award *loyalty.Award
}

// confirmation tracks the steps of the confirmation sequence so that a
// repeated or resumed call skips what already ran.
type confirmation struct {
	orderID  string
	customer order.Customer
	userID   string

	quoted   bool
	quote    loyalty.PointsQuote
	order    *order.Order
	awarded  bool
	award    *loyalty.Award
	redeemed bool
	cleared  bool
}

func (c *confirmation) done() bool {
	return c.cleared
}

// Flow is the checkout state machine of one client. All transitions happen
// under its mutex; the lock is released only while waiting for payment.
type Flow struct {
	mu  sync.Mutex
	cfg Config

	state      State
	id         string
	generation uint64

	address     user.Address
	items       []cart.LineItem
	totals      cart.Totals
	discount    *promo.Discount
	lockedTotal decimal.Decimal

	paymentSubmitted bool
	cancelPayment    context.CancelFunc
	lastError        string

	confirm *confirmation
}

// New returns a Flow in the Cart state.
func New(cfg Config) *Flow {
	return &Flow{
		cfg:         cfg,
		state:       StateCart,
		lockedTotal: decimal.Zero,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Session returns a snapshot of the checkout.
func (f *Flow) Session() Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Session{
		ID:               f.id,
		State:            f.state,
		Address:          f.address,
		Items:            cart.CloneItems(f.items),
		Totals:           f.totals,
		LockedTotal:      f.lockedTotal,
		PaymentSubmitted: f.paymentSubmitted,
		LastError:        f.lastError,
	}
	if f.discount != nil {
		d := *f.discount
		s.Discount = &d
	}
	if c := f.confirm; c != nil && c.done() {
		s.Receipt = c.receipt()
	}
	return s
}

func (c *confirmation) receipt() *Receipt {
	r := &Receipt{Order: c.order}
	if c.award != nil {
		a := *c.award
		r.Award = &a
	}
	return r
}

func (f *Flow) logger(ctx context.Context) *zap.Logger {
	return zctx.From(ctx).With(
		zap.String("client_id", f.cfg.ClientID),
		zap.String("checkout_id", f.id),
	)
}

// StartCheckout snapshots the cart and locks its grand total. From address
// capture it takes a fresh snapshot and keeps the entered address; from a
// finished session it starts a new one.
func (f *Flow) StartCheckout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StatePaymentPending:
		if f.paymentSubmitted {
			return ErrPaymentAlreadyInProgress
		}
	case StateConfirmed:
		if f.confirm != nil && !f.confirm.done() {
			return &TransitionError{Op: "start checkout", From: f.state}
		}
	}

	if err := f.cfg.Cart.Reload(ctx); err != nil {
		return errors.Wrap(err, "reload cart")
	}
	items := f.cfg.Cart.Items()
	if len(items) == 0 {
		return ErrEmptyCart
	}
	totals := cart.ComputeTotals(items, f.cfg.Cart.Pricing())

	resume := f.state == StateAddressCapture || f.state == StatePaymentPending
	if !resume {
		f.id = uuid.NewString()
		f.generation++
		f.address = user.Address{}
		f.confirm = nil
	}
	f.items = items
	f.totals = totals
	f.discount = nil
	f.lockedTotal = totals.GrandTotal
	f.lastError = ""
	f.state = StateAddressCapture

	f.logger(ctx).Info("Checkout started",
		zap.Int("lines", len(items)),
		zap.String("locked_total", f.lockedTotal.StringFixed(2)),
	)
	return nil
}

// ValidateAddress checks a and, when every field is valid, stores it and
// moves to payment. On failure nothing changes.
func (f *Flow) ValidateAddress(ctx context.Context, a user.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.state == StateAddressCapture:
	case f.state == StatePaymentPending && !f.paymentSubmitted:
	case f.state == StatePaymentPending:
		return ErrPaymentAlreadyInProgress
	default:
		return &TransitionError{Op: "validate address", From: f.state}
	}

	if err := ValidateAddress(a); err != nil {
		return err
	}
	f.address = a.Normalize()
	f.state = StatePaymentPending
	f.logger(ctx).Debug("Address accepted")
	return nil
}

// ApplyPromo validates code against the snapshot and reduces the locked
// total. The discount comes off the subtotal and tax is charged on what
// remains. A second code replaces the first.
func (f *Flow) ApplyPromo(ctx context.Context, code string) (*promo.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateAddressCapture {
		return nil, &TransitionError{Op: "apply promo", From: f.state}
	}
	if f.cfg.Promos == nil {
		return nil, promo.ErrInvalidCode
	}

	items := make([]promo.Item, len(f.items))
	for i, it := range f.items {
		items[i] = promo.Item{
			ProductID: it.ProductID,
			Price:     it.EffectiveUnitPrice(),
			Quantity:  it.Quantity,
		}
	}
	d, err := f.cfg.Promos.Validate(ctx, code, items)
	if err != nil {
		return nil, err
	}

	f.discount = d
	f.totals = f.totals.Discounted(d.Amount, f.cfg.Cart.Pricing())
	f.lockedTotal = f.totals.GrandTotal
	f.logger(ctx).Info("Promo applied",
		zap.String("code", d.Code),
		zap.String("discount", d.Amount.StringFixed(2)),
	)
	out := *d
	return &out, nil
}

// SubmitPayment charges the locked total and, on success, runs the
// confirmation sequence. customer is nil for guests.
//
// The submitted flag is set before the processor is called, so a concurrent
// submission gets ErrPaymentAlreadyInProgress. A result arriving after the
// session was abandoned or restarted is discarded.
func (f *Flow) SubmitPayment(ctx context.Context, customer *user.User) (*Receipt, error) {
	f.mu.Lock()
	if f.state != StatePaymentPending {
		st := f.state
		f.mu.Unlock()
		return nil, &TransitionError{Op: "submit payment", From: st}
	}
	if f.paymentSubmitted {
		f.mu.Unlock()
		return nil, ErrPaymentAlreadyInProgress
	}
	f.paymentSubmitted = true
	generation := f.generation
	req := payment.Request{SessionID: f.id, Amount: f.lockedTotal}
	payCtx, cancel := context.WithCancel(ctx)
	f.cancelPayment = cancel
	lg := f.logger(ctx)
	f.mu.Unlock()

	lg.Info("Payment submitted", zap.String("amount", req.Amount.StringFixed(2)))
	outcome := f.cfg.Payments.Submit(payCtx, req)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != generation || f.state != StatePaymentPending {
		lg.Info("Discarding stale payment result", zap.Bool("success", outcome.Success))
		return nil, &TransitionError{Op: "complete payment", From: f.state}
	}
	f.cancelPayment = nil

	switch {
	case outcome.Success:
	case outcome.Cancelled:
		f.paymentSubmitted = false
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	default:
		f.paymentSubmitted = false
		f.state = StateAddressCapture
		f.lastError = outcome.Reason
		lg.Warn("Payment failed", zap.String("reason", outcome.Reason))
		return nil, &PaymentError{Reason: outcome.Reason}
	}

	f.state = StateConfirmed
	f.lastError = ""
	f.confirm = &confirmation{
		orderID:  order.NewID(),
		customer: customerOf(customer, f.address),
	}
	if customer != nil {
		f.confirm.userID = customer.ID
	}
	lg.Info("Payment succeeded", zap.String("transaction_id", outcome.TransactionID))

	return f.runConfirmation(ctx)
}

func customerOf(u *user.User, a user.Address) order.Customer {
	c := order.Customer{
		Name:    a.FullName,
		Email:   a.Email,
		Phone:   a.Phone,
		Address: a,
	}
	if u != nil {
		c.UserID = u.ID
		if u.Name != "" {
			c.Name = u.Name
		}
		if u.Email != "" {
			c.Email = u.Email
		}
	}
	return c
}

// Confirm runs the confirmation sequence of a confirmed session. Steps that
// already completed are skipped, so calling Confirm again after success is a
// no-op returning the same receipt, and calling it after a failed step
// resumes from that step.
func (f *Flow) Confirm(ctx context.Context) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirmed || f.confirm == nil {
		return nil, &TransitionError{Op: "confirm", From: f.state}
	}
	return f.runConfirmation(ctx)
}

// runConfirmation records the order, awards points and clears the cart, in
// that order. Points are quoted once from the locked total and the order
// and the award both carry that quote. Must be called with f.mu held.
func (f *Flow) runConfirmation(ctx context.Context) (*Receipt, error) {
	c := f.confirm
	if c.done() {
		return c.receipt(), nil
	}
	lg := f.logger(ctx).With(zap.String("order_id", c.orderID))
	rewards := f.cfg.Rewards
	if c.userID == "" {
		rewards = nil
	}

	if !c.quoted {
		if rewards != nil {
			q, err := rewards.Quote(ctx, c.userID, f.lockedTotal)
			if err != nil {
				return nil, errors.Wrap(err, "quote points")
			}
			c.quote = q
		}
		c.quoted = true
	}

	if c.order == nil {
		d := order.Draft{
			ID:           c.orderID,
			ClientID:     f.cfg.ClientID,
			Items:        f.items,
			Totals:       f.totals,
			Discount:     decimal.Zero,
			GrandTotal:   f.lockedTotal,
			PointsEarned: c.quote.Points,
			Customer:     c.customer,
		}
		if f.discount != nil {
			d.Discount = f.discount.Amount
			d.PromoCode = f.discount.Code
		}
		o, err := f.cfg.Orders.Record(ctx, d)
		if err != nil {
			return nil, errors.Wrap(err, "record order")
		}
		c.order = o
	}

	if !c.awarded {
		if rewards != nil {
			award, err := rewards.AwardForOrder(ctx, c.userID, c.orderID, f.lockedTotal, c.quote)
			if err != nil && !errors.Is(err, loyalty.ErrAlreadyAwarded) {
				return nil, errors.Wrap(err, "award points")
			}
			c.award = &award
		}
		c.awarded = true
	}

	if !c.redeemed {
		if f.discount != nil && f.cfg.Promos != nil {
			err := f.cfg.Promos.Redeem(ctx, f.discount.Code)
			switch {
			case err == nil:
			case errors.Is(err, promo.ErrUsageLimitReached), errors.Is(err, promo.ErrInvalidCode):
				// The charge already went through with the discount.
				lg.Warn("Promo not counted", zap.String("code", f.discount.Code), zap.Error(err))
			default:
				return nil, errors.Wrap(err, "redeem promo")
			}
		}
		c.redeemed = true
	}

	if err := f.cfg.Cart.Clear(ctx); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	c.cleared = true

	lg.Info("Checkout confirmed", zap.Int64("points_earned", c.quote.Points))
	return c.receipt(), nil
}

// Abandon ends the session without side effects. An in-flight payment is
// cancelled and its result discarded.
func (f *Flow) Abandon(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateConfirmed, StateAbandoned:
		return &TransitionError{Op: "abandon", From: f.state}
	}
	if f.cancelPayment != nil {
		f.cancelPayment()
		f.cancelPayment = nil
	}
	f.generation++
	f.paymentSubmitted = false
	f.state = StateAbandoned
	f.logger(ctx).Info("Checkout abandoned")
	return nil
}
