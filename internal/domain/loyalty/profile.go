package loyalty

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/jsonx"
)

var (
	// ErrInsufficientPoints is returned when redeeming more than the balance.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidPoints is returned for non-positive redemptions.
	ErrInvalidPoints = errors.New("points must be greater than 0")
)

// TransactionType classifies a RewardTransaction.
type TransactionType string

// Transaction types.
const (
	TransactionEarned   TransactionType = "earned"
	TransactionWelcome  TransactionType = "welcome"
	TransactionRedeemed TransactionType = "redeemed"
)

// Transaction is an append-only entry of the reward log. Points is negative
// for redemptions.
type Transaction struct {
	Type       TransactionType
	Points     int64
	OrderID    string
	Reason     string
	Timestamp  time.Time
	TierAtTime Tier
}

// Profile is a user's loyalty state.
type Profile struct {
	UserID         string
	Points         int64
	Tier           Tier
	TotalSpent     decimal.Decimal
	Transactions   []Transaction
	LastPurchaseAt time.Time
}

// NewProfile returns an empty Bronze profile.
func NewProfile(userID string) Profile {
	return Profile{
		UserID:     userID,
		Tier:       TierBronze,
		TotalSpent: decimal.Zero,
	}
}

// Clone returns a copy that shares no slice with p.
func (p Profile) Clone() Profile {
	c := p
	c.Transactions = append([]Transaction(nil), p.Transactions...)
	return c
}

// HasWelcome reports whether the signup bonus was already granted.
func (p Profile) HasWelcome() bool {
	for _, tx := range p.Transactions {
		if tx.Type == TransactionWelcome {
			return true
		}
	}
	return false
}

// EarnedFor returns the transaction awarding orderID, if any.
func (p Profile) EarnedFor(orderID string) (Transaction, bool) {
	for _, tx := range p.Transactions {
		if tx.Type == TransactionEarned && tx.OrderID == orderID {
			return tx, true
		}
	}
	return Transaction{}, false
}

// Award is the result of crediting an order.
type Award struct {
	OrderID      string
	Earned       int64
	NewPoints    int64
	PreviousTier Tier
	NewTier      Tier
	TierChanged  bool
}

// PointsFor returns the points an order of total earns at tier t.
func PointsFor(t Tier, total decimal.Decimal) int64 {
	return money.FloorPoints(total, Multiplier(t))
}

// PointsQuote is the award of an order fixed at quoting time.
type PointsQuote struct {
	Tier   Tier
	Points int64
}

// QuoteFor returns the points an order of total earns at the current tier
// of p.
func QuoteFor(p Profile, total decimal.Decimal) PointsQuote {
	return PointsQuote{Tier: p.Tier, Points: PointsFor(p.Tier, total)}
}

// AwardForOrder credits an order of total to p. The multiplier is that of the
// tier held before the order.
func AwardForOrder(p Profile, orderID string, total decimal.Decimal, at time.Time) (Profile, Award) {
	return AwardQuoted(p, orderID, total, QuoteFor(p, total), at)
}

// AwardQuoted credits exactly q.Points for an order of total, whatever the
// tier of p is by now. The transaction records the quoted tier.
func AwardQuoted(p Profile, orderID string, total decimal.Decimal, q PointsQuote, at time.Time) (Profile, Award) {
	next := p.Clone()
	next.Points = p.Points + q.Points
	next.Tier = TierForPoints(next.Points)
	next.TotalSpent = p.TotalSpent.Add(total)
	next.LastPurchaseAt = at
	next.Transactions = append(next.Transactions, Transaction{
		Type:       TransactionEarned,
		Points:     q.Points,
		OrderID:    orderID,
		Timestamp:  at,
		TierAtTime: q.Tier,
	})

	return next, Award{
		OrderID:      orderID,
		Earned:       q.Points,
		NewPoints:    next.Points,
		PreviousTier: p.Tier,
		NewTier:      next.Tier,
		TierChanged:  next.Tier != p.Tier,
	}
}

// GrantWelcome credits the signup bonus unless it was granted before.
// Reports whether p changed.
func GrantWelcome(p Profile, bonus int64, at time.Time) (Profile, bool) {
	if p.HasWelcome() || bonus <= 0 {
		return p, false
	}
	next := p.Clone()
	next.Points = p.Points + bonus
	next.Tier = TierForPoints(next.Points)
	next.Transactions = append(next.Transactions, Transaction{
		Type:       TransactionWelcome,
		Points:     bonus,
		Timestamp:  at,
		TierAtTime: p.Tier,
	})
	return next, true
}

// RedeemPoints debits points from p. The tier is recomputed and may drop.
func RedeemPoints(p Profile, points int64, reason string, at time.Time) (Profile, error) {
	if points <= 0 {
		return p, ErrInvalidPoints
	}
	if points > p.Points {
		return p, errors.Wrapf(ErrInsufficientPoints, "have %d, want %d", p.Points, points)
	}
	next := p.Clone()
	next.Points = p.Points - points
	next.Tier = TierForPoints(next.Points)
	next.Transactions = append(next.Transactions, Transaction{
		Type:       TransactionRedeemed,
		Points:     -points,
		Reason:     reason,
		Timestamp:  at,
		TierAtTime: p.Tier,
	})
	return next, nil
}

// Encode writes p as a JSON object.
func (p Profile) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("userId")
	e.Str(p.UserID)
	e.FieldStart("points")
	e.Int64(p.Points)
	e.FieldStart("tier")
	e.Str(string(p.Tier))
	e.FieldStart("totalSpent")
	jsonx.EncodeDecimal(e, p.TotalSpent)
	if !p.LastPurchaseAt.IsZero() {
		e.FieldStart("lastPurchaseAt")
		jsonx.EncodeTime(e, p.LastPurchaseAt)
	}
	e.FieldStart("transactions")
	e.ArrStart()
	for _, tx := range p.Transactions {
		tx.Encode(e)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads p from a JSON object. The stored tier is ignored and
// recomputed from the balance.
func (p *Profile) Decode(d *jx.Decoder) error {
	*p = NewProfile("")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			p.UserID, err = d.Str()
		case "points":
			p.Points, err = d.Int64()
		case "totalSpent":
			p.TotalSpent, err = jsonx.DecodeDecimal(d)
		case "lastPurchaseAt":
			p.LastPurchaseAt, err = jsonx.DecodeTime(d)
		case "transactions":
			err = d.Arr(func(d *jx.Decoder) error {
				var tx Transaction
				if err := tx.Decode(d); err != nil {
					return err
				}
				p.Transactions = append(p.Transactions, tx)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Tier = TierForPoints(p.Points)
	return nil
}

// Encode writes tx as a JSON object.
func (tx Transaction) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(tx.Type))
	e.FieldStart("points")
	e.Int64(tx.Points)
	if tx.OrderID != "" {
		e.FieldStart("orderId")
		e.Str(tx.OrderID)
	}
	if tx.Reason != "" {
		e.FieldStart("reason")
		e.Str(tx.Reason)
	}
	e.FieldStart("timestamp")
	jsonx.EncodeTime(e, tx.Timestamp)
	e.FieldStart("tierAtTime")
	e.Str(string(tx.TierAtTime))
	e.ObjEnd()
}

// Decode reads tx from a JSON object.
func (tx *Transaction) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			var s string
			s, err = d.Str()
			tx.Type = TransactionType(s)
		case "points":
			tx.Points, err = d.Int64()
		case "orderId":
			tx.OrderID, err = d.Str()
		case "reason":
			tx.Reason, err = d.Str()
		case "timestamp":
			tx.Timestamp, err = jsonx.DecodeTime(d)
		case "tierAtTime":
			var s string
			s, err = d.Str()
			tx.TierAtTime = Tier(s)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
}
