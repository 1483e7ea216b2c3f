package handler

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/checkout"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/jsonx"
	"github.com/xenking/acidic-storefront/internal/storefront"
)

func encodeMoney(e *jx.Encoder, name string, v decimal.Decimal) {
	e.FieldStart(name)
	jsonx.EncodeDecimal(e, v)
}

func (h *Handler) encodeTotals(e *jx.Encoder, t cart.Totals) {
	e.ObjStart()
	encodeMoney(e, "subtotal", t.Subtotal)
	encodeMoney(e, "deliveryFee", t.DeliveryFee)
	encodeMoney(e, "tax", t.Tax)
	encodeMoney(e, "grandTotal", t.GrandTotal)
	e.FieldStart("itemCount")
	e.Int(t.ItemCount)
	e.FieldStart("display")
	e.Str(h.format.Format(t.GrandTotal))
	e.ObjEnd()
}

func (h *Handler) encodeCart(e *jx.Encoder, v *storefront.CartView) {
	e.ObjStart()
	e.FieldStart("items")
	cart.EncodeItems(e, v.Items)
	e.FieldStart("totals")
	h.encodeTotals(e, v.Totals)
	e.ObjEnd()
}

func (h *Handler) encodeSession(e *jx.Encoder, s *checkout.Session) {
	e.ObjStart()
	if s.ID != "" {
		e.FieldStart("id")
		e.Str(s.ID)
	}
	e.FieldStart("state")
	e.Str(s.State.String())
	e.FieldStart("address")
	s.Address.Encode(e)
	e.FieldStart("items")
	cart.EncodeItems(e, s.Items)
	e.FieldStart("totals")
	h.encodeTotals(e, s.Totals)
	if s.Discount != nil {
		e.FieldStart("discount")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(s.Discount.Code)
		encodeMoney(e, "amount", s.Discount.Amount)
		e.FieldStart("description")
		e.Str(s.Discount.Description)
		e.ObjEnd()
	}
	encodeMoney(e, "lockedTotal", s.LockedTotal)
	e.FieldStart("paymentSubmitted")
	e.Bool(s.PaymentSubmitted)
	if s.LastError != "" {
		e.FieldStart("lastError")
		e.Str(s.LastError)
	}
	if s.Receipt != nil {
		e.FieldStart("receipt")
		encodeReceipt(e, s.Receipt)
	}
	e.ObjEnd()
}

func encodeReceipt(e *jx.Encoder, r *checkout.Receipt) {
	e.ObjStart()
	e.FieldStart("order")
	r.Order.Encode(e)
	if r.Award != nil {
		e.FieldStart("award")
		encodeAward(e, *r.Award)
	}
	e.ObjEnd()
}

func encodeAward(e *jx.Encoder, a loyalty.Award) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(a.OrderID)
	e.FieldStart("earned")
	e.Int64(a.Earned)
	e.FieldStart("newPoints")
	e.Int64(a.NewPoints)
	e.FieldStart("previousTier")
	e.Str(a.PreviousTier.String())
	e.FieldStart("newTier")
	e.Str(a.NewTier.String())
	e.FieldStart("tierChanged")
	e.Bool(a.TierChanged)
	e.ObjEnd()
}

func encodeLoyalty(e *jx.Encoder, v *storefront.LoyaltyView) {
	e.ObjStart()
	e.FieldStart("profile")
	v.Profile.Encode(e)
	e.FieldStart("progress")
	e.ObjStart()
	if v.Progress.Next != loyalty.TierNone {
		e.FieldStart("nextTier")
		e.Str(v.Progress.Next.String())
	}
	e.FieldStart("pointsNeeded")
	e.Int64(v.Progress.PointsNeeded)
	e.ObjEnd()
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		orders[i].Encode(e)
	}
	e.ArrEnd()
}

func encodeStrings(e *jx.Encoder, s []string) {
	e.ArrStart()
	for _, v := range s {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	jsonx.EncodeDecimal(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("images")
	encodeStrings(e, p.Images)
	e.FieldStart("variants")
	e.ObjStart()
	e.FieldStart("colors")
	encodeStrings(e, p.Variants.Colors)
	e.FieldStart("sizes")
	encodeStrings(e, p.Variants.Sizes)
	e.ObjEnd()
	e.ObjEnd()
}
