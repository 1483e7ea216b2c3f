package order

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/jsonx"
)

// EventOrderPlaced is the type tag of the event published for a new order.
const EventOrderPlaced = "OrderPlaced"

// Encode writes o as a JSON object.
func (o *Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	cart.EncodeItems(e, o.Items)
	e.FieldStart("subtotal")
	jsonx.EncodeDecimal(e, o.Subtotal)
	e.FieldStart("deliveryFee")
	jsonx.EncodeDecimal(e, o.DeliveryFee)
	e.FieldStart("tax")
	jsonx.EncodeDecimal(e, o.Tax)
	e.FieldStart("discount")
	jsonx.EncodeDecimal(e, o.Discount)
	e.FieldStart("grandTotal")
	jsonx.EncodeDecimal(e, o.GrandTotal)
	if o.PromoCode != "" {
		e.FieldStart("promoCode")
		e.Str(o.PromoCode)
	}
	e.FieldStart("pointsEarned")
	e.Int64(o.PointsEarned)
	e.FieldStart("customer")
	o.Customer.encode(e)
	e.FieldStart("createdAt")
	jsonx.EncodeTime(e, o.CreatedAt)
	e.ObjEnd()
}

func (c Customer) encode(e *jx.Encoder) {
	e.ObjStart()
	if c.UserID != "" {
		e.FieldStart("userId")
		e.Str(c.UserID)
	}
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("email")
	e.Str(c.Email)
	e.FieldStart("phone")
	e.Str(c.Phone)
	e.FieldStart("address")
	c.Address.Encode(e)
	e.ObjEnd()
}

// Decode reads o from a JSON object.
func (o *Order) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "status":
			var s string
			s, err = d.Str()
			o.Status = Status(s)
		case "items":
			o.Items, err = cart.DecodeItems(d)
		case "subtotal":
			o.Subtotal, err = jsonx.DecodeDecimal(d)
		case "deliveryFee":
			o.DeliveryFee, err = jsonx.DecodeDecimal(d)
		case "tax":
			o.Tax, err = jsonx.DecodeDecimal(d)
		case "discount":
			o.Discount, err = jsonx.DecodeDecimal(d)
		case "grandTotal":
			o.GrandTotal, err = jsonx.DecodeDecimal(d)
		case "promoCode":
			o.PromoCode, err = d.Str()
		case "pointsEarned":
			o.PointsEarned, err = d.Int64()
		case "customer":
			err = o.Customer.decode(d)
		case "createdAt":
			o.CreatedAt, err = jsonx.DecodeTime(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
}

func (c *Customer) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			c.UserID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "address":
			err = c.Address.Decode(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// EncodeEvent returns the OrderPlaced event payload of o.
func EncodeEvent(o *Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str(EventOrderPlaced)
	e.FieldStart("order")
	o.Encode(&e)
	e.ObjEnd()
	return e.Bytes()
}

// DecodeEvent parses an OrderPlaced payload.
func DecodeEvent(data []byte) (*Order, error) {
	var (
		o   Order
		typ string
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			var err error
			typ, err = d.Str()
			return err
		case "order":
			return o.Decode(d)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if typ != EventOrderPlaced {
		return nil, errors.Errorf("unexpected event type %q", typ)
	}
	return &o, nil
}
