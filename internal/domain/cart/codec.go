package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/jsonx"
)

// SchemaVersion of the persisted cart document.
const SchemaVersion = 2

// EncodeLineItem writes l as a JSON object.
func EncodeLineItem(e *jx.Encoder, l LineItem) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	e.FieldStart("image")
	e.Str(l.Image)
	e.FieldStart("color")
	e.Str(l.Variant.Color)
	e.FieldStart("size")
	e.Str(l.Variant.Size)
	e.FieldStart("unitPrice")
	jsonx.EncodeDecimal(e, l.UnitPrice)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("isCustomized")
	e.Bool(l.Customized)
	e.FieldStart("customizationFee")
	jsonx.EncodeDecimal(e, l.CustomizationFee)
	e.FieldStart("addedAt")
	jsonx.EncodeTime(e, l.AddedAt)
	e.ObjEnd()
}

// DecodeLineItem reads a line item. Field names of the legacy document
// ("id", "price", "customized") are accepted alongside the current ones.
func DecodeLineItem(d *jx.Decoder) (LineItem, error) {
	var l LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId", "id":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "image":
			l.Image, err = d.Str()
		case "color":
			l.Variant.Color, err = d.Str()
		case "size":
			l.Variant.Size, err = d.Str()
		case "unitPrice", "price":
			l.UnitPrice, err = jsonx.DecodeDecimal(d)
		case "quantity":
			l.Quantity, err = d.Int()
		case "isCustomized", "customized":
			l.Customized, err = d.Bool()
		case "customizationFee":
			l.CustomizationFee, err = jsonx.DecodeDecimal(d)
		case "addedAt":
			l.AddedAt, err = jsonx.DecodeTime(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
	if err != nil {
		return LineItem{}, err
	}
	if l.ProductID == "" {
		return LineItem{}, errors.New("line item without product id")
	}
	return l, nil
}

// EncodeItems writes items as a JSON array.
func EncodeItems(e *jx.Encoder, items []LineItem) {
	e.ArrStart()
	for _, it := range items {
		EncodeLineItem(e, it)
	}
	e.ArrEnd()
}

// DecodeItems reads a JSON array of line items.
func DecodeItems(d *jx.Decoder) ([]LineItem, error) {
	var items []LineItem
	err := d.Arr(func(d *jx.Decoder) error {
		it, err := DecodeLineItem(d)
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}

// MarshalDocument encodes the persisted cart document.
func MarshalDocument(items []LineItem) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("version")
	e.Int(SchemaVersion)
	e.FieldStart("items")
	EncodeItems(&e, items)
	e.ObjEnd()
	return e.Bytes()
}

// UnmarshalDocument decodes a persisted cart. Both the current object form
// and the legacy bare-array form are accepted. Stored quantities are clamped
// to [money.MinQuantity, money.MaxQuantity].
func UnmarshalDocument(data []byte) ([]LineItem, error) {
	d := jx.DecodeBytes(data)
	switch d.Next() {
	case jx.Array:
		items, err := DecodeItems(d)
		if err != nil {
			return nil, errors.Wrap(err, "decode legacy cart")
		}
		return clampQuantities(items), nil
	case jx.Object:
		var items []LineItem
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "items":
				var err error
				items, err = DecodeItems(d)
				return err
			default:
				return d.Skip()
			}
		})
		if err != nil {
			return nil, errors.Wrap(err, "decode cart")
		}
		return clampQuantities(items), nil
	default:
		return nil, errors.Errorf("unexpected cart document %s", d.Next())
	}
}

func clampQuantities(items []LineItem) []LineItem {
	for i := range items {
		items[i].Quantity = money.ClampQuantity(items[i].Quantity)
	}
	return items
}
