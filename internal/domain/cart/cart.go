// Package cart owns the shopping cart aggregate of a single client: an ordered
// list of line items, persisted after every mutation, with totals derived on
// every read.
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/money"
)

// DefaultDeliveryFee is charged once per order regardless of contents.
var DefaultDeliveryFee = decimal.NewFromInt(150)

// Variant identifies the color/size of a product in the cart.
type Variant struct {
	Color string
	Size  string
}

// LineItem is one distinct product+variant entry. Name, price and image are
// snapshots taken when the item was added, so the cart keeps working when the
// catalog is unavailable or the product disappears.
type LineItem struct {
	ProductID        string
	Name             string
	Image            string
	Variant          Variant
	UnitPrice        decimal.Decimal
	Quantity         int
	Customized       bool
	CustomizationFee decimal.Decimal
	AddedAt          time.Time
}

// EffectiveUnitPrice is the per-unit charge including any customization fee.
func (l LineItem) EffectiveUnitPrice() decimal.Decimal {
	if l.Customized {
		return l.UnitPrice.Add(l.CustomizationFee)
	}
	return l.UnitPrice
}

// Total is EffectiveUnitPrice × Quantity.
func (l LineItem) Total() decimal.Decimal {
	return money.LineTotal(l.EffectiveUnitPrice(), l.Quantity)
}

func (l LineItem) sameLine(productID string, v Variant) bool {
	return l.ProductID == productID && l.Variant == v
}

// Pricing holds the order-level charges applied on top of the subtotal.
type Pricing struct {
	DeliveryFee decimal.Decimal
	// TaxRate is a percentage of the subtotal. Zero disables tax.
	TaxRate decimal.Decimal
}

// DefaultPricing charges DefaultDeliveryFee and no tax.
func DefaultPricing() Pricing {
	return Pricing{DeliveryFee: DefaultDeliveryFee}
}

// Totals is the derived money view of a cart.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	GrandTotal  decimal.Decimal
	ItemCount   int
}

// ComputeTotals derives totals from items. An empty cart owes nothing, not
// even the delivery fee.
func ComputeTotals(items []LineItem, p Pricing) Totals {
	t := Totals{
		Subtotal:    decimal.Zero,
		DeliveryFee: decimal.Zero,
		Tax:         decimal.Zero,
		GrandTotal:  decimal.Zero,
	}
	if len(items) == 0 {
		return t
	}
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.Total())
		t.ItemCount += it.Quantity
	}
	t.DeliveryFee = p.DeliveryFee
	t.Tax = money.Tax(t.Subtotal, p.TaxRate)
	t.GrandTotal = t.Subtotal.Add(t.DeliveryFee).Add(t.Tax)
	return t
}

// Discounted takes discount off the subtotal before tax. Subtotal and
// DeliveryFee are kept; Tax and GrandTotal are recomputed from the discounted
// subtotal.
func (t Totals) Discounted(discount decimal.Decimal, p Pricing) Totals {
	base := t.Subtotal.Sub(discount)
	if base.IsNegative() {
		base = decimal.Zero
	}
	t.Tax = money.Tax(base, p.TaxRate)
	t.GrandTotal = base.Add(t.DeliveryFee).Add(t.Tax)
	return t
}

// CloneItems returns a deep copy of items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
