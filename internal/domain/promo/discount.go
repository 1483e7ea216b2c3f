package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/money"
)

// Apply computes the discount of rule over items. The result never exceeds
// the items' subtotal.
func Apply(rule *Rule, items []Item) (Discount, error) {
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCode
	}

	subtotal := subtotalOf(items)

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = money.PercentOf(subtotal, rule.Value)
	case DiscountFixed:
		amount = decimal.Min(rule.Value, subtotal)
	case DiscountFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}
	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount)
	}
	amount = decimal.Min(money.FloorAtZero(amount), subtotal).Round(2)

	return Discount{
		Code:        NormalizeCode(rule.Code),
		Amount:      amount,
		Description: rule.Description,
	}, nil
}

func subtotalOf(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(money.LineTotal(it.Price, it.Quantity))
	}
	return sum
}

func totalQuantity(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

func lowestUnitPrice(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Price
	for _, it := range items[1:] {
		if it.Price.LessThan(lowest) {
			lowest = it.Price
		}
	}
	return lowest
}
