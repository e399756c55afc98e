package services

import (
	"github.com/shopspring/decimal"

	"github.com/example/pharmadrop/internal/models"
)

// Quote is the priced result of an order request.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
}

// NewQuote rounds subtotal and discount to cents and caps the discount at
// the rounded subtotal, so Total is exactly Subtotal minus Discount.
func NewQuote(subtotal, discount decimal.Decimal) Quote {
	subtotal = subtotal.Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return Quote{Subtotal: subtotal, Discount: decimal.Min(discount.Round(2), subtotal)}
}

// Total is the chargeable amount, never negative.
func (q Quote) Total() decimal.Decimal {
	return q.Subtotal.Sub(q.Discount)
}

// LineTotal prices a single snapshot line.
func LineTotal(item models.OrderItem) decimal.Decimal {
	return decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal sums the line totals of items.
func Subtotal(items []models.OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return sum
}

// EvaluateCoupon checks coupon against a subtotal and returns the flat
// discount it grants. A nil coupon is treated as unknown.
func EvaluateCoupon(coupon *models.Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if coupon == nil || !coupon.IsActive {
		return decimal.Zero, newOrderError(ErrorInvalidCoupon, "Invalid coupon")
	}
	if coupon.Exhausted() {
		return decimal.Zero, newOrderError(ErrorCouponExhausted, "Coupon usage limit reached")
	}
	minAmount := decimal.NewFromFloat(coupon.MinAmount)
	if subtotal.LessThan(minAmount) {
		return decimal.Zero, newOrderError(ErrorMinimumNotMet,
			"Minimum order amount of $%s required", minAmount.StringFixed(2))
	}
	discount := decimal.NewFromFloat(coupon.DiscountAmount)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return decimal.Min(discount, subtotal), nil
}

// money converts a decimal amount to the stored representation.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
