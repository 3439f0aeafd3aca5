package service

import (
	"github.com/shopspring/decimal"

	"github.com/souqline/fulfillment-service/internal/models"
)

// LineSubtotal computes quantity times unit price, rounded to cents.
func LineSubtotal(price float64, quantity int) float64 {
	subtotal := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
	f, _ := subtotal.Round(2).Float64()
	return f
}

// OrderTotal sums the line subtotals of an order, rounded to cents.
func OrderTotal(items []models.OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// EnsureTotals fills in any line subtotal or order total the checkout flow
// left at zero, so the scan result always presents complete pricing.
func EnsureTotals(order *models.Order) {
	for i := range order.Items {
		if order.Items[i].Subtotal == 0 {
			order.Items[i].Subtotal = LineSubtotal(order.Items[i].Price, order.Items[i].Quantity)
		}
	}
	if order.TotalPrice == 0 {
		order.TotalPrice = OrderTotal(order.Items)
	}
}
