package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the canonical order-level record produced by aggregation. It is
// a computed view: built per analysis request, never persisted.
//
// Order-scoped attributes (channel, store, fees, discounts) are taken from
// the first item row; item-scoped totals are summed across rows.
type Order struct {
	OrderID         string          `json:"order_id"`
	Store           string          `json:"store"`
	Channel         string          `json:"channel"`
	Address         string          `json:"address"`
	PlacedAt        time.Time       `json:"placed_at"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	UserPaidDeliver decimal.Decimal `json:"user_paid_delivery"`
	DeliveryWaiver  decimal.Decimal `json:"delivery_waiver"`
	Discounts       DiscountSet     `json:"discounts"`

	Revenue      decimal.Decimal `json:"revenue"`
	Cost         decimal.Decimal `json:"cost"`
	ProfitAmount decimal.Decimal `json:"profit_amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Rebate       decimal.Decimal `json:"corporate_rebate"`
	Quantity     int             `json:"quantity"`

	// ActualProfit = ProfitAmount − PlatformFee − DeliveryFee + Rebate.
	// Derived once at aggregation time; every diagnostic consumes this
	// value instead of recomputing profit.
	ActualProfit decimal.Decimal `json:"actual_profit"`

	// FeeAnomaly marks an order on a fee-charging channel whose platform
	// fee is not positive. Such orders are excluded from aggregate
	// statistics but still counted for data-quality auditing.
	FeeAnomaly bool `json:"fee_anomaly,omitempty"`
}

// OrderSet is the aggregated snapshot handed to the diagnostic rules.
type OrderSet struct {
	Orders   []Order  `json:"orders"`
	Fields   FieldSet `json:"fields"`
	Excluded int      `json:"excluded_anomalies"`
}

// Valid returns the orders that survived the fee-anomaly filter.
func (s OrderSet) Valid() []Order {
	out := make([]Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if !o.FeeAnomaly {
			out = append(out, o)
		}
	}
	return out
}
