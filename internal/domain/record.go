package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawSaleRecord is one item row as emitted by a delivery platform export.
// An order spanning several products produces several rows sharing OrderID.
type RawSaleRecord struct {
	OrderID         string          `json:"order_id" db:"order_id"`
	Store           string          `json:"store" db:"store"`
	Channel         string          `json:"channel" db:"channel"`
	ProductCode     string          `json:"product_code" db:"product_code"`
	ProductName     string          `json:"product_name" db:"product_name"`
	Category        string          `json:"category" db:"category"`
	OrigUnitPrice   decimal.Decimal `json:"orig_unit_price" db:"orig_unit_price"`
	ActualUnitPrice decimal.Decimal `json:"actual_unit_price" db:"actual_unit_price"`
	Quantity        int             `json:"quantity" db:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	Profit          decimal.Decimal `json:"profit" db:"profit"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee" db:"delivery_fee"`
	PlatformFee     decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	CorporateRebate decimal.Decimal `json:"corporate_rebate" db:"corporate_rebate"`
	UserPaidDeliver decimal.Decimal `json:"user_paid_delivery" db:"user_paid_delivery"`
	DeliveryWaiver  decimal.Decimal `json:"delivery_waiver" db:"delivery_waiver"`
	Discounts       DiscountSet     `json:"discounts"`
	Stock           int             `json:"stock" db:"stock"`
	Address         string          `json:"address" db:"address"`
	SoldAt          time.Time       `json:"sold_at" db:"sold_at"`
}

// DiscountSet holds the seven marketing discount amounts an order row can
// carry. They are order-scoped: constant across the rows of one order.
type DiscountSet struct {
	FullReduction decimal.Decimal `json:"full_reduction" db:"discount_full_reduction"`
	Delivery      decimal.Decimal `json:"delivery" db:"discount_delivery"`
	Item          decimal.Decimal `json:"item" db:"discount_item"`
	Coupon        decimal.Decimal `json:"coupon" db:"discount_coupon"`
	Merchant      decimal.Decimal `json:"merchant" db:"discount_merchant"`
	NewCustomer   decimal.Decimal `json:"new_customer" db:"discount_new_customer"`
	Platform      decimal.Decimal `json:"platform" db:"discount_platform"`
}

// Total sums all seven discount types.
func (d DiscountSet) Total() decimal.Decimal {
	return d.FullReduction.
		Add(d.Delivery).
		Add(d.Item).
		Add(d.Coupon).
		Add(d.Merchant).
		Add(d.NewCustomer).
		Add(d.Platform)
}

// ByType returns the per-type amounts keyed by canonical field name.
func (d DiscountSet) ByType() map[Field]decimal.Decimal {
	return map[Field]decimal.Decimal{
		FieldDiscountFullReduction: d.FullReduction,
		FieldDiscountDelivery:      d.Delivery,
		FieldDiscountItem:          d.Item,
		FieldDiscountCoupon:        d.Coupon,
		FieldDiscountMerchant:      d.Merchant,
		FieldDiscountNewCustomer:   d.NewCustomer,
		FieldDiscountPlatform:      d.Platform,
	}
}

// RecordBatch is a snapshot of raw rows plus the set of canonical fields the
// source actually provided. The batch is immutable once handed to the core.
type RecordBatch struct {
	Fields  FieldSet        `json:"fields"`
	Records []RawSaleRecord `json:"records"`
}

// Empty reports whether the batch carries no rows. An empty batch is a
// normal business state, not an error.
func (b RecordBatch) Empty() bool {
	return len(b.Records) == 0
}

// DateSpan returns the earliest and latest sale dates in the batch,
// truncated to day granularity. ok is false for an empty batch.
func (b RecordBatch) DateSpan() (earliest, latest time.Time, ok bool) {
	if b.Empty() {
		return time.Time{}, time.Time{}, false
	}
	earliest = Day(b.Records[0].SoldAt)
	latest = earliest
	for _, r := range b.Records[1:] {
		d := Day(r.SoldAt)
		if d.Before(earliest) {
			earliest = d
		}
		if d.After(latest) {
			latest = d
		}
	}
	return earliest, latest, true
}

// Day truncates a timestamp to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b at day granularity.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}
