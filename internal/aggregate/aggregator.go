// Package aggregate collapses item-level sale rows into canonical
// order-level records. Order-scoped attributes take the first row's value,
// item-scoped attributes are summed, and the canonical actual-profit figure
// is derived once here for every downstream diagnostic.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
)

// DefaultFeeChannels are the channels known to charge a platform service
// fee. An order on one of these channels with a non-positive fee is a data
// anomaly.
var DefaultFeeChannels = []string{"meituan", "eleme", "jd_daojia"}

type Aggregator struct {
	feeChannels map[string]bool
}

func NewAggregator(feeChannels []string) *Aggregator {
	if len(feeChannels) == 0 {
		feeChannels = DefaultFeeChannels
	}
	set := make(map[string]bool, len(feeChannels))
	for _, ch := range feeChannels {
		set[ch] = true
	}
	return &Aggregator{feeChannels: set}
}

// Aggregate groups the batch by order id and produces one Order per unique
// id. An empty batch yields an empty set, not an error; a batch whose
// source had no order id column cannot be aggregated at all.
func (a *Aggregator) Aggregate(batch domain.RecordBatch) (domain.OrderSet, error) {
	if err := batch.Fields.Require(domain.FieldOrderID); err != nil {
		return domain.OrderSet{}, err
	}

	set := domain.OrderSet{
		Orders: make([]domain.Order, 0),
		Fields: batch.Fields,
	}
	if batch.Empty() {
		return set, nil
	}

	index := make(map[string]int, len(batch.Records))
	for _, row := range batch.Records {
		i, seen := index[row.OrderID]
		if !seen {
			index[row.OrderID] = len(set.Orders)
			set.Orders = append(set.Orders, newOrder(row))
			i = len(set.Orders) - 1
		}
		accumulate(&set.Orders[i], row)
	}

	for i := range set.Orders {
		o := &set.Orders[i]
		o.ActualProfit = ActualProfit(o.ProfitAmount, o.PlatformFee, o.DeliveryFee, o.Rebate)
		if a.feeChannels[o.Channel] && !o.PlatformFee.IsPositive() {
			o.FeeAnomaly = true
			set.Excluded++
		}
	}

	return set, nil
}

// newOrder seeds an order from its first item row. These attributes are
// constant across an order's rows, so the first value is authoritative.
func newOrder(row domain.RawSaleRecord) domain.Order {
	return domain.Order{
		OrderID:         row.OrderID,
		Store:           row.Store,
		Channel:         row.Channel,
		Address:         row.Address,
		PlacedAt:        row.SoldAt,
		DeliveryFee:     row.DeliveryFee,
		UserPaidDeliver: row.UserPaidDeliver,
		DeliveryWaiver:  row.DeliveryWaiver,
		Discounts:       row.Discounts,
	}
}

// accumulate folds one item row into the order's summed fields. Revenue is
// per-unit price times quantity; summing unit prices alone would undercount
// orders with multiple units of one SKU.
func accumulate(o *domain.Order, row domain.RawSaleRecord) {
	qty := decimal.NewFromInt(int64(row.Quantity))
	o.Revenue = o.Revenue.Add(row.ActualUnitPrice.Mul(qty))
	o.Cost = o.Cost.Add(row.UnitCost.Mul(qty))
	o.ProfitAmount = o.ProfitAmount.Add(row.Profit)
	o.PlatformFee = o.PlatformFee.Add(row.PlatformFee)
	o.Rebate = o.Rebate.Add(row.CorporateRebate)
	o.Quantity += row.Quantity
}

// ActualProfit is the single profit formula used everywhere:
// profit − platform service fee − delivery fee + corporate rebate.
func ActualProfit(profit, platformFee, deliveryFee, rebate decimal.Decimal) decimal.Decimal {
	return profit.Sub(platformFee).Sub(deliveryFee).Add(rebate)
}
