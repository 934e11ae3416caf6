package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/o2o-insight/internal/domain"
)

var baseDay = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func orderFields() domain.FieldSet {
	return domain.FieldSet{
		domain.FieldOrderID: true,
		domain.FieldSoldAt:  true,
		domain.FieldAddress: true,
	}
}

func TestAggregateRevenueUsesUnitPriceTimesQuantity(t *testing.T) {
	batch := domain.RecordBatch{
		Fields: orderFields(),
		Records: []domain.RawSaleRecord{
			{OrderID: "O1", Channel: "A", ActualUnitPrice: dec("10"), Quantity: 2, SoldAt: baseDay},
			{OrderID: "O1", Channel: "A", ActualUnitPrice: dec("5"), Quantity: 1, SoldAt: baseDay},
		},
	}

	set, err := NewAggregator(nil).Aggregate(batch)
	require.NoError(t, err)
	require.Len(t, set.Orders, 1)

	// 10×2 + 5×1, not a naive 10+5
	assert.True(t, set.Orders[0].Revenue.Equal(dec("25")), "revenue = %s", set.Orders[0].Revenue)
	assert.Equal(t, 3, set.Orders[0].Quantity)
}

func TestAggregateSumInvariant(t *testing.T) {
	batch := domain.RecordBatch{
		Fields: orderFields(),
		Records: []domain.RawSaleRecord{
			{OrderID: "O1", Profit: dec("3.5"), UnitCost: dec("2"), Quantity: 1, PlatformFee: dec("1"), SoldAt: baseDay},
			{OrderID: "O1", Profit: dec("1.5"), UnitCost: dec("4"), Quantity: 2, PlatformFee: dec("0.5"), SoldAt: baseDay},
			{OrderID: "O2", Profit: dec("7"), UnitCost: dec("1"), Quantity: 5, PlatformFee: dec("2"), SoldAt: baseDay},
		},
	}

	set, err := NewAggregator(nil).Aggregate(batch)
	require.NoError(t, err)
	require.Len(t, set.Orders, 2)

	byID := map[string]domain.Order{}
	for _, o := range set.Orders {
		byID[o.OrderID] = o
	}

	assert.True(t, byID["O1"].ProfitAmount.Equal(dec("5")))
	assert.True(t, byID["O1"].PlatformFee.Equal(dec("1.5")))
	assert.True(t, byID["O1"].Cost.Equal(dec("10"))) // 2×1 + 4×2
	assert.Equal(t, 3, byID["O1"].Quantity)
	assert.True(t, byID["O2"].ProfitAmount.Equal(dec("7")))
}

func TestAggregateOrderScopedFieldsTakeFirstValue(t *testing.T) {
	batch := domain.RecordBatch{
		Fields: orderFields(),
		Records: []domain.RawSaleRecord{
			{OrderID: "O1", Channel: "meituan", Store: "s1", DeliveryFee: dec("4"), Address: "a", SoldAt: baseDay, PlatformFee: dec("1")},
			{OrderID: "O1", Channel: "meituan", Store: "s1", DeliveryFee: dec("4"), Address: "a", SoldAt: baseDay.Add(time.Minute), PlatformFee: dec("1")},
		},
	}

	set, err := NewAggregator(nil).Aggregate(batch)
	require.NoError(t, err)
	require.Len(t, set.Orders, 1)

	o := set.Orders[0]
	assert.Equal(t, "meituan", o.Channel)
	assert.True(t, o.DeliveryFee.Equal(dec("4")), "delivery fee is order-scoped, not summed")
	assert.Equal(t, baseDay, o.PlacedAt)
}

func TestActualProfitFormula(t *testing.T) {
	batch := domain.RecordBatch{
		Fields: orderFields(),
		Records: []domain.RawSaleRecord{
			{OrderID: "O1", Channel: "meituan", Profit: dec("20"), PlatformFee: dec("15"), DeliveryFee: dec("10"), SoldAt: baseDay},
		},
	}

	set, err := NewAggregator(nil).Aggregate(batch)
	require.NoError(t, err)
	require.Len(t, set.Orders, 1)

	// 20 − 15 − 10 + 0
	assert.True(t, set.Orders[0].ActualProfit.Equal(dec("-5")), "actualProfit = %s", set.Orders[0].ActualProfit)
	assert.False(t, set.Orders[0].FeeAnomaly)
}

func TestFeeAnomalyExcludedButCounted(t *testing.T) {
	batch := domain.RecordBatch{
		Fields: orderFields(),
		Records: []domain.RawSaleRecord{
			{OrderID: "O1", Channel: "meituan", Profit: dec("5"), PlatformFee: dec("0"), SoldAt: baseDay},
			{OrderID: "O2", Channel: "meituan", Profit: dec("5"), PlatformFee: dec("2"), SoldAt: baseDay},
			{OrderID: "O3", Channel: "walk_in", Profit: dec("5"), PlatformFee: dec("0"), SoldAt: baseDay},
		},
	}

	set, err := NewAggregator(nil).Aggregate(batch)
	require.NoError(t, err)
	require.Len(t, set.Orders, 3)

	assert.Equal(t, 1, set.Excluded)
	assert.Len(t, set.Valid(), 2, "zero-fee order on a fee channel is excluded, zero-fee on a non-fee channel is fine")
}

func TestAggregateMissingOrderIDColumn(t *testing.T) {
	batch := domain.RecordBatch{
		Fields:  domain.FieldSet{domain.FieldSoldAt: true},
		Records: []domain.RawSaleRecord{{OrderID: "O1", SoldAt: baseDay}},
	}

	_, err := NewAggregator(nil).Aggregate(batch)
	require.Error(t, err)
	assert.True(t, domain.IsMissingField(err))
	assert.Contains(t, err.Error(), "order_id")
}

func TestAggregateEmptyInputIsNotAnError(t *testing.T) {
	set, err := NewAggregator(nil).Aggregate(domain.RecordBatch{Fields: orderFields()})
	require.NoError(t, err)
	assert.Empty(t, set.Orders)
	assert.Equal(t, 0, set.Excluded)
}
