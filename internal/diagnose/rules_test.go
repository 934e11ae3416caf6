package diagnose

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/o2o-insight/internal/domain"
)

var day0 = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func order(id string, actualProfit, deliveryFee string) domain.Order {
	return domain.Order{
		OrderID:      id,
		PlacedAt:     day0,
		ActualProfit: dec(actualProfit),
		DeliveryFee:  dec(deliveryFee),
	}
}

func set(orders ...domain.Order) domain.OrderSet {
	return domain.OrderSet{Orders: orders}
}

func TestOverflowOrders(t *testing.T) {
	report := NewEngine().OverflowOrders(set(
		order("O1", "-5", "0"),
		order("O2", "3", "0"),
		order("O3", "-12", "0"),
	))

	require.Len(t, report.Findings, 2)
	// ranked by loss, largest first
	assert.Equal(t, "O3", report.Findings[0].OrderID)
	assert.Equal(t, domain.SeverityCritical, report.Findings[0].Severity)
	assert.Equal(t, "O1", report.Findings[1].OrderID)
	assert.Equal(t, domain.SeverityWarning, report.Findings[1].Severity)
	assert.True(t, report.Summary.TotalLoss.Equal(dec("17")))
	assert.Equal(t, 3, report.Summary.OrdersChecked)
}

func TestOverflowSkipsFeeAnomalies(t *testing.T) {
	anomaly := order("O1", "-5", "0")
	anomaly.FeeAnomaly = true

	report := NewEngine().OverflowOrders(domain.OrderSet{
		Orders:   []domain.Order{anomaly, order("O2", "-3", "0")},
		Excluded: 1,
	})

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "O2", report.Findings[0].OrderID)
	assert.Equal(t, 1, report.Summary.Excluded)
}

func TestHighDeliveryOrders(t *testing.T) {
	report := NewEngine().HighDeliveryOrders(set(
		// fee above threshold and profit below fee → flagged
		order("O1", "4", "8"),
		// fee above threshold but profit covers it → fine
		order("O2", "20", "8"),
		// fee at the threshold → not flagged (strictly greater)
		order("O3", "-1", "6"),
	))

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "O1", report.Findings[0].OrderID)
	assert.True(t, report.Findings[0].LossAmount.Equal(dec("4")))
}

func TestMarketingLossBreakdown(t *testing.T) {
	withDiscount := order("O1", "-5", "0")
	withDiscount.Discounts = domain.DiscountSet{
		FullReduction: dec("3"),
		Coupon:        dec("2"),
	}
	profitable := order("O2", "4", "0")
	profitable.Discounts = domain.DiscountSet{Coupon: dec("1")}
	lossNoDiscount := order("O3", "-2", "0")

	report := NewEngine().MarketingLoss(set(withDiscount, profitable, lossNoDiscount))

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "O1", report.Findings[0].OrderID)
	assert.True(t, report.Findings[0].DiscountTotal.Equal(dec("5")))
	assert.True(t, report.ByType[domain.FieldDiscountFullReduction].Equal(dec("3")))
	assert.True(t, report.ByType[domain.FieldDiscountCoupon].Equal(dec("2")))
	assert.True(t, report.ByType[domain.FieldDiscountItem].Equal(decimal.Zero))
}

func trafficPair() domain.WindowPair {
	return domain.WindowPair{
		Current:  domain.TimeWindow{Start: day0.AddDate(0, 0, -6), End: day0},
		Previous: domain.TimeWindow{Start: day0.AddDate(0, 0, -13), End: day0.AddDate(0, 0, -7)},
	}
}

func trafficRecord(code string, daysAgo, qty, stock int) domain.RawSaleRecord {
	return domain.RawSaleRecord{
		ProductCode: code,
		Quantity:    qty,
		Stock:       stock,
		SoldAt:      day0.AddDate(0, 0, -daysAgo),
	}
}

func TestTrafficDropTagsStockOutVersusOrganic(t *testing.T) {
	batch := domain.RecordBatch{Records: []domain.RawSaleRecord{
		// P1: 10 prior, 1 current, stock left → organic decline
		trafficRecord("P1", 10, 10, 50),
		trafficRecord("P1", 2, 1, 50),
		// P2: 8 prior, 0 current, no stock → stock-out
		trafficRecord("P2", 9, 8, 20),
		trafficRecord("P2", 1, 0, 0),
		// P3: prior volume below minSales → ignored
		trafficRecord("P3", 9, 2, 10),
	}}

	report := NewEngine(WithTrafficRule(5, 0.5)).TrafficDrop(batch, trafficPair())

	require.Len(t, report.Findings, 2)
	byCode := map[string]domain.ProductFinding{}
	for _, f := range report.Findings {
		byCode[f.ProductCode] = f
	}

	assert.Equal(t, domain.ReasonTrafficOrganic, byCode["P1"].Reason)
	assert.Equal(t, domain.ReasonTrafficStockOut, byCode["P2"].Reason)
	assert.Equal(t, 1, report.Summary.StockOut)
	assert.Equal(t, 1, report.Summary.Organic)
}

func TestTrafficDropThresholdIsStrict(t *testing.T) {
	batch := domain.RecordBatch{Records: []domain.RawSaleRecord{
		// exactly 50% drop: not flagged with a 0.5 threshold
		trafficRecord("P1", 10, 10, 5),
		trafficRecord("P1", 2, 5, 5),
	}}

	report := NewEngine(WithTrafficRule(5, 0.5)).TrafficDrop(batch, trafficPair())
	assert.Empty(t, report.Findings)
}

func TestRulesAreIdempotent(t *testing.T) {
	orders := set(
		order("O1", "-5", "8"),
		order("O2", "-12", "2"),
		order("O3", "1", "9"),
	)
	batch := domain.RecordBatch{Records: []domain.RawSaleRecord{
		trafficRecord("P1", 10, 10, 0),
		trafficRecord("P2", 9, 8, 3),
	}}
	engine := NewEngine()

	assert.Equal(t, engine.OverflowOrders(orders), engine.OverflowOrders(orders))
	assert.Equal(t, engine.HighDeliveryOrders(orders), engine.HighDeliveryOrders(orders))
	assert.Equal(t, engine.MarketingLoss(orders), engine.MarketingLoss(orders))
	assert.Equal(t, engine.TrafficDrop(batch, trafficPair()), engine.TrafficDrop(batch, trafficPair()))
}
