package service

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/o2o-insight/internal/churn"
	"github.com/storeops/o2o-insight/internal/config"
	"github.com/storeops/o2o-insight/internal/domain"
)

// fakeSalesRepo serves records from memory with the same day-inclusive
// range semantics as the postgres repository.
type fakeSalesRepo struct {
	records []domain.RawSaleRecord
	fields  domain.FieldSet
	fetches int
	dateQs  int
}

func (r *fakeSalesRepo) FetchRecords(_ context.Context, store string, from, to time.Time) (domain.RecordBatch, error) {
	r.fetches++
	batch := domain.RecordBatch{
		Fields:  r.fields,
		Records: make([]domain.RawSaleRecord, 0, len(r.records)),
	}
	for _, rec := range r.records {
		if store != "" && rec.Store != store {
			continue
		}
		d := domain.Day(rec.SoldAt)
		if d.Before(domain.Day(from)) || d.After(domain.Day(to)) {
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func (r *fakeSalesRepo) AvailableDates(_ context.Context, store string, limit int) ([]time.Time, error) {
	r.dateQs++
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, rec := range r.records {
		if store != "" && rec.Store != store {
			continue
		}
		d := domain.Day(rec.SoldAt)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (r *fakeSalesRepo) Stores(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var stores []string
	for _, rec := range r.records {
		if !seen[rec.Store] {
			seen[rec.Store] = true
			stores = append(stores, rec.Store)
		}
	}
	return stores, nil
}

// memCache is a map-backed AnalysisCache for asserting hit behavior.
type memCache struct {
	entries map[string][]byte
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	payload, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = payload
	c.sets++
	return nil
}

func (c *memCache) InvalidateAll(_ context.Context) error {
	c.entries = make(map[string][]byte)
	return nil
}

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		FeeChannels:          []string{"meituan"},
		DeliveryFeeThreshold: 6,
		TrafficDropRate:      0.5,
		TrafficMinSales:      5,
		ChurnLookbackDays:    30,
		ChurnMinOrders:       2,
		ChurnNoOrderDays:     7,
	}
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func analysisFields() domain.FieldSet {
	fs := make(domain.FieldSet)
	for _, f := range []domain.Field{
		domain.FieldOrderID, domain.FieldStore, domain.FieldChannel,
		domain.FieldProductCode, domain.FieldProductName,
		domain.FieldActualUnitPrice, domain.FieldQuantity, domain.FieldUnitCost,
		domain.FieldProfit, domain.FieldDeliveryFee, domain.FieldPlatformFee,
		domain.FieldCorporateRebate, domain.FieldStock, domain.FieldAddress,
		domain.FieldSoldAt,
	} {
		fs[f] = true
	}
	for _, f := range domain.DiscountFields {
		fs[f] = true
	}
	return fs
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type rowOpts struct {
	platformFee string
	address     string
	stock       int
}

func row(order, code, name string, soldAt time.Time, price string, qty int, profit, deliveryFee string, opts rowOpts) domain.RawSaleRecord {
	fee := dec("1")
	if opts.platformFee != "" {
		fee = dec(opts.platformFee)
	}
	return domain.RawSaleRecord{
		OrderID:         order,
		Store:           "downtown",
		Channel:         "meituan",
		ProductCode:     code,
		ProductName:     name,
		ActualUnitPrice: dec(price),
		Quantity:        qty,
		UnitCost:        dec("1"),
		Profit:          dec(profit),
		DeliveryFee:     dec(deliveryFee),
		PlatformFee:     fee,
		Stock:           opts.stock,
		Address:         opts.address,
		SoldAt:          soldAt,
	}
}

// testRecords is a 26-day history ending 2025-06-30: enough for an
// undegraded 7-day comparison (current 06-24..06-30, previous 06-17..06-23).
func testRecords() []domain.RawSaleRecord {
	home := "幸福小区3栋2单元501"
	return []domain.RawSaleRecord{
		// span anchor well before both windows
		row("O-OLD", "P1", "apple", day(2025, 6, 5), "8", 1, "2", "1", rowOpts{stock: 10}),

		// repeat customer, quiet since 06-15
		row("O-200", "P1", "apple", day(2025, 6, 10), "30", 1, "5", "2", rowOpts{stock: 10, address: home}),
		row("O-201", "P1", "apple", day(2025, 6, 15), "20", 1, "4", "2", rowOpts{stock: 10, address: "幸福小区3-2-501"}),

		// previous window
		row("O-P1", "P1", "apple", day(2025, 6, 20), "10", 1, "4", "1", rowOpts{stock: 10}),

		// current window: healthy two-item order
		row("O-C1", "P1", "apple", day(2025, 6, 28), "10", 2, "6", "3", rowOpts{stock: 10}),
		row("O-C1", "P2", "banana", day(2025, 6, 28), "5", 1, "2", "3", rowOpts{stock: 0}),

		// current window: fee anomaly on a fee-charging channel
		row("O-CX", "P3", "cherry", day(2025, 6, 29), "50", 1, "10", "2", rowOpts{platformFee: "0", stock: 5}),

		// current window: delivery fee eats the margin
		row("O-C2", "P1", "apple", day(2025, 6, 30), "10", 1, "1", "8", rowOpts{stock: 10}),
	}
}

func newTestService(repo *fakeSalesRepo, c *memCache) *AnalysisService {
	if c == nil {
		return NewAnalysisService(repo, nil, testAnalyticsConfig())
	}
	return NewAnalysisService(repo, c, testAnalyticsConfig())
}

func TestProfitOverviewPeriodComparison(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	overview, err := svc.ProfitOverview(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)
	require.False(t, overview.NoData)

	assert.False(t, overview.Windows.Degraded)
	assert.Empty(t, overview.Warning)
	assert.Equal(t, day(2025, 6, 24), overview.Windows.Current.Start)
	assert.Equal(t, day(2025, 6, 30), overview.Windows.Current.End)
	assert.Equal(t, day(2025, 6, 23), overview.Windows.Previous.End)

	// O-C1 and O-C2 count; O-CX is a fee anomaly and is excluded
	assert.Equal(t, 2, overview.Current.Orders)
	assert.Equal(t, 4, overview.Current.Quantity)
	assert.True(t, overview.Current.Revenue.Equal(dec("35")),
		"revenue %s", overview.Current.Revenue)
	// O-C1: 8-2-3 = 3; O-C2: 1-1-8 = -8
	assert.True(t, overview.Current.ActualProfit.Equal(dec("-5")),
		"actual profit %s", overview.Current.ActualProfit)
	assert.True(t, overview.Current.AvgOrderValue.Equal(dec("17.5")))
	assert.Equal(t, 1, overview.Current.Overflow)

	assert.Equal(t, 1, overview.Previous.Orders)
	assert.True(t, overview.Previous.Revenue.Equal(dec("10")))
	assert.True(t, overview.Previous.ActualProfit.Equal(dec("2")))

	assert.Equal(t, 1, overview.Excluded)
}

func TestProfitOverviewDegradesShortHistory(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	// 26 days of data cannot support a 30-day comparison
	overview, err := svc.ProfitOverview(context.Background(), Request{PeriodDays: 30})
	require.NoError(t, err)

	assert.True(t, overview.Windows.Degraded)
	assert.NotEmpty(t, overview.Warning)
	assert.Equal(t, 7, overview.Windows.Current.Days())
}

func TestProfitOverviewNoData(t *testing.T) {
	repo := &fakeSalesRepo{fields: analysisFields()}
	svc := newTestService(repo, nil)

	overview, err := svc.ProfitOverview(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)
	assert.True(t, overview.NoData)
}

func TestProfitOverviewCustomRange(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	start := day(2025, 6, 24)
	end := day(2025, 6, 30)
	overview, err := svc.ProfitOverview(context.Background(), Request{Start: &start, End: &end})
	require.NoError(t, err)

	assert.True(t, overview.Windows.Custom)
	assert.Empty(t, overview.Warning)
	assert.Equal(t, 2, overview.Current.Orders)
	assert.True(t, overview.Current.Revenue.Equal(dec("35")))
	// previous range 06-17..06-23 gets O-P1
	assert.Equal(t, 1, overview.Previous.Orders)
}

func TestProfitOverviewServedFromCache(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	c := newMemCache()
	svc := newTestService(repo, c)

	first, err := svc.ProfitOverview(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)
	require.Equal(t, 1, repo.fetches)
	require.Equal(t, 1, c.sets)

	second, err := svc.ProfitOverview(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.fetches, "second call must not reach the repository")
	assert.Equal(t, 1, repo.dateQs)
	assert.Equal(t, first.Current.Orders, second.Current.Orders)
	assert.True(t, first.Current.Revenue.Equal(second.Current.Revenue))
}

func TestDiagnoseRunsAllFamilies(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	diagnosis, err := svc.Diagnose(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)
	require.False(t, diagnosis.NoData)

	assert.Equal(t, day(2025, 6, 30), diagnosis.AsOf)

	// only O-C2 loses money in the current window
	require.Len(t, diagnosis.Overflow.Findings, 1)
	assert.Equal(t, "O-C2", diagnosis.Overflow.Findings[0].OrderID)

	// O-C2 again: delivery fee 8 over the 6 threshold, profit below it
	require.Len(t, diagnosis.Delivery.Findings, 1)
	assert.Equal(t, "O-C2", diagnosis.Delivery.Findings[0].OrderID)

	// banana sold two days before asOf with zero stock
	require.Len(t, diagnosis.Inventory.SoldOut, 1)
	assert.Equal(t, "P2", diagnosis.Inventory.SoldOut[0].ProductCode)

	// the repeat customer went quiet on 06-15: 15 days by asOf
	require.Len(t, diagnosis.Churn.Churned, 1)
	churned := diagnosis.Churn.Churned[0]
	assert.Equal(t, 2, churned.OrderCount)
	assert.Equal(t, 15, churned.DaysSinceLast)
	assert.Equal(t, domain.SeverityCritical, churned.Severity)
	assert.True(t, churned.TotalSpend.Equal(dec("50")))
}

func TestDiagnoseNoData(t *testing.T) {
	repo := &fakeSalesRepo{fields: analysisFields()}
	svc := newTestService(repo, nil)

	diagnosis, err := svc.Diagnose(context.Background(), Request{PeriodDays: 7})
	require.NoError(t, err)
	assert.True(t, diagnosis.NoData)
}

func TestChurnedCustomersDefaultsParams(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	// zero params fall back to the configured defaults
	report, err := svc.ChurnedCustomers(context.Background(), "", churn.Params{})
	require.NoError(t, err)
	require.Len(t, report.Churned, 1)
	assert.Equal(t, 1, report.Summary.HighRisk)
}

func TestChurnedCustomersMergesPartialParams(t *testing.T) {
	repo := &fakeSalesRepo{records: testRecords(), fields: analysisFields()}
	svc := newTestService(repo, nil)

	// min_orders raised without lookback_days: the other fields default,
	// the supplied one must survive
	report, err := svc.ChurnedCustomers(context.Background(), "", churn.Params{MinOrders: 3})
	require.NoError(t, err)
	assert.Empty(t, report.Churned, "the repeat customer has only 2 orders")
}

func TestInventoryRiskEmptyHistory(t *testing.T) {
	repo := &fakeSalesRepo{fields: analysisFields()}
	svc := newTestService(repo, nil)

	report, err := svc.InventoryRisk(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, report.SoldOut)
	assert.Empty(t, report.SlowMoving)
}
