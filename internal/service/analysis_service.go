package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/storeops/o2o-insight/internal/aggregate"
	"github.com/storeops/o2o-insight/internal/cache"
	"github.com/storeops/o2o-insight/internal/churn"
	"github.com/storeops/o2o-insight/internal/config"
	"github.com/storeops/o2o-insight/internal/diagnose"
	"github.com/storeops/o2o-insight/internal/domain"
	"github.com/storeops/o2o-insight/internal/inventory"
	"github.com/storeops/o2o-insight/internal/repository"
	"github.com/storeops/o2o-insight/internal/timewindow"
)

// historyLookbackDays bounds how much raw history one analysis request
// pulls. It covers the longest period pair (2×30) and the inventory
// first-appearance anchoring.
const historyLookbackDays = 90

type AnalysisService struct {
	repo        repository.SalesRepository
	cache       cache.AnalysisCache
	aggregator  *aggregate.Aggregator
	engine      *diagnose.Engine
	churnParams churn.Params
}

func NewAnalysisService(repo repository.SalesRepository, cacheImpl cache.AnalysisCache, cfg config.AnalyticsConfig) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalysisCache()
	}
	return &AnalysisService{
		repo:       repo,
		cache:      cacheImpl,
		aggregator: aggregate.NewAggregator(cfg.FeeChannels),
		engine: diagnose.NewEngine(
			diagnose.WithDeliveryFeeThreshold(decimal.NewFromFloat(cfg.DeliveryFeeThreshold)),
			diagnose.WithTrafficRule(cfg.TrafficMinSales, cfg.TrafficDropRate),
		),
		churnParams: churn.Params{
			LookbackDays: cfg.ChurnLookbackDays,
			MinOrders:    cfg.ChurnMinOrders,
			NoOrderDays:  cfg.ChurnNoOrderDays,
		},
	}
}

// Request describes one analysis run. PeriodDays selects period mode;
// Start/End select a custom range instead when both are set.
type Request struct {
	Store      string
	PeriodDays int
	Start      *time.Time
	End        *time.Time
}

func (r Request) custom() bool {
	return r.Start != nil && r.End != nil
}

func (r Request) cacheKeyParts(op string) []string {
	parts := []string{op, r.Store, strconv.Itoa(r.PeriodDays)}
	if r.custom() {
		parts = append(parts, r.Start.Format("20060102"), r.End.Format("20060102"))
	}
	return parts
}

// snapshot is the immutable in-memory view one request computes over.
type snapshot struct {
	batch   domain.RecordBatch
	orders  domain.OrderSet
	windows domain.WindowPair
	asOf    time.Time
}

// PeriodMetrics aggregates one window's orders.
type PeriodMetrics struct {
	Orders        int             `json:"orders"`
	Quantity      int             `json:"quantity"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	ActualProfit  decimal.Decimal `json:"actual_profit"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	Overflow      int             `json:"overflow_orders"`
}

// ProfitOverview is the period-over-period profit comparison.
type ProfitOverview struct {
	NoData   bool              `json:"no_data,omitempty"`
	Windows  domain.WindowPair `json:"windows"`
	Current  PeriodMetrics     `json:"current"`
	Previous PeriodMetrics     `json:"previous"`
	Excluded int               `json:"excluded_anomalies"`
	Warning  string            `json:"warning,omitempty"`
}

// Diagnosis bundles the independent diagnostic families run over one
// snapshot.
type Diagnosis struct {
	NoData    bool                     `json:"no_data,omitempty"`
	AsOf      time.Time                `json:"as_of"`
	Windows   domain.WindowPair        `json:"windows"`
	Overflow  diagnose.OrderReport     `json:"overflow"`
	Delivery  diagnose.OrderReport     `json:"delivery"`
	Marketing diagnose.MarketingReport `json:"marketing"`
	Traffic   diagnose.TrafficReport   `json:"traffic"`
	Inventory inventory.Report         `json:"inventory"`
	Churn     churn.Report             `json:"churn"`
	Warning   string                   `json:"warning,omitempty"`
}

// ProfitOverview computes current-vs-previous profit metrics for the
// requested window, serving from cache when a fresh copy exists.
func (s *AnalysisService) ProfitOverview(ctx context.Context, req Request) (*ProfitOverview, error) {
	key := cache.BuildKey(req.cacheKeyParts("profit_overview")...)
	var cached ProfitOverview
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Msg("analysis: cache get failed")
	} else if ok {
		return &cached, nil
	}

	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return &ProfitOverview{NoData: true}, nil
	}

	overview := &ProfitOverview{
		Windows:  snap.windows,
		Current:  s.periodMetrics(snap.orders, snap.windows.Current),
		Previous: s.periodMetrics(snap.orders, snap.windows.Previous),
		Excluded: snap.orders.Excluded,
		Warning:  snap.windows.Warning,
	}

	if err := s.cache.Set(ctx, key, overview); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set failed")
	}
	return overview, nil
}

// Diagnose runs every diagnostic family over one immutable snapshot. The
// families are independent, so they fan out concurrently.
func (s *AnalysisService) Diagnose(ctx context.Context, req Request) (*Diagnosis, error) {
	key := cache.BuildKey(req.cacheKeyParts("diagnose")...)
	var cached Diagnosis
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Msg("analysis: cache get failed")
	} else if ok {
		return &cached, nil
	}

	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return &Diagnosis{NoData: true}, nil
	}

	diagnosis := &Diagnosis{
		AsOf:    snap.asOf,
		Windows: snap.windows,
		Warning: snap.windows.Warning,
	}

	currentOrders := s.windowOrders(snap.orders, snap.windows.Current)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		diagnosis.Overflow = s.engine.OverflowOrders(currentOrders)
		return nil
	})
	g.Go(func() error {
		diagnosis.Delivery = s.engine.HighDeliveryOrders(currentOrders)
		return nil
	})
	g.Go(func() error {
		diagnosis.Marketing = s.engine.MarketingLoss(currentOrders)
		return nil
	})
	g.Go(func() error {
		diagnosis.Traffic = s.engine.TrafficDrop(snap.batch, snap.windows)
		return nil
	})
	g.Go(func() error {
		diagnosis.Inventory = inventory.Classify(snap.batch, snap.asOf)
		return nil
	})
	g.Go(func() error {
		report, err := churn.Detect(snap.orders, snap.asOf, s.churnParams)
		if err != nil {
			return fmt.Errorf("churn detection: %w", err)
		}
		diagnosis.Churn = report
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, diagnosis); err != nil {
		log.Warn().Err(err).Msg("analysis: cache set failed")
	}
	return diagnosis, nil
}

// OverflowOrders runs just the overflow rule for the current window.
func (s *AnalysisService) OverflowOrders(ctx context.Context, req Request) (*diagnose.OrderReport, domain.WindowPair, error) {
	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, domain.WindowPair{}, err
	}
	if snap == nil {
		return &diagnose.OrderReport{Findings: []domain.OrderFinding{}}, domain.WindowPair{}, nil
	}
	report := s.engine.OverflowOrders(s.windowOrders(snap.orders, snap.windows.Current))
	return &report, snap.windows, nil
}

// HighDeliveryOrders runs just the delivery-cost rule for the current window.
func (s *AnalysisService) HighDeliveryOrders(ctx context.Context, req Request) (*diagnose.OrderReport, domain.WindowPair, error) {
	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, domain.WindowPair{}, err
	}
	if snap == nil {
		return &diagnose.OrderReport{Findings: []domain.OrderFinding{}}, domain.WindowPair{}, nil
	}
	report := s.engine.HighDeliveryOrders(s.windowOrders(snap.orders, snap.windows.Current))
	return &report, snap.windows, nil
}

// MarketingLoss runs just the marketing-loss rule for the current window.
func (s *AnalysisService) MarketingLoss(ctx context.Context, req Request) (*diagnose.MarketingReport, domain.WindowPair, error) {
	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, domain.WindowPair{}, err
	}
	if snap == nil {
		return &diagnose.MarketingReport{Findings: []domain.OrderFinding{}}, domain.WindowPair{}, nil
	}
	report := s.engine.MarketingLoss(s.windowOrders(snap.orders, snap.windows.Current))
	return &report, snap.windows, nil
}

// TrafficDrop runs just the traffic-drop rule over the window pair.
func (s *AnalysisService) TrafficDrop(ctx context.Context, req Request) (*diagnose.TrafficReport, error) {
	snap, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return &diagnose.TrafficReport{Findings: []domain.ProductFinding{}}, nil
	}
	report := s.engine.TrafficDrop(snap.batch, snap.windows)
	return &report, nil
}

// InventoryRisk classifies sold-out and slow-moving products as of the
// latest available date.
func (s *AnalysisService) InventoryRisk(ctx context.Context, store string) (*inventory.Report, error) {
	latest, ok, err := s.latestDate(ctx, store)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &inventory.Report{SoldOut: []domain.ProductFinding{}, SlowMoving: []domain.ProductFinding{}}, nil
	}

	batch, err := s.repo.FetchRecords(ctx, store, latest.AddDate(0, 0, -historyLookbackDays), latest)
	if err != nil {
		return nil, err
	}

	report := inventory.Classify(batch, latest)
	return &report, nil
}

// ChurnedCustomers runs churn detection as of the latest available date.
func (s *AnalysisService) ChurnedCustomers(ctx context.Context, store string, params churn.Params) (*churn.Report, error) {
	if params.LookbackDays <= 0 {
		params.LookbackDays = s.churnParams.LookbackDays
	}
	if params.MinOrders <= 0 {
		params.MinOrders = s.churnParams.MinOrders
	}
	if params.NoOrderDays <= 0 {
		params.NoOrderDays = s.churnParams.NoOrderDays
	}

	latest, ok, err := s.latestDate(ctx, store)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &churn.Report{Churned: []domain.CustomerFinding{}}, nil
	}

	batch, err := s.repo.FetchRecords(ctx, store, latest.AddDate(0, 0, -params.LookbackDays), latest)
	if err != nil {
		return nil, err
	}

	orders, err := s.aggregator.Aggregate(batch)
	if err != nil {
		return nil, err
	}

	report, err := churn.Detect(orders, latest, params)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// AvailableDates lists the most recent sale dates for the store.
func (s *AnalysisService) AvailableDates(ctx context.Context, store string, limit int) ([]time.Time, error) {
	return s.repo.AvailableDates(ctx, store, limit)
}

// Stores lists known stores.
func (s *AnalysisService) Stores(ctx context.Context) ([]string, error) {
	return s.repo.Stores(ctx)
}

// buildSnapshot fetches the raw history for the request, resolves the
// comparison windows against the actual data span, and aggregates once.
// A nil snapshot with nil error means no data: a normal business state.
func (s *AnalysisService) buildSnapshot(ctx context.Context, req Request) (*snapshot, error) {
	var (
		windows domain.WindowPair
		batch   domain.RecordBatch
		err     error
	)

	if req.custom() {
		windows, err = timewindow.CustomRange(*req.Start, *req.End)
		if err != nil {
			return nil, err
		}
		batch, err = s.repo.FetchRecords(ctx, req.Store, windows.Previous.Start, windows.Current.End)
		if err != nil {
			return nil, err
		}
		if batch.Empty() {
			return nil, nil
		}
	} else {
		period := req.PeriodDays
		if period <= 0 {
			period = timewindow.PeriodWeek
		}

		latest, ok, err := s.latestDate(ctx, req.Store)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		batch, err = s.repo.FetchRecords(ctx, req.Store, latest.AddDate(0, 0, -historyLookbackDays), latest)
		if err != nil {
			return nil, err
		}
		if batch.Empty() {
			return nil, nil
		}

		earliest, latestData, _ := batch.DateSpan()
		windows, err = timewindow.Resolve(earliest, latestData, period)
		if err != nil {
			return nil, err
		}
	}

	orders, err := s.aggregator.Aggregate(batch)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		batch:   batch,
		orders:  orders,
		windows: windows,
		asOf:    windows.Current.End,
	}, nil
}

func (s *AnalysisService) latestDate(ctx context.Context, store string) (time.Time, bool, error) {
	dates, err := s.repo.AvailableDates(ctx, store, 1)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(dates) == 0 {
		return time.Time{}, false, nil
	}
	return domain.Day(dates[0]), true, nil
}

// windowOrders narrows an order set to the orders placed inside a window.
func (s *AnalysisService) windowOrders(set domain.OrderSet, w domain.TimeWindow) domain.OrderSet {
	out := domain.OrderSet{
		Orders: make([]domain.Order, 0, len(set.Orders)),
		Fields: set.Fields,
	}
	for _, o := range set.Orders {
		if !w.Contains(o.PlacedAt) {
			continue
		}
		out.Orders = append(out.Orders, o)
		if o.FeeAnomaly {
			out.Excluded++
		}
	}
	return out
}

func (s *AnalysisService) periodMetrics(set domain.OrderSet, w domain.TimeWindow) PeriodMetrics {
	m := PeriodMetrics{}
	for _, o := range set.Orders {
		if !w.Contains(o.PlacedAt) || o.FeeAnomaly {
			continue
		}
		m.Orders++
		m.Quantity += o.Quantity
		m.Revenue = m.Revenue.Add(o.Revenue)
		m.Cost = m.Cost.Add(o.Cost)
		m.ActualProfit = m.ActualProfit.Add(o.ActualProfit)
		if o.ActualProfit.IsNegative() {
			m.Overflow++
		}
	}
	if m.Orders > 0 {
		m.AvgOrderValue = m.Revenue.DivRound(decimal.NewFromInt(int64(m.Orders)), 2)
	}
	return m
}
