// Package diagnose implements the threshold rules run over the aggregated
// order snapshot: overflow orders, delivery-cost overruns, traffic-drop
// products, and marketing-induced losses. Every rule is a pure function of
// its input snapshot: re-running a rule on unchanged data yields the same
// findings in the same order.
package diagnose

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
)

// DefaultDeliveryFeeThreshold flags orders whose delivery fee alone exceeds
// this amount while also exceeding the order's margin.
var DefaultDeliveryFeeThreshold = decimal.NewFromInt(6)

// heavyLossFloor escalates an order finding to critical.
var heavyLossFloor = decimal.NewFromInt(10)

type Engine struct {
	deliveryFeeThreshold decimal.Decimal
	trafficDropRate      float64
	trafficMinSales      int
}

type Option func(*Engine)

func WithDeliveryFeeThreshold(t decimal.Decimal) Option {
	return func(e *Engine) { e.deliveryFeeThreshold = t }
}

func WithTrafficRule(minSales int, dropRate float64) Option {
	return func(e *Engine) {
		e.trafficMinSales = minSales
		e.trafficDropRate = dropRate
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		deliveryFeeThreshold: DefaultDeliveryFeeThreshold,
		trafficDropRate:      0.5,
		trafficMinSales:      5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OrderReport is the ranked finding list plus aggregate counters an
// order-level rule produces.
type OrderReport struct {
	Findings []domain.OrderFinding `json:"findings"`
	Summary  OrderSummary          `json:"summary"`
}

type OrderSummary struct {
	OrdersChecked int             `json:"orders_checked"`
	Flagged       int             `json:"flagged"`
	Excluded      int             `json:"excluded_anomalies"`
	TotalLoss     decimal.Decimal `json:"total_loss"`
}

// OverflowOrders flags every order whose actual profit is negative, ranked
// by loss amount.
func (e *Engine) OverflowOrders(set domain.OrderSet) OrderReport {
	orders := set.Valid()
	report := OrderReport{
		Findings: make([]domain.OrderFinding, 0),
		Summary:  OrderSummary{OrdersChecked: len(orders), Excluded: set.Excluded},
	}

	for _, o := range orders {
		if !o.ActualProfit.IsNegative() {
			continue
		}
		loss := o.ActualProfit.Neg()
		report.Findings = append(report.Findings, domain.OrderFinding{
			OrderID:      o.OrderID,
			Store:        o.Store,
			Channel:      o.Channel,
			PlacedAt:     o.PlacedAt,
			Reason:       domain.ReasonOverflow,
			Severity:     lossSeverity(loss),
			ActualProfit: o.ActualProfit,
			LossAmount:   loss,
		})
		report.Summary.TotalLoss = report.Summary.TotalLoss.Add(loss)
	}

	rankByLoss(report.Findings)
	report.Summary.Flagged = len(report.Findings)
	return report
}

// HighDeliveryOrders flags orders whose delivery fee exceeds the threshold
// and whose actual profit does not even cover that fee.
func (e *Engine) HighDeliveryOrders(set domain.OrderSet) OrderReport {
	orders := set.Valid()
	report := OrderReport{
		Findings: make([]domain.OrderFinding, 0),
		Summary:  OrderSummary{OrdersChecked: len(orders), Excluded: set.Excluded},
	}

	for _, o := range orders {
		if !o.DeliveryFee.GreaterThan(e.deliveryFeeThreshold) || !o.ActualProfit.LessThan(o.DeliveryFee) {
			continue
		}
		loss := o.DeliveryFee.Sub(o.ActualProfit)
		report.Findings = append(report.Findings, domain.OrderFinding{
			OrderID:      o.OrderID,
			Store:        o.Store,
			Channel:      o.Channel,
			PlacedAt:     o.PlacedAt,
			Reason:       domain.ReasonHighDeliveryFee,
			Severity:     lossSeverity(loss),
			ActualProfit: o.ActualProfit,
			LossAmount:   loss,
			DeliveryFee:  o.DeliveryFee,
		})
		report.Summary.TotalLoss = report.Summary.TotalLoss.Add(loss)
	}

	rankByLoss(report.Findings)
	report.Summary.Flagged = len(report.Findings)
	return report
}

// MarketingReport breaks marketing-induced losses down per discount type.
type MarketingReport struct {
	Findings []domain.OrderFinding            `json:"findings"`
	ByType   map[domain.Field]decimal.Decimal `json:"by_type"`
	Summary  OrderSummary                     `json:"summary"`
}

// MarketingLoss flags loss-making orders that carried marketing discounts,
// attributing the discount spend per type.
func (e *Engine) MarketingLoss(set domain.OrderSet) MarketingReport {
	orders := set.Valid()
	report := MarketingReport{
		Findings: make([]domain.OrderFinding, 0),
		ByType:   make(map[domain.Field]decimal.Decimal, len(domain.DiscountFields)),
		Summary:  OrderSummary{OrdersChecked: len(orders), Excluded: set.Excluded},
	}
	for _, f := range domain.DiscountFields {
		report.ByType[f] = decimal.Zero
	}

	for _, o := range orders {
		discountTotal := o.Discounts.Total()
		if !o.ActualProfit.IsNegative() || !discountTotal.IsPositive() {
			continue
		}
		loss := o.ActualProfit.Neg()
		report.Findings = append(report.Findings, domain.OrderFinding{
			OrderID:       o.OrderID,
			Store:         o.Store,
			Channel:       o.Channel,
			PlacedAt:      o.PlacedAt,
			Reason:        domain.ReasonMarketingLoss,
			Severity:      lossSeverity(loss),
			ActualProfit:  o.ActualProfit,
			LossAmount:    loss,
			DiscountTotal: discountTotal,
		})
		report.Summary.TotalLoss = report.Summary.TotalLoss.Add(loss)
		for field, amount := range o.Discounts.ByType() {
			report.ByType[field] = report.ByType[field].Add(amount)
		}
	}

	rankByLoss(report.Findings)
	report.Summary.Flagged = len(report.Findings)
	return report
}

// TrafficReport lists products whose sales dropped period-over-period.
type TrafficReport struct {
	Findings []domain.ProductFinding `json:"findings"`
	Summary  TrafficSummary          `json:"summary"`
	Windows  domain.WindowPair       `json:"windows"`
}

type TrafficSummary struct {
	ProductsChecked int `json:"products_checked"`
	Flagged         int `json:"flagged"`
	StockOut        int `json:"stock_out"`
	Organic         int `json:"organic"`
}

type trafficState struct {
	code       string
	name       string
	category   string
	currentQty int
	priorQty   int
	stock      int
	stockAt    int64
}

// TrafficDrop compares per-product quantities between the pair's windows
// and flags products whose prior-period sales collapsed. Each finding is
// tagged stock-out (no stock left to sell) or organic decline.
func (e *Engine) TrafficDrop(batch domain.RecordBatch, pair domain.WindowPair) TrafficReport {
	states := make(map[string]*trafficState)
	for _, r := range batch.Records {
		key := r.ProductCode
		if key == "" {
			key = r.ProductName
		}
		if key == "" {
			continue
		}
		st, ok := states[key]
		if !ok {
			st = &trafficState{code: r.ProductCode, name: r.ProductName, category: r.Category}
			states[key] = st
		}

		switch {
		case pair.Current.Contains(r.SoldAt):
			st.currentQty += r.Quantity
		case pair.Previous.Contains(r.SoldAt):
			st.priorQty += r.Quantity
		}
		if day := domain.Day(r.SoldAt); !day.After(pair.Current.End) && day.Unix() >= st.stockAt {
			st.stock = r.Stock
			st.stockAt = day.Unix()
		}
	}

	report := TrafficReport{
		Findings: make([]domain.ProductFinding, 0),
		Summary:  TrafficSummary{ProductsChecked: len(states)},
		Windows:  pair,
	}

	for _, st := range states {
		if st.priorQty < e.trafficMinSales {
			continue
		}
		dropRate := float64(st.priorQty-st.currentQty) / float64(st.priorQty)
		if dropRate <= e.trafficDropRate {
			continue
		}

		reason := domain.ReasonTrafficOrganic
		severity := domain.SeverityWarning
		if st.stock <= 0 {
			reason = domain.ReasonTrafficStockOut
			severity = domain.SeverityCritical
			report.Summary.StockOut++
		} else {
			report.Summary.Organic++
		}

		report.Findings = append(report.Findings, domain.ProductFinding{
			ProductCode: st.code,
			ProductName: st.name,
			Category:    st.category,
			Reason:      reason,
			Severity:    severity,
			Stock:       st.stock,
			CurrentQty:  st.currentQty,
			PriorQty:    st.priorQty,
			DropRate:    dropRate,
		})
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		if report.Findings[i].DropRate != report.Findings[j].DropRate {
			return report.Findings[i].DropRate > report.Findings[j].DropRate
		}
		return report.Findings[i].ProductCode < report.Findings[j].ProductCode
	})
	report.Summary.Flagged = len(report.Findings)
	return report
}

func lossSeverity(loss decimal.Decimal) domain.Severity {
	if loss.GreaterThanOrEqual(heavyLossFloor) {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func rankByLoss(findings []domain.OrderFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if !findings[i].LossAmount.Equal(findings[j].LossAmount) {
			return findings[i].LossAmount.GreaterThan(findings[j].LossAmount)
		}
		return findings[i].OrderID < findings[j].OrderID
	})
}
