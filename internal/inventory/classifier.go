// Package inventory classifies products into sold-out and slow-moving
// risk categories from their raw sale/stock history.
package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
)

// soldOutRecencyDays is the trailing window a product must have sold in for
// zero stock to count as "sold out" rather than "discontinued long ago".
const soldOutRecencyDays = 7

// Tier boundaries on days without sale, half-open and non-overlapping.
const (
	watchFloor  = 3
	lightFloor  = 7
	mediumFloor = 15
	heavyFloor  = 30
)

// Report is the outcome of one classification pass. Sold-out and
// slow-moving are disjoint: zero-stock products are never tiered.
type Report struct {
	SoldOut    []domain.ProductFinding `json:"sold_out"`
	SlowMoving []domain.ProductFinding `json:"slow_moving"`
	Summary    Summary                 `json:"summary"`
}

type Summary struct {
	ProductsSeen    int                     `json:"products_seen"`
	SoldOutCount    int                     `json:"sold_out_count"`
	SlowMovingCount int                     `json:"slow_moving_count"`
	TierCounts      map[domain.SlowTier]int `json:"tier_counts"`
	SlowStockValue  decimal.Decimal         `json:"slow_stock_value"`
}

// productState is the per-product view derived from the record stream:
// first appearance, last sale, and last known stock at the as-of date.
type productState struct {
	code      string
	name      string
	category  string
	firstSeen time.Time
	lastSale  time.Time
	hasSale   bool
	stock     int
	stockAt   time.Time
	unitCost  decimal.Decimal
}

// Classify runs the sold-out and slow-moving classifiers over the batch as
// of the given date. Records after asOf are ignored.
func Classify(batch domain.RecordBatch, asOf time.Time) Report {
	asOf = domain.Day(asOf)
	states := buildStates(batch.Records, asOf)

	report := Report{
		SoldOut:    make([]domain.ProductFinding, 0),
		SlowMoving: make([]domain.ProductFinding, 0),
		Summary: Summary{
			ProductsSeen: len(states),
			TierCounts:   make(map[domain.SlowTier]int),
		},
	}

	for _, st := range states {
		if st.stock <= 0 {
			if st.hasSale && domain.DaysBetween(st.lastSale, asOf) <= soldOutRecencyDays {
				report.SoldOut = append(report.SoldOut, soldOutFinding(st, asOf))
			}
			continue
		}

		days := daysWithoutSale(st, asOf)
		tier := tierFor(days)
		if tier == domain.SlowNone {
			continue
		}

		f := slowMovingFinding(st, asOf, days, tier)
		report.SlowMoving = append(report.SlowMoving, f)
		report.Summary.TierCounts[tier]++
		report.Summary.SlowStockValue = report.Summary.SlowStockValue.Add(f.StockValue)
	}

	sort.SliceStable(report.SoldOut, func(i, j int) bool {
		if !report.SoldOut[i].LastSaleAt.Equal(report.SoldOut[j].LastSaleAt) {
			return report.SoldOut[i].LastSaleAt.After(report.SoldOut[j].LastSaleAt)
		}
		return report.SoldOut[i].ProductCode < report.SoldOut[j].ProductCode
	})
	sort.SliceStable(report.SlowMoving, func(i, j int) bool {
		if report.SlowMoving[i].DaysWithoutSale != report.SlowMoving[j].DaysWithoutSale {
			return report.SlowMoving[i].DaysWithoutSale > report.SlowMoving[j].DaysWithoutSale
		}
		return report.SlowMoving[i].ProductCode < report.SlowMoving[j].ProductCode
	})

	report.Summary.SoldOutCount = len(report.SoldOut)
	report.Summary.SlowMovingCount = len(report.SlowMoving)
	return report
}

// buildStates folds the raw rows into per-product state. Products are keyed
// by product code when present, name otherwise.
func buildStates(records []domain.RawSaleRecord, asOf time.Time) map[string]*productState {
	states := make(map[string]*productState)
	for _, r := range records {
		day := domain.Day(r.SoldAt)
		if day.After(asOf) {
			continue
		}

		key := r.ProductCode
		if key == "" {
			key = r.ProductName
		}
		if key == "" {
			continue
		}

		st, ok := states[key]
		if !ok {
			st = &productState{
				code:      r.ProductCode,
				name:      r.ProductName,
				category:  r.Category,
				firstSeen: day,
				stock:     r.Stock,
				stockAt:   day,
				unitCost:  r.UnitCost,
			}
			states[key] = st
		}

		if day.Before(st.firstSeen) {
			st.firstSeen = day
		}
		// Last known stock is the stock on the most recent row at or
		// before asOf.
		if !day.Before(st.stockAt) {
			st.stock = r.Stock
			st.stockAt = day
			st.unitCost = r.UnitCost
		}
		if r.Quantity > 0 && (!st.hasSale || day.After(st.lastSale)) {
			st.lastSale = day
			st.hasSale = true
		}
	}
	return states
}

// daysWithoutSale anchors to the product's first appearance when it has
// only ever sold on that first day (or never sold at all). Without this a
// product entering the dataset mid-window would look long slow-moving just
// because observation started after its natural sale date.
func daysWithoutSale(st *productState, asOf time.Time) int {
	if !st.hasSale || st.lastSale.Equal(st.firstSeen) {
		return domain.DaysBetween(st.firstSeen, asOf)
	}
	return domain.DaysBetween(st.lastSale, asOf)
}

func tierFor(days int) domain.SlowTier {
	switch {
	case days >= heavyFloor:
		return domain.SlowHeavy
	case days >= mediumFloor:
		return domain.SlowMedium
	case days >= lightFloor:
		return domain.SlowLight
	case days >= watchFloor:
		return domain.SlowWatch
	default:
		return domain.SlowNone
	}
}

func tierSeverity(tier domain.SlowTier) domain.Severity {
	switch tier {
	case domain.SlowHeavy:
		return domain.SeverityCritical
	case domain.SlowMedium, domain.SlowLight:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

func soldOutFinding(st *productState, asOf time.Time) domain.ProductFinding {
	return domain.ProductFinding{
		ProductCode:     st.code,
		ProductName:     st.name,
		Category:        st.category,
		Reason:          domain.ReasonSoldOut,
		Severity:        domain.SeverityCritical,
		Stock:           0,
		LastSaleAt:      st.lastSale,
		FirstSeenAt:     st.firstSeen,
		DaysWithoutSale: domain.DaysBetween(st.lastSale, asOf),
	}
}

func slowMovingFinding(st *productState, asOf time.Time, days int, tier domain.SlowTier) domain.ProductFinding {
	return domain.ProductFinding{
		ProductCode:     st.code,
		ProductName:     st.name,
		Category:        st.category,
		Reason:          domain.ReasonSlowMoving,
		Severity:        tierSeverity(tier),
		Tier:            tier,
		Stock:           st.stock,
		DaysWithoutSale: days,
		LastSaleAt:      st.lastSale,
		FirstSeenAt:     st.firstSeen,
		StockValue:      st.unitCost.Mul(decimal.NewFromInt(int64(st.stock))),
	}
}
