// Package churn identifies customers who ordered frequently in a lookback
// window but have gone quiet. Customers are a heuristic identity: orders
// are grouped by normalized delivery address, not by verified account.
package churn

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
)

// highRiskDays marks the days-since-last-order boundary between "at-risk"
// and "high-risk" churn.
const highRiskDays = 14

// Recall prioritization weights: lifetime value versus recency.
const (
	valueWeight   = 0.6
	recencyWeight = 0.4
)

type Params struct {
	LookbackDays int
	MinOrders    int
	NoOrderDays  int
}

type Report struct {
	Churned []domain.CustomerFinding `json:"churned"`
	Summary Summary                  `json:"summary"`
}

type Summary struct {
	CustomersSeen int             `json:"customers_seen"`
	ChurnedCount  int             `json:"churned_count"`
	HighRisk      int             `json:"high_risk"`
	AtRisk        int             `json:"at_risk"`
	ChurnedValue  decimal.Decimal `json:"churned_value"`
}

type customerStats struct {
	address    string
	orderCount int
	totalSpend decimal.Decimal
	lastOrder  time.Time
}

// Detect classifies customer proxies as churned based on order frequency
// inside the lookback window versus days since their last order.
func Detect(set domain.OrderSet, asOf time.Time, p Params) (Report, error) {
	if err := set.Fields.Require(domain.FieldAddress, domain.FieldSoldAt); err != nil {
		return Report{}, err
	}

	asOf = domain.Day(asOf)
	cutoff := asOf.AddDate(0, 0, -p.LookbackDays)

	stats := make(map[string]*customerStats)
	for _, o := range set.Orders {
		day := domain.Day(o.PlacedAt)
		if day.Before(cutoff) || day.After(asOf) {
			continue
		}
		key := NormalizeAddress(o.Address)
		if key == "" {
			continue
		}
		cs, ok := stats[key]
		if !ok {
			cs = &customerStats{address: o.Address}
			stats[key] = cs
		}
		cs.orderCount++
		cs.totalSpend = cs.totalSpend.Add(o.Revenue)
		if day.After(cs.lastOrder) {
			cs.lastOrder = day
		}
	}

	report := Report{
		Churned: make([]domain.CustomerFinding, 0),
		Summary: Summary{CustomersSeen: len(stats)},
	}

	for key, cs := range stats {
		daysSince := domain.DaysBetween(cs.lastOrder, asOf)
		if cs.orderCount < p.MinOrders || daysSince < p.NoOrderDays {
			continue
		}

		severity := domain.SeverityWarning
		if daysSince >= highRiskDays {
			severity = domain.SeverityCritical
		}

		report.Churned = append(report.Churned, domain.CustomerFinding{
			AddressKey:    key,
			Address:       cs.address,
			OrderCount:    cs.orderCount,
			TotalSpend:    cs.totalSpend,
			LastOrderAt:   cs.lastOrder,
			DaysSinceLast: daysSince,
			Reason:        domain.ReasonChurned,
			Severity:      severity,
		})
	}

	scoreRecall(report.Churned)
	sort.SliceStable(report.Churned, func(i, j int) bool {
		if report.Churned[i].RecallScore != report.Churned[j].RecallScore {
			return report.Churned[i].RecallScore > report.Churned[j].RecallScore
		}
		return report.Churned[i].AddressKey < report.Churned[j].AddressKey
	})

	for _, f := range report.Churned {
		report.Summary.ChurnedValue = report.Summary.ChurnedValue.Add(f.TotalSpend)
		if f.Severity == domain.SeverityCritical {
			report.Summary.HighRisk++
		} else {
			report.Summary.AtRisk++
		}
	}
	report.Summary.ChurnedCount = len(report.Churned)

	return report, nil
}

// scoreRecall ranks outreach candidates: 60% normalized lifetime value,
// 40% normalized recency (shorter time since churn scores higher).
func scoreRecall(findings []domain.CustomerFinding) {
	if len(findings) == 0 {
		return
	}

	maxSpend := decimal.Zero
	minDays, maxDays := findings[0].DaysSinceLast, findings[0].DaysSinceLast
	for _, f := range findings {
		if f.TotalSpend.GreaterThan(maxSpend) {
			maxSpend = f.TotalSpend
		}
		if f.DaysSinceLast < minDays {
			minDays = f.DaysSinceLast
		}
		if f.DaysSinceLast > maxDays {
			maxDays = f.DaysSinceLast
		}
	}

	for i := range findings {
		value := 1.0
		if maxSpend.IsPositive() {
			value, _ = findings[i].TotalSpend.Div(maxSpend).Float64()
		}
		recency := 1.0
		if maxDays > minDays {
			recency = float64(maxDays-findings[i].DaysSinceLast) / float64(maxDays-minDays)
		}
		findings[i].RecallScore = valueWeight*value + recencyWeight*recency
	}
}

// addressSeparators are the floor/unit markers normalized to a single
// token so "3栋2单元501" and "3-2-501" group to the same customer.
var addressSeparators = []string{"号楼", "单元", "栋", "幢", "楼", "室", "层", "#", "—", "–"}

// NormalizeAddress derives the customer proxy key from a delivery address:
// whitespace stripped, separators collapsed to "-".
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}
	for _, ws := range []string{" ", "\t", "　"} {
		addr = strings.ReplaceAll(addr, ws, "")
	}
	for _, sep := range addressSeparators {
		addr = strings.ReplaceAll(addr, sep, "-")
	}
	for strings.Contains(addr, "--") {
		addr = strings.ReplaceAll(addr, "--", "-")
	}
	return strings.Trim(addr, "-")
}
