package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity tiers a diagnostic finding for prioritization.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Reason codes attached to findings.
const (
	ReasonOverflow        = "overflow"
	ReasonHighDeliveryFee = "high_delivery_fee"
	ReasonMarketingLoss   = "marketing_loss"
	ReasonSoldOut         = "sold_out"
	ReasonSlowMoving      = "slow_moving"
	ReasonTrafficStockOut = "traffic_drop_stock_out"
	ReasonTrafficOrganic  = "traffic_drop_organic"
	ReasonChurned         = "churned"
)

// OrderFinding flags a single order with a reason and a loss magnitude.
type OrderFinding struct {
	OrderID       string          `json:"order_id"`
	Store         string          `json:"store"`
	Channel       string          `json:"channel"`
	PlacedAt      time.Time       `json:"placed_at"`
	Reason        string          `json:"reason"`
	Severity      Severity        `json:"severity"`
	ActualProfit  decimal.Decimal `json:"actual_profit"`
	LossAmount    decimal.Decimal `json:"loss_amount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee,omitempty"`
	DiscountTotal decimal.Decimal `json:"discount_total,omitempty"`
}

// SlowTier is the slow-moving classification of an in-stock product.
type SlowTier string

const (
	SlowNone   SlowTier = ""
	SlowWatch  SlowTier = "watch"
	SlowLight  SlowTier = "light"
	SlowMedium SlowTier = "medium"
	SlowHeavy  SlowTier = "heavy"
)

// ProductFinding flags a product for inventory or traffic diagnostics.
type ProductFinding struct {
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	Category        string          `json:"category,omitempty"`
	Reason          string          `json:"reason"`
	Severity        Severity        `json:"severity"`
	Tier            SlowTier        `json:"tier,omitempty"`
	Stock           int             `json:"stock"`
	DaysWithoutSale int             `json:"days_without_sale,omitempty"`
	LastSaleAt      time.Time       `json:"last_sale_at,omitempty"`
	FirstSeenAt     time.Time       `json:"first_seen_at,omitempty"`
	CurrentQty      int             `json:"current_qty,omitempty"`
	PriorQty        int             `json:"prior_qty,omitempty"`
	DropRate        float64         `json:"drop_rate,omitempty"`
	StockValue      decimal.Decimal `json:"stock_value,omitempty"`
}

// CustomerFinding flags a churned or at-risk customer proxy.
type CustomerFinding struct {
	AddressKey    string          `json:"address_key"`
	Address       string          `json:"address"`
	OrderCount    int             `json:"order_count"`
	TotalSpend    decimal.Decimal `json:"total_spend"`
	LastOrderAt   time.Time       `json:"last_order_at"`
	DaysSinceLast int             `json:"days_since_last"`
	Reason        string          `json:"reason"`
	Severity      Severity        `json:"severity"`
	RecallScore   float64         `json:"recall_score"`
}
