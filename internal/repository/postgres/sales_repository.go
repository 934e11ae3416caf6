package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
)

// SalesRepository reads raw sale records from the canonical
// raw_sale_records table populated by the ingest loader.
type SalesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// saleRow is the flat scan target; the discount columns are folded back
// into the domain record's DiscountSet.
type saleRow struct {
	OrderID         string          `db:"order_id"`
	Store           string          `db:"store"`
	Channel         string          `db:"channel"`
	ProductCode     string          `db:"product_code"`
	ProductName     string          `db:"product_name"`
	Category        string          `db:"category"`
	OrigUnitPrice   decimal.Decimal `db:"orig_unit_price"`
	ActualUnitPrice decimal.Decimal `db:"actual_unit_price"`
	Quantity        int             `db:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost"`
	Profit          decimal.Decimal `db:"profit"`
	DeliveryFee     decimal.Decimal `db:"delivery_fee"`
	PlatformFee     decimal.Decimal `db:"platform_fee"`
	CorporateRebate decimal.Decimal `db:"corporate_rebate"`
	UserPaidDeliver decimal.Decimal `db:"user_paid_delivery"`
	DeliveryWaiver  decimal.Decimal `db:"delivery_waiver"`
	FullReduction   decimal.Decimal `db:"discount_full_reduction"`
	DiscDelivery    decimal.Decimal `db:"discount_delivery"`
	DiscItem        decimal.Decimal `db:"discount_item"`
	DiscCoupon      decimal.Decimal `db:"discount_coupon"`
	DiscMerchant    decimal.Decimal `db:"discount_merchant"`
	DiscNewCustomer decimal.Decimal `db:"discount_new_customer"`
	DiscPlatform    decimal.Decimal `db:"discount_platform"`
	Stock           int             `db:"stock"`
	Address         string          `db:"address"`
	SoldAt          time.Time       `db:"sold_at"`
}

const selectColumns = `
	order_id, store, channel, product_code, product_name, category,
	orig_unit_price, actual_unit_price, quantity, unit_cost, profit,
	delivery_fee, platform_fee, corporate_rebate, user_paid_delivery,
	delivery_waiver, discount_full_reduction, discount_delivery,
	discount_item, discount_coupon, discount_merchant,
	discount_new_customer, discount_platform, stock, address, sold_at`

func (r *SalesRepository) FetchRecords(ctx context.Context, store string, from, to time.Time) (domain.RecordBatch, error) {
	release, err := r.db.acquire(ctx)
	if err != nil {
		return domain.RecordBatch{}, err
	}
	defer release()

	query := fmt.Sprintf(`
		SELECT %s
		FROM raw_sale_records
		WHERE sold_at >= $1 AND sold_at < $2
		  AND ($3 = '' OR store = $3)
		ORDER BY sold_at, order_id`, selectColumns)

	var rows []saleRow
	// to is inclusive at day granularity
	if err := r.db.SelectContext(ctx, &rows, query, domain.Day(from), domain.Day(to).AddDate(0, 0, 1), store); err != nil {
		return domain.RecordBatch{}, fmt.Errorf("fetch raw sale records: %w", err)
	}

	batch := domain.RecordBatch{
		Fields:  canonicalFields(),
		Records: make([]domain.RawSaleRecord, 0, len(rows)),
	}
	for _, row := range rows {
		batch.Records = append(batch.Records, row.toDomain())
	}
	return batch, nil
}

func (r *SalesRepository) AvailableDates(ctx context.Context, store string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 90
	}

	query := `
		SELECT DISTINCT date_trunc('day', sold_at) AS day
		FROM raw_sale_records
		WHERE ($1 = '' OR store = $1)
		ORDER BY day DESC
		LIMIT $2`

	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, store, limit); err != nil {
		return nil, fmt.Errorf("fetch available dates: %w", err)
	}
	return dates, nil
}

func (r *SalesRepository) Stores(ctx context.Context) ([]string, error) {
	var stores []string
	if err := r.db.SelectContext(ctx, &stores, `SELECT DISTINCT store FROM raw_sale_records ORDER BY store`); err != nil {
		return nil, fmt.Errorf("fetch stores: %w", err)
	}
	return stores, nil
}

func (row saleRow) toDomain() domain.RawSaleRecord {
	return domain.RawSaleRecord{
		OrderID:         row.OrderID,
		Store:           row.Store,
		Channel:         row.Channel,
		ProductCode:     row.ProductCode,
		ProductName:     row.ProductName,
		Category:        row.Category,
		OrigUnitPrice:   row.OrigUnitPrice,
		ActualUnitPrice: row.ActualUnitPrice,
		Quantity:        row.Quantity,
		UnitCost:        row.UnitCost,
		Profit:          row.Profit,
		DeliveryFee:     row.DeliveryFee,
		PlatformFee:     row.PlatformFee,
		CorporateRebate: row.CorporateRebate,
		UserPaidDeliver: row.UserPaidDeliver,
		DeliveryWaiver:  row.DeliveryWaiver,
		Discounts: domain.DiscountSet{
			FullReduction: row.FullReduction,
			Delivery:      row.DiscDelivery,
			Item:          row.DiscItem,
			Coupon:        row.DiscCoupon,
			Merchant:      row.DiscMerchant,
			NewCustomer:   row.DiscNewCustomer,
			Platform:      row.DiscPlatform,
		},
		Stock:   row.Stock,
		Address: row.Address,
		SoldAt:  row.SoldAt,
	}
}

// canonicalFields marks every canonical column present: the table schema
// is the canonical schema, so a fetch never narrows the field set.
func canonicalFields() domain.FieldSet {
	fs := make(domain.FieldSet)
	for _, f := range []domain.Field{
		domain.FieldOrderID, domain.FieldStore, domain.FieldChannel,
		domain.FieldProductCode, domain.FieldProductName, domain.FieldCategory,
		domain.FieldOrigUnitPrice, domain.FieldActualUnitPrice, domain.FieldQuantity,
		domain.FieldUnitCost, domain.FieldProfit, domain.FieldDeliveryFee,
		domain.FieldPlatformFee, domain.FieldCorporateRebate,
		domain.FieldUserPaidDeliver, domain.FieldDeliveryWaiver,
		domain.FieldStock, domain.FieldAddress, domain.FieldSoldAt,
	} {
		fs[f] = true
	}
	for _, f := range domain.DiscountFields {
		fs[f] = true
	}
	return fs
}
