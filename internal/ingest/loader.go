// Package ingest loads raw platform CSV exports into the canonical
// raw_sale_records table. Column names are resolved through the schema
// alias table once here, at the ingestion boundary; everything after this
// point works with canonical typed records.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/storeops/o2o-insight/internal/domain"
	"github.com/storeops/o2o-insight/internal/schema"
)

type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Result reports what one file import did.
type Result struct {
	Processed int
	Skipped   int
	Fields    domain.FieldSet
}

const upsertQuery = `
	INSERT INTO raw_sale_records (
		order_id, store, channel, product_code, product_name, category,
		orig_unit_price, actual_unit_price, quantity, unit_cost, profit,
		delivery_fee, platform_fee, corporate_rebate, user_paid_delivery,
		delivery_waiver, discount_full_reduction, discount_delivery,
		discount_item, discount_coupon, discount_merchant,
		discount_new_customer, discount_platform, stock, address, sold_at,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, NOW(), NOW()
	)
	ON CONFLICT (order_id, product_code, sold_at)
	DO UPDATE SET
		quantity = EXCLUDED.quantity,
		stock = EXCLUDED.stock,
		profit = EXCLUDED.profit,
		actual_unit_price = EXCLUDED.actual_unit_price,
		updated_at = NOW()`

// LoadCSV imports one export file. Rows without an order id are skipped
// and counted; a file whose header has no resolvable order id or date
// column fails outright.
func (l *Loader) LoadCSV(ctx context.Context, path, storeOverride string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	projection := schema.Resolve(schema.KindOrder, header)
	if err := projection.Fields.Require(domain.FieldOrderID, domain.FieldSoldAt); err != nil {
		return nil, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	result := &Result{Fields: projection.Fields}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}

		record, ok := parseRow(projection, row, storeOverride)
		if !ok {
			result.Skipped++
			continue
		}

		if _, err := stmt.ExecContext(ctx,
			record.OrderID, record.Store, record.Channel, record.ProductCode,
			record.ProductName, record.Category, record.OrigUnitPrice,
			record.ActualUnitPrice, record.Quantity, record.UnitCost,
			record.Profit, record.DeliveryFee, record.PlatformFee,
			record.CorporateRebate, record.UserPaidDeliver,
			record.DeliveryWaiver, record.Discounts.FullReduction,
			record.Discounts.Delivery, record.Discounts.Item,
			record.Discounts.Coupon, record.Discounts.Merchant,
			record.Discounts.NewCustomer, record.Discounts.Platform,
			record.Stock, record.Address, record.SoldAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}

		result.Processed++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("file", path).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Msg("imported sale records")

	return result, nil
}

func parseRow(p schema.Projection, row []string, storeOverride string) (domain.RawSaleRecord, bool) {
	record := domain.RawSaleRecord{
		OrderID:     cell(p, row, domain.FieldOrderID),
		Store:       cell(p, row, domain.FieldStore),
		Channel:     strings.ToLower(cell(p, row, domain.FieldChannel)),
		ProductCode: cell(p, row, domain.FieldProductCode),
		ProductName: cell(p, row, domain.FieldProductName),
		Category:    cell(p, row, domain.FieldCategory),
		Address:     cell(p, row, domain.FieldAddress),
	}
	if record.OrderID == "" {
		return record, false
	}
	if storeOverride != "" {
		record.Store = storeOverride
	}

	soldAt, ok := parseDate(cell(p, row, domain.FieldSoldAt))
	if !ok {
		return record, false
	}
	record.SoldAt = soldAt

	record.OrigUnitPrice = parseAmount(cell(p, row, domain.FieldOrigUnitPrice))
	record.ActualUnitPrice = parseAmount(cell(p, row, domain.FieldActualUnitPrice))
	record.UnitCost = parseAmount(cell(p, row, domain.FieldUnitCost))
	record.Profit = parseAmount(cell(p, row, domain.FieldProfit))
	record.DeliveryFee = parseAmount(cell(p, row, domain.FieldDeliveryFee))
	record.PlatformFee = parseAmount(cell(p, row, domain.FieldPlatformFee))
	record.CorporateRebate = parseAmount(cell(p, row, domain.FieldCorporateRebate))
	record.UserPaidDeliver = parseAmount(cell(p, row, domain.FieldUserPaidDeliver))
	record.DeliveryWaiver = parseAmount(cell(p, row, domain.FieldDeliveryWaiver))
	record.Discounts = domain.DiscountSet{
		FullReduction: parseAmount(cell(p, row, domain.FieldDiscountFullReduction)),
		Delivery:      parseAmount(cell(p, row, domain.FieldDiscountDelivery)),
		Item:          parseAmount(cell(p, row, domain.FieldDiscountItem)),
		Coupon:        parseAmount(cell(p, row, domain.FieldDiscountCoupon)),
		Merchant:      parseAmount(cell(p, row, domain.FieldDiscountMerchant)),
		NewCustomer:   parseAmount(cell(p, row, domain.FieldDiscountNewCustomer)),
		Platform:      parseAmount(cell(p, row, domain.FieldDiscountPlatform)),
	}
	record.Quantity, _ = strconv.Atoi(cell(p, row, domain.FieldQuantity))
	record.Stock, _ = strconv.Atoi(cell(p, row, domain.FieldStock))

	return record, true
}

func cell(p schema.Projection, row []string, field domain.Field) string {
	idx, ok := p.Index(field)
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseDate tries the formats seen across platform export versions.
func parseDate(s string) (time.Time, bool) {
	if s == "" || s == "0000-00-00 00:00:00" {
		return time.Time{}, false
	}
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/1/2 15:04",
		"2006/1/2",
		"20060102",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
