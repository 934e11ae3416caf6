// Package schema maps the heterogeneous column names of platform exports
// onto the canonical field set. Platform exports renamed columns several
// times over the years, so every canonical field keeps the full list of
// historical aliases. Resolution is a pure projection: aliases that match
// are mapped, everything else is left out, and downstream components check
// the resulting field set themselves.
package schema

import (
	"regexp"
	"strings"

	"github.com/storeops/o2o-insight/internal/domain"
)

// Kind selects which alias table applies to a dataset.
type Kind int

const (
	// KindOrder covers order/item-level sale exports.
	KindOrder Kind = iota
	// KindProduct covers product/stock snapshot exports.
	KindProduct
)

// Projection is the result of resolving a header row: for each canonical
// field that could be found, the index of its source column.
type Projection struct {
	Columns map[domain.Field]int
	Fields  domain.FieldSet
}

// Index returns the source column index for a canonical field.
func (p Projection) Index(f domain.Field) (int, bool) {
	i, ok := p.Columns[f]
	return i, ok
}

// orderAliases is the versioned alias table for order-level exports. The
// first alias in each list is the current export name; the rest are
// historical spellings still seen in older files.
var orderAliases = map[domain.Field][]string{
	domain.FieldOrderID:         {"order_id", "订单号", "订单编号", "orderid", "订单id"},
	domain.FieldStore:           {"store", "门店", "门店名称", "店铺名称"},
	domain.FieldChannel:         {"channel", "渠道", "平台", "订单渠道"},
	domain.FieldProductCode:     {"product_code", "商品编码", "商品条码", "sku", "货号"},
	domain.FieldProductName:     {"product_name", "商品名称", "商品", "品名"},
	domain.FieldCategory:        {"category", "分类", "商品分类", "类目"},
	domain.FieldOrigUnitPrice:   {"orig_unit_price", "原价", "商品原价", "单价"},
	domain.FieldActualUnitPrice: {"actual_unit_price", "实际售价", "实售价", "成交价"},
	domain.FieldQuantity:        {"quantity", "数量", "商品数量", "销量"},
	domain.FieldUnitCost:        {"unit_cost", "成本", "商品成本", "进货价"},
	domain.FieldProfit:          {"profit", "利润", "利润额", "毛利"},
	domain.FieldDeliveryFee:     {"delivery_fee", "配送费", "物流费", "运费"},
	domain.FieldPlatformFee:     {"platform_fee", "平台服务费", "服务费", "技术服务费"},
	domain.FieldCorporateRebate: {"corporate_rebate", "企业返利", "返利", "公司补贴"},
	domain.FieldUserPaidDeliver: {"user_paid_delivery", "用户支付配送费", "顾客配送费"},
	domain.FieldDeliveryWaiver:  {"delivery_waiver", "配送费减免", "运费减免"},
	domain.FieldStock:           {"stock", "库存", "剩余库存", "库存数量"},
	domain.FieldAddress:         {"address", "收货地址", "配送地址", "地址"},
	domain.FieldSoldAt:          {"sold_at", "下单时间", "订单时间", "日期", "销售日期"},

	domain.FieldDiscountFullReduction: {"discount_full_reduction", "满减优惠", "满减金额"},
	domain.FieldDiscountDelivery:      {"discount_delivery", "配送费优惠", "减配送费"},
	domain.FieldDiscountItem:          {"discount_item", "商品折扣", "单品折扣"},
	domain.FieldDiscountCoupon:        {"discount_coupon", "代金券", "优惠券金额"},
	domain.FieldDiscountMerchant:      {"discount_merchant", "商家活动支出", "商家承担活动费"},
	domain.FieldDiscountNewCustomer:   {"discount_new_customer", "新客立减", "首单减免"},
	domain.FieldDiscountPlatform:      {"discount_platform", "平台补贴", "平台承担活动费"},
}

// productAliases covers stock snapshot exports, which carry a subset of the
// order columns plus stock.
var productAliases = map[domain.Field][]string{
	domain.FieldProductCode: orderAliases[domain.FieldProductCode],
	domain.FieldProductName: orderAliases[domain.FieldProductName],
	domain.FieldCategory:    orderAliases[domain.FieldCategory],
	domain.FieldStore:       orderAliases[domain.FieldStore],
	domain.FieldStock:       orderAliases[domain.FieldStock],
	domain.FieldUnitCost:    orderAliases[domain.FieldUnitCost],
	domain.FieldQuantity:    orderAliases[domain.FieldQuantity],
	domain.FieldSoldAt:      orderAliases[domain.FieldSoldAt],
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeColumnName strips whitespace and lowercases an exported column
// name so aliases match regardless of spacing and case.
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\t", "")
	name = whitespace.ReplaceAllString(name, "")
	return strings.ToLower(name)
}

// Resolve projects a header row onto the canonical field set. Columns with
// no matching alias are ignored; canonical fields with no matching column
// are simply absent from the projection. Resolve never fails: the caller
// decides which fields it cannot live without.
func Resolve(kind Kind, header []string) Projection {
	aliases := orderAliases
	if kind == KindProduct {
		aliases = productAliases
	}

	normalized := make([]string, len(header))
	for i, col := range header {
		normalized[i] = NormalizeColumnName(col)
	}

	p := Projection{
		Columns: make(map[domain.Field]int),
		Fields:  make(domain.FieldSet),
	}

	for field, names := range aliases {
		idx := matchColumn(normalized, names)
		if idx < 0 {
			continue
		}
		p.Columns[field] = idx
		p.Fields[field] = true
	}

	return p
}

// matchColumn returns the index of the first column matching any alias,
// preferring earlier aliases (current names win over historical ones).
func matchColumn(columns []string, aliases []string) int {
	for _, alias := range aliases {
		for i, col := range columns {
			if col == alias {
				return i
			}
		}
	}
	return -1
}
