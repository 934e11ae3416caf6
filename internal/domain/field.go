package domain

// Field names the canonical columns a raw sale dataset can carry. The
// schema resolver maps whatever aliases a platform export uses onto this
// set; everything downstream speaks only canonical names.
type Field string

const (
	FieldOrderID         Field = "order_id"
	FieldStore           Field = "store"
	FieldChannel         Field = "channel"
	FieldProductCode     Field = "product_code"
	FieldProductName     Field = "product_name"
	FieldCategory        Field = "category"
	FieldOrigUnitPrice   Field = "orig_unit_price"
	FieldActualUnitPrice Field = "actual_unit_price"
	FieldQuantity        Field = "quantity"
	FieldUnitCost        Field = "unit_cost"
	FieldProfit          Field = "profit"
	FieldDeliveryFee     Field = "delivery_fee"
	FieldPlatformFee     Field = "platform_fee"
	FieldCorporateRebate Field = "corporate_rebate"
	FieldUserPaidDeliver Field = "user_paid_delivery"
	FieldDeliveryWaiver  Field = "delivery_waiver"
	FieldStock           Field = "stock"
	FieldAddress         Field = "address"
	FieldSoldAt          Field = "sold_at"

	FieldDiscountFullReduction Field = "discount_full_reduction"
	FieldDiscountDelivery      Field = "discount_delivery"
	FieldDiscountItem          Field = "discount_item"
	FieldDiscountCoupon        Field = "discount_coupon"
	FieldDiscountMerchant      Field = "discount_merchant"
	FieldDiscountNewCustomer   Field = "discount_new_customer"
	FieldDiscountPlatform      Field = "discount_platform"
)

// DiscountFields lists the seven marketing discount columns in a stable order.
var DiscountFields = []Field{
	FieldDiscountFullReduction,
	FieldDiscountDelivery,
	FieldDiscountItem,
	FieldDiscountCoupon,
	FieldDiscountMerchant,
	FieldDiscountNewCustomer,
	FieldDiscountPlatform,
}

// FieldSet records which canonical fields were actually present in the
// source data. Optional fields may be absent; components requiring a field
// check here and narrow their behavior instead of assuming uniform schema.
type FieldSet map[Field]bool

func (fs FieldSet) Has(f Field) bool {
	return fs[f]
}

// Require returns a MissingFieldError naming the first absent field, or nil.
func (fs FieldSet) Require(fields ...Field) error {
	for _, f := range fields {
		if !fs[f] {
			return &MissingFieldError{Field: f}
		}
	}
	return nil
}
