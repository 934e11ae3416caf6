package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/o2o-insight/internal/domain"
)

func TestResolveCurrentColumnNames(t *testing.T) {
	header := []string{"order_id", "store", "channel", "quantity", "delivery_fee", "sold_at"}
	p := Resolve(KindOrder, header)

	idx, ok := p.Index(domain.FieldOrderID)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = p.Index(domain.FieldDeliveryFee)
	require.True(t, ok)
	assert.Equal(t, 4, idx)
	assert.True(t, p.Fields.Has(domain.FieldSoldAt))
}

func TestResolveHistoricalAliases(t *testing.T) {
	header := []string{"订单号", "门店", "配送费", "商品名称", "下单时间", "数量"}
	p := Resolve(KindOrder, header)

	assert.True(t, p.Fields.Has(domain.FieldOrderID))
	assert.True(t, p.Fields.Has(domain.FieldStore))
	assert.True(t, p.Fields.Has(domain.FieldDeliveryFee))
	assert.True(t, p.Fields.Has(domain.FieldProductName))
	assert.True(t, p.Fields.Has(domain.FieldSoldAt))
	assert.True(t, p.Fields.Has(domain.FieldQuantity))
}

func TestResolveNormalizesSpacingAndCase(t *testing.T) {
	header := []string{" Order_ID ", "Delivery Fee\n", "\t数 量 "}
	p := Resolve(KindOrder, header)

	assert.True(t, p.Fields.Has(domain.FieldOrderID))
	assert.True(t, p.Fields.Has(domain.FieldQuantity))
	// "deliveryfee" is not an accepted alias once spaces collapse
	assert.False(t, p.Fields.Has(domain.FieldDeliveryFee))
}

func TestResolveIsSilentOnUnknownColumns(t *testing.T) {
	header := []string{"order_id", "mystery_column", "颜色"}
	p := Resolve(KindOrder, header)

	assert.True(t, p.Fields.Has(domain.FieldOrderID))
	assert.Len(t, p.Columns, 1, "unknown columns resolve to nothing, without error")
}

func TestResolveMissingFieldsAreAbsentNotDefaulted(t *testing.T) {
	p := Resolve(KindOrder, []string{"商品名称"})

	assert.False(t, p.Fields.Has(domain.FieldOrderID))
	err := p.Fields.Require(domain.FieldOrderID)
	require.Error(t, err)
	assert.True(t, domain.IsMissingField(err))
}

func TestResolvePrefersCurrentAliasOverHistorical(t *testing.T) {
	// both the current name and a historical alias present: current wins
	header := []string{"订单编号", "order_id"}
	p := Resolve(KindOrder, header)

	idx, ok := p.Index(domain.FieldOrderID)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestResolveProductKindSubset(t *testing.T) {
	header := []string{"商品编码", "库存", "order_id"}
	p := Resolve(KindProduct, header)

	assert.True(t, p.Fields.Has(domain.FieldProductCode))
	assert.True(t, p.Fields.Has(domain.FieldStock))
	// product datasets have no order id field at all
	assert.False(t, p.Fields.Has(domain.FieldOrderID))
}
