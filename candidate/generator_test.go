package candidate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/domain"
)

func TestFeeAnomalyOrderProducesCandidate(t *testing.T) {
	g := New()
	rec := domain.CanonicalRecord{
		ID: "rec-1", SellerID: "seller-1", RecordType: domain.RecordOrder,
		TotalFees: decimal.NewFromFloat(12.50), Currency: "USD", RecordDate: time.Now(),
	}

	out := g.Generate([]domain.CanonicalRecord{rec})
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, domain.CategoryFeeError, c.Category)
	assert.Equal(t, domain.SubcategoryOrderFee, c.Subcategory)
	assert.Equal(t, domain.ReasonPotentialFeeOvercharge, c.ReasonCode)
	assert.True(t, c.Amount.Equal(decimal.NewFromFloat(12.50)))
	assert.Equal(t, "fee_anomaly_order", c.Rule)
	assert.Equal(t, "rec-1", c.SourceRecordID)
	assert.Equal(t, domain.Deadline(c.DiscoveryDate), c.DeadlineDate)
}

func TestInventoryLossShipmentEstimatesMissingUnitPrice(t *testing.T) {
	g := New()
	rec := domain.CanonicalRecord{
		ID: "rec-2", SellerID: "seller-1", RecordType: domain.RecordShipment,
		MissingQuantity: 3, RecordDate: time.Now(),
	}

	out := g.Generate([]domain.CanonicalRecord{rec})
	require.Len(t, out, 1)
	c := out[0]
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(30)), "3 units * default unit price 10")
	assert.Equal(t, true, c.Metadata["price_estimated"])
	assert.Equal(t, domain.SubcategoryLostShipment, c.Subcategory)
}

func TestInventoryLossShipmentUsesDamagedSubcategory(t *testing.T) {
	g := New()
	rec := domain.CanonicalRecord{
		ID: "rec-3", SellerID: "seller-1", RecordType: domain.RecordShipment,
		MissingQuantity: 2, UnitPrice: decimal.NewFromInt(5), ShipmentStatus: domain.ShipmentDamaged,
		RecordDate: time.Now(),
	}

	out := g.Generate([]domain.CanonicalRecord{rec})
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, domain.SubcategoryDamagedGoods, c.Subcategory)
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, c.Metadata["price_estimated"])
}

func TestReturnDiscrepancyRequiresPositiveRefund(t *testing.T) {
	g := New()
	zero := domain.CanonicalRecord{ID: "rec-4", RecordType: domain.RecordReturn, RefundAmount: decimal.Zero}
	positive := domain.CanonicalRecord{ID: "rec-5", RecordType: domain.RecordReturn, RefundAmount: decimal.NewFromInt(9)}

	assert.Empty(t, g.Generate([]domain.CanonicalRecord{zero}))
	out := g.Generate([]domain.CanonicalRecord{positive})
	require.Len(t, out, 1)
	assert.Equal(t, domain.CategoryReturnDiscrepancy, out[0].Category)
}

func TestSettlementFeeAnomalyProducesCandidate(t *testing.T) {
	g := New()
	rec := domain.CanonicalRecord{ID: "rec-6", RecordType: domain.RecordSettlement, TotalFees: decimal.NewFromInt(4)}
	out := g.Generate([]domain.CanonicalRecord{rec})
	require.Len(t, out, 1)
	assert.Equal(t, domain.SubcategorySettlementFee, out[0].Subcategory)
}

func TestGenerateProducesNothingForNonQualifyingRecord(t *testing.T) {
	g := New()
	// A record shaped to qualify for none of the rules produces nothing.
	neutral := domain.CanonicalRecord{ID: "rec-7", RecordType: domain.RecordOrder}
	assert.Empty(t, g.Generate([]domain.CanonicalRecord{neutral}))
}

func TestCandidateKeyIsStableIdempotencyKey(t *testing.T) {
	g := New()
	rec := domain.CanonicalRecord{ID: "rec-8", SellerID: "seller-9", RecordType: domain.RecordOrder, TotalFees: decimal.NewFromInt(1)}
	out := g.Generate([]domain.CanonicalRecord{rec})
	require.Len(t, out, 1)
	key := out[0].Key()
	assert.Equal(t, domain.SellerID("seller-9"), key.SellerID)
	assert.Equal(t, "fee_anomaly_order", key.Rule)
	assert.Equal(t, "rec-8", key.SourceRecordID)
}
