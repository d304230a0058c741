// Package candidate implements the Candidate Generator (§4.4): four
// deterministic rules applied in order over ledger records, each keyed by
// (seller, rule, source_record_id) for idempotent re-generation. Rule
// dispatch is a handler-registry, modeled after the teacher's
// orchestration.TaskWorkerPool handler map, generalized from task types to
// record shapes.
package candidate

import (
	"github.com/shopspring/decimal"

	"github.com/clarioclaims/engine/domain"
)

// defaultUnitPrice is the fallback price used when a shipment row omits
// unit_price (§4.4 rule 2, flagged price_estimated per the spec's Open
// Question rather than silently applied).
var defaultUnitPrice = decimal.NewFromInt(10)

// rule is one of the generator's four deterministic checks. It returns
// (candidate, true) when the record qualifies, or (_, false) otherwise.
type rule struct {
	name  string
	check func(rec domain.CanonicalRecord) (domain.ClaimCandidate, bool)
}

// Generator derives ClaimCandidates from ledger records.
type Generator struct {
	rules []rule
}

// New builds a Generator with the four rules in the fixed order §4.4
// specifies: fee anomaly, inventory loss, return discrepancy, settlement
// fee anomaly. A record may produce at most one candidate per rule, so all
// four rules are always evaluated independently rather than short-circuiting.
func New() *Generator {
	g := &Generator{}
	g.rules = []rule{
		{name: "fee_anomaly_order", check: g.feeAnomalyOrder},
		{name: "inventory_loss_shipment", check: g.inventoryLossShipment},
		{name: "return_discrepancy", check: g.returnDiscrepancy},
		{name: "settlement_fee_anomaly", check: g.settlementFeeAnomaly},
	}
	return g
}

// Generate runs every rule over every record, returning one ClaimCandidate
// per (record, matching rule) pair.
func (g *Generator) Generate(records []domain.CanonicalRecord) []domain.ClaimCandidate {
	var out []domain.ClaimCandidate
	for _, rec := range records {
		for _, r := range g.rules {
			if c, ok := r.check(rec); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (g *Generator) feeAnomalyOrder(rec domain.CanonicalRecord) (domain.ClaimCandidate, bool) {
	if rec.RecordType != domain.RecordOrder || !rec.TotalFees.IsPositive() {
		return domain.ClaimCandidate{}, false
	}
	return g.base(rec, "fee_anomaly_order", domain.CategoryFeeError, domain.SubcategoryOrderFee, domain.ReasonPotentialFeeOvercharge, rec.TotalFees, nil), true
}

func (g *Generator) inventoryLossShipment(rec domain.CanonicalRecord) (domain.ClaimCandidate, bool) {
	if rec.RecordType != domain.RecordShipment || rec.MissingQuantity <= 0 {
		return domain.ClaimCandidate{}, false
	}

	unitPrice := rec.UnitPrice
	meta := map[string]interface{}{}
	if unitPrice.IsZero() {
		unitPrice = defaultUnitPrice
		meta["price_estimated"] = true
	}
	amount := unitPrice.Mul(decimal.NewFromInt(int64(rec.MissingQuantity)))

	subcat := domain.SubcategoryLostShipment
	if rec.ShipmentStatus == domain.ShipmentDamaged {
		subcat = domain.SubcategoryDamagedGoods
	}

	c := g.base(rec, "inventory_loss_shipment", domain.CategoryInventoryLoss, subcat, domain.ReasonPotentialInventoryLoss, amount, meta)
	return c, true
}

func (g *Generator) returnDiscrepancy(rec domain.CanonicalRecord) (domain.ClaimCandidate, bool) {
	if rec.RecordType != domain.RecordReturn || !rec.RefundAmount.IsPositive() {
		return domain.ClaimCandidate{}, false
	}
	return g.base(rec, "return_discrepancy", domain.CategoryReturnDiscrepancy, domain.SubcategoryRefundMismatch, domain.ReasonPotentialRefundDiscrepancy, rec.RefundAmount, nil), true
}

func (g *Generator) settlementFeeAnomaly(rec domain.CanonicalRecord) (domain.ClaimCandidate, bool) {
	if rec.RecordType != domain.RecordSettlement || !rec.TotalFees.IsPositive() {
		return domain.ClaimCandidate{}, false
	}
	return g.base(rec, "settlement_fee_anomaly", domain.CategoryFeeError, domain.SubcategorySettlementFee, domain.ReasonPotentialSettlementFee, rec.TotalFees, nil), true
}

func (g *Generator) base(rec domain.CanonicalRecord, ruleName string, cat domain.Category, sub domain.Subcategory, reason domain.ReasonCode, amount decimal.Decimal, extraMeta map[string]interface{}) domain.ClaimCandidate {
	meta := map[string]interface{}{}
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	for k, v := range extraMeta {
		meta[k] = v
	}

	discovery := rec.RecordDate
	return domain.ClaimCandidate{
		ClaimID:        string(rec.SellerID) + ":" + ruleName + ":" + recordID(rec),
		SellerID:       rec.SellerID,
		Category:       cat,
		Subcategory:    sub,
		ReasonCode:     reason,
		Identifiers:    rec.Identifiers,
		Amount:         amount,
		Currency:       rec.Currency,
		DiscoveryDate:  discovery,
		DeadlineDate:   domain.Deadline(discovery),
		ConfidenceSeed: 0,
		Evidence:       []string{recordID(rec)},
		Metadata:       meta,
		State:          domain.ClaimPending,
		Rule:           ruleName,
		SourceRecordID: recordID(rec),
	}
}

func recordID(rec domain.CanonicalRecord) string {
	if rec.ID != "" {
		return rec.ID
	}
	return rec.ExternalID
}
