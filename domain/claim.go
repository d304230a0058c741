package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the top-level claim classification emitted by the candidate
// generator's rules.
type Category string

const (
	CategoryFeeError          Category = "fee_error"
	CategoryInventoryLoss     Category = "inventory_loss"
	CategoryReturnDiscrepancy Category = "return_discrepancy"
)

// Subcategory refines Category per §4.4's four rules.
type Subcategory string

const (
	SubcategoryOrderFee       Subcategory = "order_fee"
	SubcategoryLostShipment   Subcategory = "lost_shipment"
	SubcategoryDamagedGoods   Subcategory = "damaged_goods"
	SubcategoryRefundMismatch Subcategory = "refund_mismatch"
	SubcategorySettlementFee  Subcategory = "settlement_fee"
)

// ReasonCode is the machine-readable reason attached to a claim candidate.
type ReasonCode string

const (
	ReasonPotentialFeeOvercharge     ReasonCode = "POTENTIAL_FEE_OVERCHARGE"
	ReasonPotentialInventoryLoss     ReasonCode = "POTENTIAL_INVENTORY_LOSS"
	ReasonPotentialRefundDiscrepancy ReasonCode = "POTENTIAL_REFUND_DISCREPANCY"
	ReasonPotentialSettlementFee     ReasonCode = "POTENTIAL_SETTLEMENT_FEE_OVERCHARGE"
)

// ClaimState is the claim's disposition as advanced by the Confidence Router.
type ClaimState string

const (
	ClaimPending  ClaimState = "pending"
	ClaimReviewed ClaimState = "reviewed"
	ClaimDisputed ClaimState = "disputed"
)

// ClaimCandidate is a derived, not-yet-evidenced claim awaiting a matching
// Evidence Document.
type ClaimCandidate struct {
	ClaimID     string
	SellerID    SellerID
	Category    Category
	Subcategory Subcategory
	ReasonCode  ReasonCode
	Identifiers ClaimIdentifiers

	Amount   decimal.Decimal
	Currency string

	DiscoveryDate time.Time
	DeadlineDate  time.Time

	ConfidenceSeed float64
	Evidence       []string // source_record_ids this candidate was derived from

	Metadata map[string]interface{}

	State ClaimState

	// SourceRecordID + Rule form the idempotency key §4.4 requires:
	// candidates are keyed by (seller, rule, source_record_id).
	Rule           string
	SourceRecordID string
}

// DaysRemaining returns max(0, DeadlineDate - now), per §3's invariant.
func (c ClaimCandidate) DaysRemaining(now time.Time) int {
	d := c.DeadlineDate.Sub(now)
	days := int(d.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// claimDeadlineOffset is the fixed 60-day filing deadline (§3 invariant:
// deadline_date = discovery_date + 60 days).
const claimDeadlineOffset = 60 * 24 * time.Hour

// Deadline computes the deadline_date for a discovery_date.
func Deadline(discoveryDate time.Time) time.Time {
	return discoveryDate.Add(claimDeadlineOffset)
}

// CandidateKey is the idempotency key candidates are generated under.
type CandidateKey struct {
	SellerID       SellerID
	Rule           string
	SourceRecordID string
}

// Key returns this candidate's idempotency key.
func (c ClaimCandidate) Key() CandidateKey {
	return CandidateKey{SellerID: c.SellerID, Rule: c.Rule, SourceRecordID: c.SourceRecordID}
}
