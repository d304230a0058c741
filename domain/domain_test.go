package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineAddsSixtyDays(t *testing.T) {
	discovery := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Deadline(discovery))
}

func TestDaysRemainingClampsToZeroPastDeadline(t *testing.T) {
	c := ClaimCandidate{DeadlineDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, c.DaysRemaining(now))
}

func TestDaysRemainingCountsWholeDaysUntilDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := ClaimCandidate{DeadlineDate: now.Add(10 * 24 * time.Hour)}
	assert.Equal(t, 10, c.DaysRemaining(now))
}

func TestClaimCandidateKeyIsSellerRuleSourceRecord(t *testing.T) {
	c := ClaimCandidate{SellerID: "seller-1", Rule: "feeAnomalyOrder", SourceRecordID: "rec-1"}
	assert.Equal(t, CandidateKey{SellerID: "seller-1", Rule: "feeAnomalyOrder", SourceRecordID: "rec-1"}, c.Key())
}

func TestConfidenceFactorDefaultsToOneWhenUndefined(t *testing.T) {
	d := EvidenceDocument{}
	assert.Equal(t, 1.0, d.ConfidenceFactor())
}

func TestConfidenceFactorClipsBelowFloor(t *testing.T) {
	low := 0.1
	d := EvidenceDocument{ParserConfidence: &low}
	assert.Equal(t, 0.5, d.ConfidenceFactor())
}

func TestConfidenceFactorClipsAboveCeiling(t *testing.T) {
	high := 1.5
	d := EvidenceDocument{ParserConfidence: &high}
	assert.Equal(t, 1.0, d.ConfidenceFactor())
}

func TestConfidenceFactorPassesThroughMidRangeValue(t *testing.T) {
	mid := 0.73
	d := EvidenceDocument{ParserConfidence: &mid}
	assert.Equal(t, 0.73, d.ConfidenceFactor())
}

func TestByFamilyReturnsMatchingSliceAndNilForUnknown(t *testing.T) {
	e := ExtractedIdentifiers{OrderIDs: []string{"o1"}, SKUs: []string{"sku1", "sku2"}}
	assert.Equal(t, []string{"o1"}, e.ByFamily(FamilyOrderID))
	assert.Equal(t, []string{"sku1", "sku2"}, e.ByFamily(FamilySKU))
	assert.Nil(t, e.ByFamily(FamilyCaseID))
}

func TestJobStateIsTerminalForCompletedFailedCancelled(t *testing.T) {
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.True(t, JobCancelled.IsTerminal())
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
}

func TestWindowContainsIsHalfOpen(t *testing.T) {
	w := Window{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End), "End is exclusive")
	assert.True(t, w.Contains(w.Start.Add(24*time.Hour)))
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
}

func TestMatchResultKeyIsClaimAndDocument(t *testing.T) {
	m := MatchResult{ClaimID: "c1", DocumentID: "d1"}
	assert.Equal(t, MatchKey{ClaimID: "c1", DocumentID: "d1"}, m.Key())
}

func TestClaimIdentifiersGetReturnsEmptyForUnpopulatedFamily(t *testing.T) {
	c := ClaimIdentifiers{OrderID: "o1"}
	assert.Equal(t, "o1", c.Get(FamilyOrderID))
	assert.Equal(t, "", c.Get(FamilyASIN))
}

func TestClaimIdentifiersNonEmptyPreservesPriorityOrder(t *testing.T) {
	c := ClaimIdentifiers{SKU: "sku1", OrderID: "o1", CaseID: "case1"}
	assert.Equal(t, []IdentifierFamily{FamilyOrderID, FamilyCaseID, FamilySKU}, c.NonEmpty())
}

func TestAllIdentifierFamiliesHaveABaselineConfidence(t *testing.T) {
	for _, f := range AllIdentifierFamilies {
		v, ok := BaselineConfidence[f]
		assert.True(t, ok, "family %s must have a baseline confidence", f)
		assert.Greater(t, v, 0.0)
	}
}
