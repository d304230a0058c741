package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/matchindex"
)

func fixedNow() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

func TestMatchFindsHighestPriorityFamilyFirst(t *testing.T) {
	docs := []domain.EvidenceDocument{
		{DocumentID: "d-order", SellerID: "seller-1", ParserStatus: domain.ParserCompleted, Extracted: domain.ExtractedIdentifiers{OrderIDs: []string{"ORDER-1"}}},
		{DocumentID: "d-sku", SellerID: "seller-1", ParserStatus: domain.ParserCompleted, Extracted: domain.ExtractedIdentifiers{SKUs: []string{"SKU-1"}}},
	}
	idx := matchindex.Build("seller-1", docs)

	c := domain.ClaimCandidate{ClaimID: "c1", Identifiers: domain.ClaimIdentifiers{OrderID: "order-1", SKU: "sku-1"}}
	m, ok := Match(c, idx, fixedNow())
	require.True(t, ok)
	assert.Equal(t, domain.FamilyOrderID, m.MatchType)
	assert.Equal(t, "d-order", m.DocumentID)
}

func TestMatchFallsBackToRelatedEventIDsForOrderID(t *testing.T) {
	docs := []domain.EvidenceDocument{
		{DocumentID: "d-order", SellerID: "seller-1", ParserStatus: domain.ParserCompleted, Extracted: domain.ExtractedIdentifiers{OrderIDs: []string{"RELATED-1"}}},
	}
	idx := matchindex.Build("seller-1", docs)

	c := domain.ClaimCandidate{ClaimID: "c1", Identifiers: domain.ClaimIdentifiers{RelatedEventIDs: []string{"related-1"}}}
	m, ok := Match(c, idx, fixedNow())
	require.True(t, ok)
	assert.Equal(t, "d-order", m.DocumentID)
}

func TestMatchAppliesBaselineTimesConfidenceFactor(t *testing.T) {
	conf := 0.8
	docs := []domain.EvidenceDocument{
		{DocumentID: "d1", SellerID: "seller-1", ParserStatus: domain.ParserCompleted, ParserConfidence: &conf, Extracted: domain.ExtractedIdentifiers{OrderIDs: []string{"ORDER-1"}}},
	}
	idx := matchindex.Build("seller-1", docs)

	c := domain.ClaimCandidate{ClaimID: "c1", Identifiers: domain.ClaimIdentifiers{OrderID: "order-1"}}
	m, ok := Match(c, idx, fixedNow())
	require.True(t, ok)
	assert.InDelta(t, 0.95*0.8, m.FinalConfidence, 0.0001)
	assert.Equal(t, 0.95, m.RuleScore)
}

func TestMatchReturnsFalseWhenNoFamilyMatches(t *testing.T) {
	idx := matchindex.Build("seller-1", nil)
	c := domain.ClaimCandidate{ClaimID: "c1", Identifiers: domain.ClaimIdentifiers{OrderID: "order-1"}}
	_, ok := Match(c, idx, fixedNow())
	assert.False(t, ok)
}

func TestMatchBatchOmitsUnmatchedCandidates(t *testing.T) {
	docs := []domain.EvidenceDocument{
		{DocumentID: "d1", SellerID: "seller-1", ParserStatus: domain.ParserCompleted, Extracted: domain.ExtractedIdentifiers{OrderIDs: []string{"ORDER-1"}}},
	}
	idx := matchindex.Build("seller-1", docs)

	candidates := []domain.ClaimCandidate{
		{ClaimID: "matched", Identifiers: domain.ClaimIdentifiers{OrderID: "order-1"}},
		{ClaimID: "unmatched", Identifiers: domain.ClaimIdentifiers{OrderID: "no-such-order"}},
	}
	out := MatchBatch(candidates, idx, fixedNow())
	require.Len(t, out, 1)
	assert.Equal(t, "matched", out[0].ClaimID)
}

func TestChunksSplitsAtBatchSize(t *testing.T) {
	candidates := make([]domain.ClaimCandidate, BatchSize+1)
	chunks := Chunks(candidates)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], BatchSize)
	assert.Len(t, chunks[1], 1)
}

func TestChunksOfEmptyInputIsNil(t *testing.T) {
	assert.Nil(t, Chunks(nil))
}
