// Package match implements the Matcher (§4.6): deterministic priority
// matching of a ClaimCandidate against a Document Index, producing a
// MatchResult with ranked confidence and a well-defined tie-break. The
// engine is pure and stateless across batches — no shared mutable state
// beyond the read-only Index — so the same (candidate, index) pair always
// produces the same result regardless of process or run (§8's determinism
// property).
package match

import (
	"fmt"
	"time"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/matchindex"
)

// BatchSize is the throughput contract's batch unit (§4.6): matching runs
// in batches of 1,000 candidates, CPU-only, no cross-batch state.
const BatchSize = 1000

// Match finds the best Evidence Document for one candidate against idx, or
// reports no match (ok=false), in which case no MatchResult exists for the
// candidate and nothing is routed.
func Match(candidate domain.ClaimCandidate, idx *matchindex.Index, now time.Time) (domain.MatchResult, bool) {
	for _, family := range domain.AllIdentifierFamilies {
		value := candidate.Identifiers.Get(family)
		var docs []domain.EvidenceDocument
		if value != "" {
			docs = idx.Lookup(family, value)
		}
		if family == domain.FamilyOrderID && len(docs) == 0 {
			// order_id also matches via related_event_ids per §4.6 rank 1.
			docs, value = lookupRelated(idx, candidate.Identifiers.RelatedEventIDs)
		}
		if len(docs) == 0 {
			continue
		}

		winner := docs[0] // idx.Lookup already applies the tie-break ordering
		baseline := domain.BaselineConfidence[family]
		factor := winner.ConfidenceFactor()
		final := baseline * factor

		return domain.MatchResult{
			ClaimID:        candidate.ClaimID,
			DocumentID:     winner.DocumentID,
			MatchType:      family,
			MatchedFields:  []string{fmt.Sprintf("%s:%s", family, value)},
			RuleScore:      baseline,
			FinalConfidence: final,
			Reasoning:      reasoning(winner, family),
			CreatedAt:      now,
		}, true
	}

	return domain.MatchResult{}, false
}

func lookupRelated(idx *matchindex.Index, relatedIDs []string) ([]domain.EvidenceDocument, string) {
	for _, id := range relatedIDs {
		if docs := idx.Lookup(domain.FamilyOrderID, id); len(docs) > 0 {
			return docs, id
		}
	}
	return nil, ""
}

func reasoning(doc domain.EvidenceDocument, family domain.IdentifierFamily) string {
	return fmt.Sprintf("matched %s on document %q via %s", family, doc.Filename, family)
}

// MatchBatch matches every candidate in one batch of at most BatchSize
// against idx, returning one MatchResult per candidate that found a
// document (candidates with no match are simply omitted, so no link or
// prompt is created for them).
func MatchBatch(candidates []domain.ClaimCandidate, idx *matchindex.Index, now time.Time) []domain.MatchResult {
	out := make([]domain.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		if m, ok := Match(c, idx, now); ok {
			out = append(out, m)
		}
	}
	return out
}

// Chunks splits candidates into BatchSize-sized slices for the throughput
// contract in §4.6.
func Chunks(candidates []domain.ClaimCandidate) [][]domain.ClaimCandidate {
	if len(candidates) == 0 {
		return nil
	}
	var out [][]domain.ClaimCandidate
	for start := 0; start < len(candidates); start += BatchSize {
		end := start + BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		out = append(out, candidates[start:end])
	}
	return out
}
