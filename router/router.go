// Package router implements the Confidence Router (§4.7): gates each
// MatchResult into auto_submit / smart_prompt / hold by threshold, performs
// the side effects (upsert EvidenceLink, advance claim state, create a
// smart-prompt, emit a notification), and guarantees idempotency via
// upserts keyed by (claim_id, document_id).
package router

import (
	"context"
	"time"

	"github.com/clarioclaims/engine/domain"
)

// LinkStore persists EvidenceLinks, upserted by (claim_id, document_id).
type LinkStore interface {
	Upsert(ctx context.Context, link domain.EvidenceLink) error
}

// ClaimStateStore advances a claim's state machine.
type ClaimStateStore interface {
	AdvanceState(ctx context.Context, claimID string, state domain.ClaimState) error
}

// FilingStore marks a dispute case ready for the external filer.
type FilingStore interface {
	SetFilingStatus(ctx context.Context, claimID string, status domain.FilingStatus) error
}

// PromptStore persists smart-prompts, upserted by (claim_id, document_id) so
// a re-run never duplicates a prompt the seller hasn't answered yet.
type PromptStore interface {
	UpsertPrompt(ctx context.Context, prompt domain.SmartPrompt) (created bool, err error)
}

// Notifier emits notifications on routing outcomes.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Thresholds configures the two confidence gates.
type Thresholds struct {
	Auto   float64 // default 0.85
	Prompt float64 // default 0.50
}

func DefaultThresholds() Thresholds {
	return Thresholds{Auto: 0.85, Prompt: 0.50}
}

// Router wires the side effects of a routing decision to their respective
// collaborators.
type Router struct {
	thresholds Thresholds
	links      LinkStore
	claims     ClaimStateStore
	filings    FilingStore
	prompts    PromptStore
	notifier   Notifier
}

func New(thresholds Thresholds, links LinkStore, claims ClaimStateStore, filings FilingStore, prompts PromptStore, notifier Notifier) *Router {
	return &Router{
		thresholds: thresholds,
		links:      links,
		claims:     claims,
		filings:    filings,
		prompts:    prompts,
		notifier:   notifier,
	}
}

// Route classifies m's final confidence and performs the corresponding side
// effects, returning the decided Action. Idempotent: calling Route twice
// with the same (claim_id, document_id) and confidence converges to the
// same EvidenceLink/prompt state without duplication (§8 scenario 6).
func (r *Router) Route(ctx context.Context, seller domain.SellerID, m domain.MatchResult) (domain.Action, error) {
	action := classify(m.FinalConfidence, r.thresholds)

	switch action {
	case domain.ActionAutoSubmit:
		if err := r.links.Upsert(ctx, evidenceLink(m, domain.LinkAutoMatch)); err != nil {
			return action, err
		}
		if err := r.claims.AdvanceState(ctx, m.ClaimID, domain.ClaimDisputed); err != nil {
			return action, err
		}
		if err := r.filings.SetFilingStatus(ctx, m.ClaimID, domain.FilingPending); err != nil {
			return action, err
		}
		if r.notifier != nil {
			if err := r.notifier.Notify(ctx, domain.Notification{
				Type: "EvidenceMatched", SellerID: seller, ClaimID: m.ClaimID, DocumentID: m.DocumentID, At: time.Now(),
			}); err != nil {
				return action, err
			}
		}

	case domain.ActionSmartPrompt:
		if err := r.links.Upsert(ctx, evidenceLink(m, domain.LinkMLSuggested)); err != nil {
			return action, err
		}
		if _, err := r.prompts.UpsertPrompt(ctx, domain.SmartPrompt{
			ClaimID: m.ClaimID, DocumentID: m.DocumentID, Options: domain.FixedPromptOptions, CreatedAt: time.Now(),
		}); err != nil {
			return action, err
		}
		if err := r.claims.AdvanceState(ctx, m.ClaimID, domain.ClaimReviewed); err != nil {
			return action, err
		}

	case domain.ActionHold:
		if err := r.links.Upsert(ctx, evidenceLink(m, domain.LinkManualReview)); err != nil {
			return action, err
		}
		if err := r.claims.AdvanceState(ctx, m.ClaimID, domain.ClaimPending); err != nil {
			return action, err
		}
	}

	return action, nil
}

func classify(confidence float64, t Thresholds) domain.Action {
	switch {
	case confidence >= t.Auto:
		return domain.ActionAutoSubmit
	case confidence >= t.Prompt:
		return domain.ActionSmartPrompt
	default:
		return domain.ActionHold
	}
}

func evidenceLink(m domain.MatchResult, kind domain.LinkKind) domain.EvidenceLink {
	now := time.Now()
	return domain.EvidenceLink{ClaimID: m.ClaimID, DocumentID: m.DocumentID, LinkKind: kind, CreatedAt: now, UpdatedAt: now}
}
