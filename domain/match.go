package domain

import "time"

// Action is the Confidence Router's gate outcome for a match.
type Action string

const (
	ActionAutoSubmit  Action = "auto_submit"
	ActionSmartPrompt Action = "smart_prompt"
	ActionHold        Action = "hold"
)

// LinkKind is the persisted classification of an Evidence Link.
type LinkKind string

const (
	LinkAutoMatch    LinkKind = "auto_match"
	LinkMLSuggested  LinkKind = "ml_suggested"
	LinkManualReview LinkKind = "manual_review"
)

// MatchResult is the Matcher's output for one Claim Candidate: the winning
// document (if any), its identifier family, and the resulting confidence.
type MatchResult struct {
	ClaimID         string
	DocumentID      string
	MatchType       IdentifierFamily
	MatchedFields   []string
	RuleScore       float64
	MLScore         *float64
	FinalConfidence float64
	Reasoning       string
	Action          Action
	CreatedAt       time.Time
}

// Key is the (claim_id, document_id) uniqueness key §3 requires.
func (m MatchResult) Key() MatchKey {
	return MatchKey{ClaimID: m.ClaimID, DocumentID: m.DocumentID}
}

// MatchKey is the idempotency key for MatchResult/EvidenceLink upserts.
type MatchKey struct {
	ClaimID    string
	DocumentID string
}

// EvidenceLink is the durable outcome of routing a MatchResult.
type EvidenceLink struct {
	ClaimID    string
	DocumentID string
	LinkKind   LinkKind
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PromptOption is one of the three fixed smart-prompt choices.
type PromptOption string

const (
	PromptYes    PromptOption = "yes"
	PromptNo     PromptOption = "no"
	PromptReview PromptOption = "review"
)

// FixedPromptOptions is the exact three-option set every smart-prompt
// carries (§4.7, scenario 2 in §8).
var FixedPromptOptions = []PromptOption{PromptYes, PromptNo, PromptReview}

// SmartPrompt is created by the Confidence Router when a match lands in the
// smart_prompt tier.
type SmartPrompt struct {
	ClaimID    string
	DocumentID string
	Options    []PromptOption
	CreatedAt  time.Time
}

// Notification is emitted on an auto-submit routing outcome.
type Notification struct {
	Type       string // "EvidenceMatched"
	SellerID   SellerID
	ClaimID    string
	DocumentID string
	At         time.Time
}

// FilingStatus is the dispute case's filing state once a match auto-submits.
type FilingStatus string

const (
	FilingPending FilingStatus = "pending"
)
