package router

import (
	"context"
	"sync"

	"github.com/clarioclaims/engine/domain"
)

// MemoryState is an in-process implementation of LinkStore, ClaimStateStore,
// FilingStore, PromptStore and Notifier, used by tests and the reference
// CLI. All writes are upserts keyed the way §4.7 requires.
type MemoryState struct {
	mu sync.Mutex

	Links         map[domain.MatchKey]domain.EvidenceLink
	ClaimStates   map[string]domain.ClaimState
	FilingStatus  map[string]domain.FilingStatus
	Prompts       map[domain.MatchKey]domain.SmartPrompt
	Notifications []domain.Notification
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		Links:        make(map[domain.MatchKey]domain.EvidenceLink),
		ClaimStates:  make(map[string]domain.ClaimState),
		FilingStatus: make(map[string]domain.FilingStatus),
		Prompts:      make(map[domain.MatchKey]domain.SmartPrompt),
	}
}

func (m *MemoryState) Upsert(ctx context.Context, link domain.EvidenceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.MatchKey{ClaimID: link.ClaimID, DocumentID: link.DocumentID}
	if existing, ok := m.Links[key]; ok {
		link.CreatedAt = existing.CreatedAt
	}
	m.Links[key] = link
	return nil
}

func (m *MemoryState) AdvanceState(ctx context.Context, claimID string, state domain.ClaimState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimStates[claimID] = state
	return nil
}

func (m *MemoryState) SetFilingStatus(ctx context.Context, claimID string, status domain.FilingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilingStatus[claimID] = status
	return nil
}

func (m *MemoryState) UpsertPrompt(ctx context.Context, prompt domain.SmartPrompt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.MatchKey{ClaimID: prompt.ClaimID, DocumentID: prompt.DocumentID}
	if _, exists := m.Prompts[key]; exists {
		return false, nil
	}
	m.Prompts[key] = prompt
	return true, nil
}

func (m *MemoryState) Notify(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, n)
	return nil
}

var (
	_ LinkStore        = (*MemoryState)(nil)
	_ ClaimStateStore  = (*MemoryState)(nil)
	_ FilingStore      = (*MemoryState)(nil)
	_ PromptStore      = (*MemoryState)(nil)
	_ Notifier         = (*MemoryState)(nil)
)
