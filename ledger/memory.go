package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clarioclaims/engine/domain"
)

type recordKey struct {
	seller     domain.SellerID
	reportType domain.ReportType
	externalID string
}

type statusKey struct {
	seller     domain.SellerID
	reportType domain.ReportType
}

// MemoryStore is an in-process Store used by tests and by the reference CLI
// when DATABASE_URL is unset. It enforces the same uniqueness and isolation
// invariants as the Postgres implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	byKey    map[recordKey]domain.CanonicalRecord
	bySeller map[domain.SellerID][]recordKey
	status   map[statusKey]domain.SyncStatus
	batch    int
}

func NewMemoryStore(batchSize int) *MemoryStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &MemoryStore{
		byKey:    make(map[recordKey]domain.CanonicalRecord),
		bySeller: make(map[domain.SellerID][]recordKey),
		status:   make(map[statusKey]domain.SyncStatus),
		batch:    batchSize,
	}
}

func (m *MemoryStore) Store(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, records []domain.CanonicalRecord, window domain.Window, syncKind string) (domain.StoreResult, error) {
	var result domain.StoreResult

	for start := 0; start < len(records); start += m.batch {
		end := start + m.batch
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		m.storeChunk(seller, reportType, chunk, &result)
	}

	m.mu.Lock()
	sk := statusKey{seller: seller, reportType: reportType}
	m.status[sk] = domain.SyncStatus{
		SellerID:         seller,
		ReportType:       reportType,
		State:            domain.SyncCompleted,
		RecordsProcessed: len(records),
		RecordsTotal:     len(records),
		Window:           window,
		UpdatedAt:        time.Now(),
	}
	m.mu.Unlock()

	return result, nil
}

func (m *MemoryStore) storeChunk(seller domain.SellerID, reportType domain.ReportType, chunk []domain.CanonicalRecord, result *domain.StoreResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range chunk {
		rec.SellerID = seller
		rec.ReportType = reportType

		if rec.ExternalID == "" {
			rec.ID = newID(seller, reportType, rec)
			m.insert(rec, result)
			continue
		}

		key := recordKey{seller: seller, reportType: reportType, externalID: rec.ExternalID}
		if existing, ok := m.byKey[key]; ok {
			merged := mergeNonNull(existing, rec)
			m.byKey[key] = merged
			result.Updated++
			continue
		}

		rec.ID = newID(seller, reportType, rec)
		m.byKey[key] = rec
		m.bySeller[seller] = append(m.bySeller[seller], key)
		result.Inserted++
	}
}

func (m *MemoryStore) insert(rec domain.CanonicalRecord, result *domain.StoreResult) {
	key := recordKey{seller: rec.SellerID, reportType: rec.ReportType, externalID: rec.ID}
	m.byKey[key] = rec
	m.bySeller[rec.SellerID] = append(m.bySeller[rec.SellerID], key)
	result.Inserted++
}

func mergeNonNull(existing, incoming domain.CanonicalRecord) domain.CanonicalRecord {
	merged := existing
	if incoming.SKU != "" {
		merged.SKU = incoming.SKU
	}
	if incoming.OrderID != "" {
		merged.OrderID = incoming.OrderID
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if !incoming.Amount.IsZero() {
		merged.Amount = incoming.Amount
	}
	if !incoming.TotalFees.IsZero() {
		merged.TotalFees = incoming.TotalFees
	}
	if !incoming.RefundAmount.IsZero() {
		merged.RefundAmount = incoming.RefundAmount
	}
	if incoming.MissingQuantity != 0 {
		merged.MissingQuantity = incoming.MissingQuantity
	}
	merged.Identifiers = incoming.Identifiers
	merged.UpdatedAt = incoming.UpdatedAt
	return merged
}

func (m *MemoryStore) GetSyncStatus(ctx context.Context, seller domain.SellerID, reportType domain.ReportType) ([]domain.SyncStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if reportType != "" {
		if s, ok := m.status[statusKey{seller: seller, reportType: reportType}]; ok {
			return []domain.SyncStatus{s}, nil
		}
		return nil, nil
	}

	var out []domain.SyncStatus
	for k, s := range m.status {
		if k.seller == seller {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportType < out[j].ReportType })
	return out, nil
}

func (m *MemoryStore) QueryRecords(ctx context.Context, seller domain.SellerID, filters domain.RecordFilters, page, limit int) ([]domain.CanonicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.CanonicalRecord
	for _, key := range m.bySeller[seller] {
		rec := m.byKey[key]
		if filters.ReportType != "" && rec.ReportType != filters.ReportType {
			continue
		}
		if filters.RecordType != "" && rec.RecordType != filters.RecordType {
			continue
		}
		if !filters.From.IsZero() && rec.RecordDate.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && !rec.RecordDate.Before(filters.To) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].RecordDate.After(matched[j].RecordDate) })

	if limit <= 0 {
		limit = len(matched)
	}
	startIdx := page * limit
	if startIdx >= len(matched) {
		return nil, nil
	}
	endIdx := startIdx + limit
	if endIdx > len(matched) {
		endIdx = len(matched)
	}
	return matched[startIdx:endIdx], nil
}

func (m *MemoryStore) Exists(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, externalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[recordKey{seller: seller, reportType: reportType, externalID: externalID}]
	return ok
}

func newID(seller domain.SellerID, reportType domain.ReportType, rec domain.CanonicalRecord) string {
	if rec.ExternalID != "" {
		return string(seller) + ":" + string(reportType) + ":" + rec.ExternalID
	}
	return string(seller) + ":" + string(reportType) + ":" + rec.RecordDate.Format(time.RFC3339Nano) + ":" + rec.SKU + ":" + rec.OrderID
}

var _ Store = (*MemoryStore)(nil)
