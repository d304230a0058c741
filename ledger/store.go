// Package ledger implements the Ledger Store (§4.3): idempotent batched
// persistence of CanonicalRecords plus per-(seller, report_type) sync
// status, with a Postgres-backed Store for production and an in-memory
// Store for tests, both behind the same Store interface — the teacher's
// StorageProvider/ExecutionStore swappable-backend pattern applied to a
// SQL-shaped domain.
package ledger

import (
	"context"

	"github.com/clarioclaims/engine/domain"
)

// Store is the Ledger Store contract. Every method is seller-scoped; no
// implementation may return rows belonging to another seller no matter what
// filters the caller supplies (§3's isolation invariant).
type Store interface {
	// Store upserts records in chunks of BatchSize, all inside one
	// transaction that also updates sync_status to completed with counts.
	// A failure on any chunk rolls back the entire call — no partial
	// chunks survive, and sync_status never reads completed unless every
	// record is queryable.
	Store(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, records []domain.CanonicalRecord, window domain.Window, syncKind string) (domain.StoreResult, error)

	GetSyncStatus(ctx context.Context, seller domain.SellerID, reportType domain.ReportType) ([]domain.SyncStatus, error)

	QueryRecords(ctx context.Context, seller domain.SellerID, filters domain.RecordFilters, page, limit int) ([]domain.CanonicalRecord, error)

	// Exists reports whether (seller, report_type, external_id) already has
	// a ledger row, used by the Normalizer's dedup pass.
	Exists(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, externalID string) bool
}
