package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordType distinguishes the semantic row kind inside a report, used by
// the candidate generator's rule dispatch (order/shipment/return/settlement).
type RecordType string

const (
	RecordOrder      RecordType = "order"
	RecordShipment   RecordType = "shipment"
	RecordReturn     RecordType = "return"
	RecordSettlement RecordType = "settlement"
)

// ShipmentStatus distinguishes a lost shipment from damaged goods for the
// inventory-loss candidate rule.
type ShipmentStatus string

const (
	ShipmentLost    ShipmentStatus = "lost"
	ShipmentDamaged ShipmentStatus = "damaged"
)

// CanonicalRecord is one row of the unified ledger, already normalized from
// whatever shape the provider's report used.
type CanonicalRecord struct {
	ID         string
	SellerID   SellerID
	ReportType ReportType
	RecordType RecordType
	Amount     decimal.Decimal
	Currency   string
	RecordDate time.Time

	SKU         string
	OrderID     string
	Description string

	Source     string // provider name
	ExternalID string // empty means no idempotency key is available

	Metadata   map[string]interface{}
	SyncWindow Window

	CreatedAt time.Time
	UpdatedAt time.Time

	// Fields used by the candidate generator rules. Present depending on
	// ReportType/RecordType; zero values mean "absent" for the purposes of
	// the rule checks in §4.4.
	TotalFees       decimal.Decimal
	MissingQuantity int
	UnitPrice       decimal.Decimal
	RefundAmount    decimal.Decimal
	ShipmentStatus  ShipmentStatus

	// Identifiers present on the raw row, carried through to any candidate
	// this record generates.
	Identifiers ClaimIdentifiers
}

// SyncState is the per-(seller, report_type) sync status.
type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncInProgress SyncState = "in_progress"
	SyncCompleted  SyncState = "completed"
	SyncFailed     SyncState = "failed"
)

// SyncStatus reports ingestion progress for one (seller, report_type) pair.
type SyncStatus struct {
	SellerID         SellerID
	ReportType       ReportType
	State            SyncState
	RecordsProcessed int
	RecordsTotal     int
	Window           Window
	LastError        string
	UpdatedAt        time.Time
}

// StoreResult is the outcome of one Ledger Store.Store call.
type StoreResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// RecordFilters narrows a queryRecords call. Zero values mean "no filter".
type RecordFilters struct {
	ReportType ReportType
	RecordType RecordType
	From       time.Time
	To         time.Time
}
