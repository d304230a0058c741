package domain

import "time"

// JobState is a SyncJob's position in its state machine:
// queued -> running -> (completed | failed | cancelled).
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether s is a terminal state for a job.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ReportType enumerates the seven report types the orchestrator's plan
// takes the Cartesian product of windows with.
type ReportType string

const (
	ReportOrders          ReportType = "orders"
	ReportFees            ReportType = "fees"
	ReportReturns         ReportType = "returns"
	ReportSettlements     ReportType = "settlements"
	ReportShipments       ReportType = "shipments"
	ReportInventoryAdjust ReportType = "inventory_adjustments"
	ReportRemovals        ReportType = "removals"
)

// AllReportTypes is the fixed set of seven report types tiled across every
// sync window.
var AllReportTypes = []ReportType{
	ReportOrders,
	ReportFees,
	ReportReturns,
	ReportSettlements,
	ReportShipments,
	ReportInventoryAdjust,
	ReportRemovals,
}

// JobKind distinguishes a full historical sync from a narrower report
// download task, used to enforce "at most one non-terminal job per
// (seller, job_kind)".
type JobKind string

const (
	JobKindFullHistoricalSync JobKind = "fullHistoricalSync"
	JobKindReportDownload     JobKind = "reportDownload"
)

// Window is a half-open [Start, End) day range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within [w.Start, w.End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Progress tracks a job's discrete task counters.
type Progress struct {
	Current int
	Total   int
}

// JobError captures the terminal error of a failed job without losing its
// classification.
type JobError struct {
	Kind    string
	Message string
}

// SyncJob is a resumable, queued unit of sync work for one seller.
type SyncJob struct {
	JobID       string
	SellerID    SellerID
	Kind        JobKind
	Window      Window
	ReportTypes []ReportType
	Priority    int
	State       JobState
	Progress    Progress
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Error       *JobError

	// Checkpoint is the last finished (window_index, report_index) pair,
	// whether that task succeeded or failed, persisted after every task so a
	// restart resumes without re-downloading (§4.8 Progress). A new job
	// starts at {-1, -1}: no task finished yet.
	Checkpoint Checkpoint
}

// Checkpoint is the durable resume point within a job's task plan.
type Checkpoint struct {
	WindowIndex int
	ReportIndex int
}

// TaskStatus is the outcome reported for a single (window, report_type) task.
type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ProgressEvent is what the orchestrator emits after every task, consumed by
// the Progress Publisher.
type ProgressEvent struct {
	SellerID   SellerID
	JobID      string
	Current    int
	Total      int
	ReportType ReportType
	Status     TaskStatus
	Message    string
	At         time.Time
}
