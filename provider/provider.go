// Package provider defines the pluggable source-of-record interface every
// commerce/email integration implements, plus the remote Parser Service
// contract. Per §6, these are external collaborators: the core only ever
// sees the typed records they return, never a provider's wire protocol.
package provider

import (
	"context"
	"time"

	"github.com/clarioclaims/engine/domain"
)

// CredentialBundle is the opaque, provider-specific credential payload
// returned by OAuth exchange/refresh. The core never inspects its contents;
// it flows straight to the Secret Management collaborator for encryption.
type CredentialBundle struct {
	Opaque    []byte
	ExpiresAt time.Time
}

// RawRecord is one untyped report row exactly as the provider returned it,
// before the Normalizer touches it.
type RawRecord map[string]interface{}

// DocumentRef identifies a document the provider knows about but that has
// not yet been fetched.
type DocumentRef struct {
	RefID    string
	Filename string
	DocType  string
}

// FetchedDocument is raw document bytes plus provider-reported metadata.
type FetchedDocument struct {
	Bytes    []byte
	Filename string
	DocType  string
}

// Adapter is the capability set every provider implementation must supply
// (§6). A provider adapter never calls out to the network directly — every
// method is expected to be invoked through the Throttled Client so rate
// limiting and retry apply uniformly.
type Adapter interface {
	// Name identifies the provider for token-bucket/circuit-breaker keying
	// and log correlation (e.g. "amazon_sp_api", "gmail", "stripe").
	Name() string

	AuthURL() string
	ExchangeCode(ctx context.Context, code string) (CredentialBundle, error)
	Refresh(ctx context.Context, creds CredentialBundle) (CredentialBundle, error)

	// ListReportWindows optionally overrides the orchestrator's default
	// 3-month tiling for this provider; returning (nil, nil) asks the
	// orchestrator to use its own plan.
	ListReportWindows(ctx context.Context, seller domain.SellerID, horizon domain.Window) ([]domain.Window, error)

	DownloadReport(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, window domain.Window) ([]RawRecord, error)

	ListDocuments(ctx context.Context, seller domain.SellerID, since time.Time) ([]DocumentRef, error)
	FetchDocument(ctx context.Context, seller domain.SellerID, ref DocumentRef) (FetchedDocument, error)
}

// ParseJobStatus is the async parser job's lifecycle state.
type ParseJobStatus string

const (
	ParseJobPending    ParseJobStatus = "pending"
	ParseJobProcessing ParseJobStatus = "processing"
	ParseJobCompleted  ParseJobStatus = "completed"
	ParseJobFailed     ParseJobStatus = "failed"
)

// ParseJob reports the current status of an in-flight parse request.
type ParseJob struct {
	Status     ParseJobStatus
	Confidence *float64
	Error      string
}

// ParsedDocument is the Parser Service's structured output for one document.
type ParsedDocument struct {
	Extracted  domain.ExtractedIdentifiers
	RawText    string
	Confidence float64
}

// ParserService is the remote document-parsing collaborator (§6).
type ParserService interface {
	Parse(ctx context.Context, documentID string, seller domain.SellerID) (jobID string, err error)
	GetJob(ctx context.Context, jobID string, seller domain.SellerID) (ParseJob, error)
	GetParsed(ctx context.Context, documentID string, seller domain.SellerID) (ParsedDocument, error)
}
