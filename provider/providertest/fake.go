// Package providertest supplies a deterministic fake provider.Adapter for
// tests. The original system's "mock provider mode" returned randomized
// statuses; per SPEC_FULL.md §9's Open Question, that randomized behavior
// is explicitly not carried into the core — this fixture is deterministic
// so tests built on it are reproducible.
package providertest

import (
	"context"
	"time"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/provider"
)

// Fake is a scripted provider.Adapter: every call returns whatever was
// pre-loaded for it, in order, with no randomness.
type Fake struct {
	NameValue string

	Reports   map[domain.ReportType][]provider.RawRecord
	Documents []provider.DocumentRef
	Fetched   map[string]provider.FetchedDocument

	RefreshCalls int
	RefreshErr   error
}

func New(name string) *Fake {
	return &Fake{
		NameValue: name,
		Reports:   make(map[domain.ReportType][]provider.RawRecord),
		Fetched:   make(map[string]provider.FetchedDocument),
	}
}

func (f *Fake) Name() string      { return f.NameValue }
func (f *Fake) AuthURL() string   { return "https://example.invalid/oauth/authorize" }

func (f *Fake) ExchangeCode(ctx context.Context, code string) (provider.CredentialBundle, error) {
	return provider.CredentialBundle{Opaque: []byte("cred:" + code), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *Fake) Refresh(ctx context.Context, creds provider.CredentialBundle) (provider.CredentialBundle, error) {
	f.RefreshCalls++
	if f.RefreshErr != nil {
		return provider.CredentialBundle{}, f.RefreshErr
	}
	return provider.CredentialBundle{Opaque: creds.Opaque, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *Fake) ListReportWindows(ctx context.Context, seller domain.SellerID, horizon domain.Window) ([]domain.Window, error) {
	return nil, nil
}

func (f *Fake) DownloadReport(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, window domain.Window) ([]provider.RawRecord, error) {
	return f.Reports[reportType], nil
}

func (f *Fake) ListDocuments(ctx context.Context, seller domain.SellerID, since time.Time) ([]provider.DocumentRef, error) {
	return f.Documents, nil
}

func (f *Fake) FetchDocument(ctx context.Context, seller domain.SellerID, ref provider.DocumentRef) (provider.FetchedDocument, error) {
	if d, ok := f.Fetched[ref.RefID]; ok {
		return d, nil
	}
	return provider.FetchedDocument{Bytes: []byte("fake document body"), Filename: ref.Filename, DocType: ref.DocType}, nil
}

var _ provider.Adapter = (*Fake)(nil)

// FakeParser is a deterministic provider.ParserService fixture.
type FakeParser struct {
	Jobs   map[string]provider.ParseJob
	Parsed map[string]provider.ParsedDocument
	JobIDs map[string]string // documentID -> jobID
}

func NewParser() *FakeParser {
	return &FakeParser{
		Jobs:   make(map[string]provider.ParseJob),
		Parsed: make(map[string]provider.ParsedDocument),
		JobIDs: make(map[string]string),
	}
}

func (p *FakeParser) Parse(ctx context.Context, documentID string, seller domain.SellerID) (string, error) {
	jobID := "job-" + documentID
	p.JobIDs[documentID] = jobID
	if _, ok := p.Jobs[jobID]; !ok {
		p.Jobs[jobID] = provider.ParseJob{Status: provider.ParseJobCompleted}
	}
	return jobID, nil
}

func (p *FakeParser) GetJob(ctx context.Context, jobID string, seller domain.SellerID) (provider.ParseJob, error) {
	return p.Jobs[jobID], nil
}

func (p *FakeParser) GetParsed(ctx context.Context, documentID string, seller domain.SellerID) (provider.ParsedDocument, error) {
	return p.Parsed[documentID], nil
}

var _ provider.ParserService = (*FakeParser)(nil)
