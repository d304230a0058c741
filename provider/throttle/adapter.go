package throttle

import (
	"context"
	"time"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/provider"
)

// Endpoint classes used for token-bucket and circuit-breaker keying. Auth
// exchanges, report downloads, and document operations hit different
// provider quotas, so each gets its own bucket.
const (
	ClassAuth      = "auth"
	ClassReports   = "reports"
	ClassDocuments = "documents"
)

// CredentialSource supplies the current credentials for a seller and
// persists refreshed ones. The Source Connection lifecycle says credentials
// are "refreshed by Throttled Client on 401"; this is the hook that makes
// that true without the client knowing where credentials live.
type CredentialSource interface {
	Current(ctx context.Context, seller domain.SellerID) (provider.CredentialBundle, error)
	Store(ctx context.Context, seller domain.SellerID, creds provider.CredentialBundle) error
}

// Adapter wraps a provider.Adapter so every network-facing method runs
// through the Client's token bucket, retry, and 401-refresh path. The
// orchestrator and document ingest only ever see this wrapper; handing them
// a bare adapter would let them outrun the rate limits.
type Adapter struct {
	inner  provider.Adapter
	client *Client
	creds  CredentialSource

	metadataBudget time.Duration
	documentBudget time.Duration
}

// NewAdapter wraps inner with client. creds may be nil for providers whose
// credentials never expire (the 401-refresh path is then disabled and a 401
// surfaces as Auth immediately).
func NewAdapter(inner provider.Adapter, client *Client, creds CredentialSource) *Adapter {
	return &Adapter{
		inner:          inner,
		client:         client,
		creds:          creds,
		metadataBudget: client.cfg.DefaultBudget,
		documentBudget: client.cfg.ParsingBudget,
	}
}

func (a *Adapter) Name() string    { return a.inner.Name() }
func (a *Adapter) AuthURL() string { return a.inner.AuthURL() }

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (provider.CredentialBundle, error) {
	resp, err := a.execute(ctx, ClassAuth, a.metadataBudget, "", func(ctx context.Context) (interface{}, error) {
		return a.inner.ExchangeCode(ctx, code)
	})
	if err != nil {
		return provider.CredentialBundle{}, err
	}
	return resp.(provider.CredentialBundle), nil
}

// Refresh is the refresh primitive itself, so it runs without a refresh
// callback: a 401 here is terminal.
func (a *Adapter) Refresh(ctx context.Context, creds provider.CredentialBundle) (provider.CredentialBundle, error) {
	resp, err := a.execute(ctx, ClassAuth, a.metadataBudget, "", func(ctx context.Context) (interface{}, error) {
		return a.inner.Refresh(ctx, creds)
	})
	if err != nil {
		return provider.CredentialBundle{}, err
	}
	return resp.(provider.CredentialBundle), nil
}

func (a *Adapter) ListReportWindows(ctx context.Context, seller domain.SellerID, horizon domain.Window) ([]domain.Window, error) {
	resp, err := a.execute(ctx, ClassReports, a.metadataBudget, seller, func(ctx context.Context) (interface{}, error) {
		return a.inner.ListReportWindows(ctx, seller, horizon)
	})
	if err != nil {
		return nil, err
	}
	windows, _ := resp.([]domain.Window)
	return windows, nil
}

func (a *Adapter) DownloadReport(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, window domain.Window) ([]provider.RawRecord, error) {
	resp, err := a.execute(ctx, ClassReports, a.metadataBudget, seller, func(ctx context.Context) (interface{}, error) {
		return a.inner.DownloadReport(ctx, seller, reportType, window)
	})
	if err != nil {
		return nil, err
	}
	records, _ := resp.([]provider.RawRecord)
	return records, nil
}

func (a *Adapter) ListDocuments(ctx context.Context, seller domain.SellerID, since time.Time) ([]provider.DocumentRef, error) {
	resp, err := a.execute(ctx, ClassDocuments, a.metadataBudget, seller, func(ctx context.Context) (interface{}, error) {
		return a.inner.ListDocuments(ctx, seller, since)
	})
	if err != nil {
		return nil, err
	}
	refs, _ := resp.([]provider.DocumentRef)
	return refs, nil
}

func (a *Adapter) FetchDocument(ctx context.Context, seller domain.SellerID, ref provider.DocumentRef) (provider.FetchedDocument, error) {
	resp, err := a.execute(ctx, ClassDocuments, a.documentBudget, seller, func(ctx context.Context) (interface{}, error) {
		return a.inner.FetchDocument(ctx, seller, ref)
	})
	if err != nil {
		return provider.FetchedDocument{}, err
	}
	return resp.(provider.FetchedDocument), nil
}

// execute adapts a typed adapter call into the Client's Op shape and back.
// seller is empty for calls that happen before a seller identity exists
// (OAuth code exchange); those never get a refresh callback either way.
func (a *Adapter) execute(ctx context.Context, class string, budget time.Duration, seller domain.SellerID, call func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	var refresh RefreshFunc
	if a.creds != nil && seller != "" {
		refresh = func(ctx context.Context) error {
			current, err := a.creds.Current(ctx, seller)
			if err != nil {
				return err
			}
			fresh, err := a.inner.Refresh(ctx, current)
			if err != nil {
				return err
			}
			return a.creds.Store(ctx, seller, fresh)
		}
	}

	resp, err := a.client.Execute(ctx, a.inner.Name(), class, budget.Milliseconds(), refresh, func(ctx context.Context) (Response, error) {
		payload, err := call(ctx)
		if err != nil {
			return Response{Err: err}, err
		}
		return Response{Status: 200, Payload: payload}, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

var _ provider.Adapter = (*Adapter)(nil)
