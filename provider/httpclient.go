package provider

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds the HTTP client a real provider adapter dials out
// with: pooled connections tuned for long sync runs against one provider
// host, and an otelhttp transport so every request carries W3C trace
// context and shows up under the throttled client's attempt spans.
//
// Adapters should create one client at construction and reuse it; the
// throttled client supplies the per-call deadline via the request context,
// so no Timeout is set here.
func NewHTTPClient(transport *http.Transport) *http.Client {
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
	}
}
