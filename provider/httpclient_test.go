package provider_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/clarioclaims/engine/internal/platformlog"
	"github.com/clarioclaims/engine/internal/platformtelemetry"
	"github.com/clarioclaims/engine/provider"
)

func TestNewHTTPClientPropagatesTraceContext(t *testing.T) {
	ctx := context.Background()
	tel, err := platformtelemetry.New(ctx, platformtelemetry.Config{
		ServiceName:  "claims-engine-test",
		StdoutWriter: io.Discard,
	}, platformlog.Noop())
	require.NoError(t, err)
	defer tel.Shutdown(ctx)

	var traceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := provider.NewHTTPClient(nil)

	spanCtx, span := otel.Tracer("httpclient_test").Start(ctx, "adapter.call")
	req, err := http.NewRequestWithContext(spanCtx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	span.End()

	assert.NotEmpty(t, traceparent, "outgoing requests must carry W3C trace context")
}

func TestNewHTTPClientAcceptsCustomTransport(t *testing.T) {
	var body bytes.Buffer
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("report data"))
	}))
	defer server.Close()

	client := provider.NewHTTPClient(&http.Transport{MaxIdleConnsPerHost: 1})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "report data", body.String())
}
