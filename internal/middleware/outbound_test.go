package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestOutboundTransportLogsCall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"amount":10}`, string(body))
		assert.Equal(t, "out-1", r.Header.Get(testHeader))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"charge":"ch_1"}`))
	}))
	defer upstream.Close()

	h := newHarness(t)
	client := &http.Client{Transport: NewOutboundTransport(nil, h.svc, testConfig())}

	ctx := service.ContextWithCorrelationID(context.Background(), "parent-1")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstream.URL+"/charges", strings.NewReader(`{"amount":10}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testHeader, "out-1")

	resp, err := client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, `{"charge":"ch_1"}`, string(body))

	entries, err := h.raw.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	rec := entries[0].Record
	assert.Equal(t, "out-1", rec["id"])
	assert.Equal(t, "POST "+strings.TrimPrefix(upstream.URL, "http://")+"/charges", rec["operation_name"])
	assert.Equal(t, float64(http.StatusAccepted), rec["status_code"])
	assert.Equal(t, true, rec["success"])
	assert.Equal(t, map[string]any{"amount": float64(10)}, rec["request"].(map[string]any)["body"])
	assert.Equal(t, map[string]any{"charge": "ch_1"}, rec["response"].(map[string]any)["body"])
	meta := rec["meta"].(map[string]any)
	assert.Equal(t, "outbound", meta["type"])
	assert.Equal(t, "net/http", meta["client"])
	assert.Equal(t, "parent-1", meta["parent_id"])

	_, err = h.store.GetCallSummary(context.Background(), "out-1")
	require.NoError(t, err)
}

func TestOutboundTransportRecordsTransportError(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Correlation.EnsureHeader = true
	failing := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		assert.NotEmpty(t, r.Header.Get(testHeader))
		return nil, errors.New("connection refused")
	})
	client := &http.Client{Transport: NewOutboundTransport(failing, h.svc, cfg)}

	req, err := http.NewRequest(http.MethodGet, "http://payments.local/status", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
	assert.Empty(t, req.Header.Get(testHeader), "caller's request must not be mutated")

	entries, err := h.raw.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	rec := entries[0].Record
	assert.Equal(t, float64(http.StatusInternalServerError), rec["status_code"])
	assert.Equal(t, false, rec["success"])
	assert.Equal(t, "GET payments.local/status", rec["operation_name"])
	assert.Equal(t, "connection refused", rec["response"].(map[string]any)["body"].(map[string]any)["error"])
	assert.Equal(t, defaultOutboundAgent, rec["request"].(map[string]any)["user_agent"])
}

func TestOutboundTransportSkips(t *testing.T) {
	passthrough := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})

	cases := []struct {
		name   string
		ctx    context.Context
		header string
		url    string
	}{
		{name: "no header", ctx: context.Background(), url: "http://api.local/x"},
		{name: "skipped context", ctx: service.WithoutCallLog(context.Background()), header: "k", url: "http://api.local/x"},
		{name: "excluded host", ctx: context.Background(), header: "k", url: "http://metrics.internal/x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			cfg := testConfig()
			cfg.Outbound.ExcludeHosts = []string{"*.internal"}
			client := &http.Client{Transport: NewOutboundTransport(passthrough, h.svc, cfg)}

			req, err := http.NewRequestWithContext(tc.ctx, http.MethodGet, tc.url, nil)
			require.NoError(t, err)
			if tc.header != "" {
				req.Header.Set(testHeader, tc.header)
			}
			resp, err := client.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Zero(t, h.raw.Len())
		})
	}
}
