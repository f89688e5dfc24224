package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/metrics"
	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/bmatcuk/doublestar/v4"
)

const defaultOutboundAgent = "Go-http-client"

// OutboundTransport logs calls made through an http.Client. Calls made
// while serving a logged inbound request carry its id as parent_id.
type OutboundTransport struct {
	base http.RoundTripper
	svc  *service.CallLogService
	cfg  config.CallLogConfig
}

func NewOutboundTransport(base http.RoundTripper, svc *service.CallLogService, cfg config.CallLogConfig) *OutboundTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &OutboundTransport{base: base, svc: svc, cfg: cfg}
}

func (t *OutboundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !t.cfg.Enabled || !t.cfg.Outbound.Enabled || service.CallLogSkipped(ctx) || t.excluded(req.URL.Hostname()) {
		return t.base.RoundTrip(req)
	}

	header := t.cfg.Correlation.HeaderName
	key := req.Header.Get(header)
	if key == "" {
		if !t.cfg.Correlation.EnsureHeader {
			return t.base.RoundTrip(req)
		}
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(ctx)
		key = t.svc.Open("")
		req.Header.Set(header, key)
	}

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		if reqBody, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	rec := model.NewLogRecord(key, req.Method, req.URL.String(), t.svc.Now())
	rec.Operation = req.Method + " " + operationTarget(req)
	rec.Request.Headers = flattenHeaders(req.Header)
	rec.Request.Body = decodeBody(req.Header.Get("Content-Type"), reqBody)
	rec.Request.IPAddress = req.URL.Hostname()
	rec.Request.UserAgent = req.UserAgent()
	if rec.Request.UserAgent == "" {
		rec.Request.UserAgent = defaultOutboundAgent
	}
	rec.Request.APIVersion = apiVersion(req.Header)
	rec.SetMeta(model.MetaType, model.CallTypeOutbound)
	rec.SetMeta(model.MetaClient, "net/http")
	if parent, ok := service.CorrelationIDFromContext(ctx); ok && parent != key {
		rec.SetMeta(model.MetaParentID, parent)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		rec.Complete(http.StatusInternalServerError, map[string]string{},
			map[string]any{"error": err.Error()}, t.svc.Now())
		t.finish(ctx, rec)
		return nil, err
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	if readErr != nil {
		rec.Complete(resp.StatusCode, flattenHeaders(resp.Header),
			map[string]any{"error": readErr.Error()}, t.svc.Now())
		t.finish(ctx, rec)
		return nil, readErr
	}

	rec.Complete(resp.StatusCode, flattenHeaders(resp.Header),
		decodeBody(resp.Header.Get("Content-Type"), respBody), t.svc.Now())
	t.finish(ctx, rec)
	return resp, nil
}

func (t *OutboundTransport) finish(ctx context.Context, rec *model.LogRecord) {
	metrics.CallsTotal.WithLabelValues(model.CallTypeOutbound, outcome(rec.Success)).Inc()
	t.svc.Complete(context.WithoutCancel(ctx), rec)
}

func (t *OutboundTransport) excluded(host string) bool {
	for _, pattern := range t.cfg.Outbound.ExcludeHosts {
		if ok, _ := doublestar.Match(pattern, host); ok {
			return true
		}
	}
	return false
}

func operationTarget(req *http.Request) string {
	host := req.URL.Host
	if host == "" {
		host = "unknown"
	}
	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	return host + path
}
