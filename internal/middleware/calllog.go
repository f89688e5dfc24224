package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/metrics"
	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
)

const (
	ContextCallLog        = "call_log"
	ContextCorrelationID  = "call_log_correlation_id"
	ContextCallLogService = "call_log_service"
)

// bodyLogWriter captures the response body while passing it through.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CallLog records every inbound call that carries (or is given) a
// correlation key and finalizes it after the handler chain has run.
func CallLog(svc *service.CallLogService, cfg config.CallLogConfig) gin.HandlerFunc {
	header := cfg.Correlation.HeaderName
	return func(c *gin.Context) {
		if !cfg.Enabled || !shouldLogInbound(c, cfg.ExcludePaths) {
			c.Next()
			return
		}

		key := c.GetHeader(header)
		if key == "" && !cfg.Correlation.EnsureHeader {
			c.Next()
			return
		}
		id := svc.Open(key)
		c.Request.Header.Set(header, id)
		c.Header(header, id)

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		rec := model.NewLogRecord(id, c.Request.Method, requestURL(c), svc.Now())
		rec.Request.Headers = flattenHeaders(c.Request.Header)
		rec.Request.Body = decodeBody(c.ContentType(), reqBody)
		rec.Request.IPAddress = c.ClientIP()
		rec.Request.UserAgent = c.Request.UserAgent()
		rec.Request.APIVersion = apiVersion(c.Request.Header)
		rec.SetMeta(model.MetaType, model.CallTypeInbound)

		c.Request = c.Request.WithContext(service.ContextWithCorrelationID(c.Request.Context(), id))
		c.Set(ContextCorrelationID, id)
		c.Set(ContextCallLogService, svc)
		c.Set(ContextCallLog, rec)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		defer func() {
			status := c.Writer.Status()
			respBody := decodeBody(c.Writer.Header().Get("Content-Type"), blw.body.Bytes())
			r := recover()
			if r != nil {
				status = http.StatusInternalServerError
				respBody = map[string]any{"error": fmt.Sprint(r)}
			}
			finishInbound(c, svc, rec, status, respBody)
			if r != nil {
				// let gin.Recovery render the response
				panic(r)
			}
		}()

		c.Next()
	}
}

func finishInbound(c *gin.Context, svc *service.CallLogService, rec *model.LogRecord, status int, body any) {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	rec.Operation = c.Request.Method + " " + route
	rec.Complete(status, flattenHeaders(c.Writer.Header()), body, svc.Now())
	metrics.CallsTotal.WithLabelValues(model.CallTypeInbound, outcome(rec.Success)).Inc()

	// the client may already be gone; finalization still has to run
	svc.Complete(context.WithoutCancel(c.Request.Context()), rec)
}

func shouldLogInbound(c *gin.Context, exclude []string) bool {
	if c.Request.Method == "OPTIONS" {
		return false
	}
	path := strings.TrimPrefix(c.Request.URL.Path, "/")
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), path); ok {
			return false
		}
	}
	return true
}

func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	} else if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

// CorrelationID returns the current call's correlation id, or "".
func CorrelationID(c *gin.Context) string {
	return c.GetString(ContextCorrelationID)
}

// TrackEntity links an entity to the current call. It reports false when
// the request is not being logged.
func TrackEntity(c *gin.Context, entityType string, id any) bool {
	v, ok := c.Get(ContextCallLogService)
	if !ok {
		return false
	}
	svc, ok := v.(*service.CallLogService)
	correlationID := CorrelationID(c)
	if !ok || correlationID == "" {
		return false
	}
	svc.RegisterEntity(correlationID, entityType, id)
	return true
}

// AddCallMeta attaches business context to the current call's record.
func AddCallMeta(c *gin.Context, key string, value any) {
	if val, exists := c.Get(ContextCallLog); exists {
		if rec, ok := val.(*model.LogRecord); ok {
			rec.SetMeta(key, value)
		}
	}
}
