package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// RequestInfo is the request half of a captured call.
type RequestInfo struct {
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	APIVersion string            `json:"api_version"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ResponseInfo stays zero until the call completes.
type ResponseInfo struct {
	Headers   map[string]string `json:"headers"`
	Body      any               `json:"body"`
	Timestamp time.Time         `json:"timestamp,omitzero"`
}

// LogRecord is one captured HTTP call, inbound or outbound.
type LogRecord struct {
	CorrelationID string         `json:"id"`             // correlation key shared by related calls
	Operation     string         `json:"operation_name"` // e.g. "POST /v1/users/:id"
	URL           string         `json:"url"`
	Method        string         `json:"method"`
	StatusCode    int            `json:"status_code"`
	Success       bool           `json:"success"`
	Request       RequestInfo    `json:"request"`
	Response      ResponseInfo   `json:"response"`
	Meta          map[string]any `json:"meta"` // parent_id, type, client ...
}

// Meta keys written by the boundaries.
const (
	MetaParentID = "parent_id"
	MetaType     = "type"
	MetaClient   = "client"

	CallTypeInbound  = "inbound"
	CallTypeOutbound = "outbound"
)

// NewLogRecord starts a record at call start with an empty response.
func NewLogRecord(correlationID, method, url string, at time.Time) *LogRecord {
	return &LogRecord{
		CorrelationID: correlationID,
		Method:        method,
		URL:           url,
		Request: RequestInfo{
			Headers:   map[string]string{},
			Body:      map[string]any{},
			Timestamp: at,
		},
		Response: ResponseInfo{
			Headers: map[string]string{},
			Body:    map[string]any{},
		},
		Meta: map[string]any{},
	}
}

// Complete fills the response side. It reports false if the record was
// already completed, in which case nothing changes.
func (r *LogRecord) Complete(status int, headers map[string]string, body any, at time.Time) bool {
	if r.IsComplete() {
		return false
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if body == nil {
		body = map[string]any{}
	}
	r.StatusCode = status
	r.Success = status < 400
	r.Response = ResponseInfo{Headers: headers, Body: body, Timestamp: at}
	return true
}

func (r *LogRecord) IsComplete() bool {
	return !r.Response.Timestamp.IsZero()
}

// Duration is zero for records that have not completed.
func (r *LogRecord) Duration() time.Duration {
	if !r.IsComplete() {
		return 0
	}
	return r.Response.Timestamp.Sub(r.Request.Timestamp)
}

// SetMeta sets a meta key, allocating the map if needed.
func (r *LogRecord) SetMeta(key string, value any) {
	if r.Meta == nil {
		r.Meta = map[string]any{}
	}
	r.Meta[key] = value
}

// ParentID returns the correlation id of the inbound call that issued this one.
func (r *LogRecord) ParentID() string {
	if v, ok := r.Meta[MetaParentID]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *LogRecord) Clone() *LogRecord {
	c := *r
	c.Request.Headers = maps.Clone(r.Request.Headers)
	c.Request.Body = cloneValue(r.Request.Body)
	c.Response.Headers = maps.Clone(r.Response.Headers)
	c.Response.Body = cloneValue(r.Response.Body)
	if m, ok := cloneValue(r.Meta).(map[string]any); ok {
		c.Meta = m
	}
	return &c
}

// ToMap renders the record as a generic JSON tree. Every call returns a
// fresh tree that shares nothing with the record.
func (r *LogRecord) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal log record %s: %w", r.CorrelationID, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal log record %s: %w", r.CorrelationID, err)
	}
	return out, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
