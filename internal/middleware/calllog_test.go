package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/GoPolymarket/apilogs/internal/channel"
	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/redact"
	"github.com/GoPolymarket/apilogs/internal/repository"
	"github.com/GoPolymarket/apilogs/internal/service"
	"github.com/GoPolymarket/apilogs/internal/sink"
	"github.com/GoPolymarket/apilogs/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "X-Request-Id"

type harness struct {
	svc      *service.CallLogService
	store    *repository.MemoryCallStore
	raw      *sink.MemorySink
	redacted *sink.MemorySink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemoryCallStore()
	entities := repository.NewEntityRegistry()
	entities.Register("User", repository.EntityFinderFunc(func(_ context.Context, ids []string) ([]string, error) {
		var found []string
		for _, id := range ids {
			if id == "1" {
				found = append(found, id)
			}
		}
		return found, nil
	}))

	h := &harness{store: store, raw: sink.NewMemorySink(10), redacted: sink.NewMemorySink(10)}
	mgr := channel.NewManager()
	require.NoError(t, mgr.Register("raw", h.raw))
	auth, err := redact.NewDotNotation([]string{"request.headers.authorization"}, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Register("redacted", h.redacted, auth))

	h.svc = service.NewCallLogService(tracker.New(), store, entities, mgr)
	return h
}

func testConfig() config.CallLogConfig {
	return config.CallLogConfig{
		Enabled:      true,
		Correlation:  config.CorrelationConfig{HeaderName: testHeader},
		ExcludePaths: []string{"health", "internal/**"},
		Outbound:     config.OutboundConfig{Enabled: true},
	}
}

func newRouter(h *harness, cfg config.CallLogConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CallLog(h.svc, cfg))
	r.POST("/users/:id", func(c *gin.Context) {
		TrackEntity(c, "User", c.Param("id"))
		AddCallMeta(c, "tenant", "acme")
		c.JSON(http.StatusCreated, gin.H{"id": c.Param("id"), "token": "t-1"})
	})
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/internal/debug/vars", func(c *gin.Context) { c.String(http.StatusOK, "{}") })
	return r
}

func TestCallLogRecordsInboundCall(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/users/1", strings.NewReader(`{"name":"ann"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set(testHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(testHeader))
	assert.Contains(t, w.Body.String(), `"token":"t-1"`)

	summary, err := h.store.GetCallSummary(context.Background(), "req-42")
	require.NoError(t, err)
	require.NotNil(t, summary.ResponseStatus)
	assert.Equal(t, http.StatusCreated, *summary.ResponseStatus)
	assert.Equal(t, "/users/1", summary.Path)
	require.Len(t, summary.Entities, 1)
	assert.Equal(t, "User", summary.Entities[0].EntityType)
	assert.Equal(t, "1", summary.Entities[0].EntityID)
	assert.Zero(t, h.svc.Tracker().Len())

	raw, err := h.raw.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	rec := raw[0].Record
	assert.Equal(t, "POST /users/:id", rec["operation_name"])
	assert.Equal(t, "POST http://example.com/users/1", raw[0].Message)
	request := rec["request"].(map[string]any)
	assert.Equal(t, "Bearer secret", request["headers"].(map[string]any)["authorization"])
	assert.Equal(t, map[string]any{"name": "ann"}, request["body"])
	response := rec["response"].(map[string]any)
	assert.Equal(t, "t-1", response["body"].(map[string]any)["token"])
	meta := rec["meta"].(map[string]any)
	assert.Equal(t, "inbound", meta["type"])
	assert.Equal(t, "acme", meta["tenant"])

	redacted, err := h.redacted.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, redacted, 1)
	headers := redacted[0].Record["request"].(map[string]any)["headers"].(map[string]any)
	assert.Equal(t, redact.DefaultReplacement, headers["authorization"])
}

func TestCallLogSkipsWithoutCorrelationHeader(t *testing.T) {
	h := newHarness(t)
	r := newRouter(h, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/1", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(testHeader))
	assert.Zero(t, h.raw.Len())
	assert.Zero(t, h.svc.Tracker().Len())
}

func TestCallLogEnsuresCorrelationHeader(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Correlation.EnsureHeader = true
	r := newRouter(h, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/2", nil))

	id := w.Header().Get(testHeader)
	require.NotEmpty(t, id)
	summary, err := h.store.GetCallSummary(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, summary.Entities, "user 2 does not exist")
	assert.Equal(t, 1, h.raw.Len())
}

func TestCallLogExcludedPaths(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Correlation.EnsureHeader = true
	r := newRouter(h, cfg)

	for _, path := range []string{"/health", "/internal/debug/vars"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get(testHeader), path)
	}
	assert.Zero(t, h.raw.Len())
}

func TestCallLogDisabled(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Enabled = false
	r := newRouter(h, cfg)

	req := httptest.NewRequest(http.MethodPost, "/users/1", nil)
	req.Header.Set(testHeader, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Zero(t, h.raw.Len())
}

func TestCallLogCompletesWhenHandlerPanics(t *testing.T) {
	h := newHarness(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery(), CallLog(h.svc, testConfig()))
	r.POST("/users/:id", func(c *gin.Context) {
		TrackEntity(c, "User", c.Param("id"))
		panic("db exploded")
	})

	req := httptest.NewRequest(http.MethodPost, "/users/1", nil)
	req.Header.Set(testHeader, "req-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, h.svc.Tracker().Len())

	summary, err := h.store.GetCallSummary(context.Background(), "req-panic")
	require.NoError(t, err)
	require.NotNil(t, summary.ResponseStatus)
	assert.Equal(t, http.StatusInternalServerError, *summary.ResponseStatus)
	assert.True(t, summary.IsError)
	require.Len(t, summary.Entities, 1)

	entries, err := h.raw.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, false, entries[0].Record["success"])
	body := entries[0].Record["response"].(map[string]any)["body"].(map[string]any)
	assert.Equal(t, "db exploded", body["error"])
}

func TestTrackEntityOutsideLoggedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, TrackEntity(c, "User", 1))
	assert.Empty(t, CorrelationID(c))
	AddCallMeta(c, "k", "v")
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{"empty", "application/json", "", map[string]any{}},
		{"json", "application/json; charset=utf-8", `{"a":[1,2]}`, map[string]any{"a": []any{float64(1), float64(2)}}},
		{"vendor json", "application/vnd.api+json", `{"a":true}`, map[string]any{"a": true}},
		{"broken json", "application/json", `{"a":`, `{"a":`},
		{"form", "application/x-www-form-urlencoded", "a=1&b=2&b=3", map[string]any{"a": "1", "b": []any{"2", "3"}}},
		{"text", "text/plain", "hello", "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decodeBody(tc.contentType, []byte(tc.body)))
		})
	}
}

func TestFlattenHeaders(t *testing.T) {
	h := http.Header{}
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")
	h.Set("Content-Type", "text/plain")

	got := flattenHeaders(h)
	assert.Equal(t, "a\nb", got["x-multi"])
	assert.Equal(t, "text/plain", got["content-type"])
	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	assert.Equal(t, []string{"content-type", "x-multi"}, keys)
}
