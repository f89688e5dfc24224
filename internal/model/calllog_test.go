package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord() *LogRecord {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := NewLogRecord("corr-1", "POST", "https://api.example.com/v1/users?x=1", start)
	rec.Operation = "POST /v1/users"
	rec.Request.Body = map[string]any{
		"password": "secret",
		"tags":     []any{"a", "b"},
	}
	rec.Request.Headers["authorization"] = "Bearer abc"
	return rec
}

func TestLogRecordCompleteOnlyOnce(t *testing.T) {
	rec := newTestRecord()
	done := rec.Request.Timestamp.Add(150 * time.Millisecond)

	require.True(t, rec.Complete(201, map[string]string{"content-type": "application/json"}, map[string]any{"id": "u1"}, done))
	assert.Equal(t, 201, rec.StatusCode)
	assert.True(t, rec.Success)
	assert.Equal(t, 150*time.Millisecond, rec.Duration())

	assert.False(t, rec.Complete(500, nil, nil, done.Add(time.Second)))
	assert.Equal(t, 201, rec.StatusCode)
	assert.True(t, rec.Success)
}

func TestLogRecordFailureStatus(t *testing.T) {
	rec := newTestRecord()
	rec.Complete(422, nil, nil, rec.Request.Timestamp)
	assert.False(t, rec.Success)
	assert.NotNil(t, rec.Response.Headers)
	assert.Equal(t, map[string]any{}, rec.Response.Body)
}

func TestLogRecordCloneIsIndependent(t *testing.T) {
	rec := newTestRecord()
	rec.SetMeta(MetaParentID, "parent-1")

	c := rec.Clone()
	c.Request.Body.(map[string]any)["password"] = "changed"
	c.Request.Body.(map[string]any)["tags"].([]any)[0] = "z"
	c.Request.Headers["authorization"] = "changed"
	c.Meta[MetaParentID] = "other"

	body := rec.Request.Body.(map[string]any)
	assert.Equal(t, "secret", body["password"])
	assert.Equal(t, "a", body["tags"].([]any)[0])
	assert.Equal(t, "Bearer abc", rec.Request.Headers["authorization"])
	assert.Equal(t, "parent-1", rec.ParentID())
}

func TestLogRecordToMapReturnsFreshTree(t *testing.T) {
	rec := newTestRecord()

	first, err := rec.ToMap()
	require.NoError(t, err)
	first["request"].(map[string]any)["body"].(map[string]any)["password"] = "[REDACTED]"

	second, err := rec.ToMap()
	require.NoError(t, err)
	assert.Equal(t, "secret", second["request"].(map[string]any)["body"].(map[string]any)["password"])
	assert.Equal(t, "corr-1", second["id"])
	assert.Equal(t, "POST /v1/users", second["operation_name"])
	assert.Equal(t, "secret", rec.Request.Body.(map[string]any)["password"])
}

func TestSummaryFromRecord(t *testing.T) {
	rec := newTestRecord()
	pending := SummaryFromRecord(rec)
	assert.Equal(t, "/v1/users", pending.Path)
	assert.Equal(t, DefaultAPIVersion, pending.APIVersion)
	assert.Nil(t, pending.ResponseAt)
	assert.Nil(t, pending.DurationMs())

	rec.Request.APIVersion = "2024-01"
	rec.Complete(500, nil, nil, rec.Request.Timestamp.Add(2*time.Second))
	s := SummaryFromRecord(rec)
	require.NotNil(t, s.ResponseStatus)
	assert.Equal(t, 500, *s.ResponseStatus)
	assert.True(t, s.IsError)
	assert.Equal(t, "2024-01", s.APIVersion)
	require.NotNil(t, s.DurationMs())
	assert.Equal(t, int64(2000), *s.DurationMs())
}

func TestEntityRefKey(t *testing.T) {
	assert.Equal(t, "User:42", NewEntityRef("User", 42).Key())
	assert.Equal(t, NewEntityRef("User", "42"), NewEntityRef("User", 42))
}
