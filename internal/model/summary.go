package model

import (
	"net/url"
	"time"
)

// DefaultAPIVersion is used when the caller sent no version header.
const DefaultAPIVersion = "default"

// CallSummary is the persisted digest of a call, one row per correlation id.
type CallSummary struct {
	ID             string        `gorm:"primaryKey;type:uuid" json:"id"`
	CorrelationID  string        `gorm:"uniqueIndex;not null" json:"correlation_id"`
	Path           string        `gorm:"not null" json:"path"`
	Method         string        `gorm:"size:16;not null" json:"method"`
	APIVersion     string        `gorm:"size:64;not null" json:"api_version"`
	RequestAt      time.Time     `gorm:"not null" json:"request_at"`
	ResponseAt     *time.Time    `json:"response_at,omitempty"`
	ResponseStatus *int          `json:"response_status,omitempty"`
	IsError        bool          `gorm:"not null;default:false" json:"is_error"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Entities       []Association `gorm:"foreignKey:CallSummaryID;constraint:OnDelete:CASCADE" json:"entities,omitempty"`
}

func (CallSummary) TableName() string { return "call_summaries" }

// DurationMs is nil until the response side is known.
func (s *CallSummary) DurationMs() *int64 {
	if s.ResponseAt == nil || s.RequestAt.IsZero() {
		return nil
	}
	ms := s.ResponseAt.Sub(s.RequestAt).Milliseconds()
	return &ms
}

// Association links a call summary to an entity touched during the call.
type Association struct {
	ID            uint64    `gorm:"primaryKey" json:"id"`
	CallSummaryID string    `gorm:"type:uuid;not null;uniqueIndex:idx_call_summary_entity" json:"call_summary_id"`
	EntityType    string    `gorm:"not null;uniqueIndex:idx_call_summary_entity" json:"entity_type"`
	EntityID      string    `gorm:"not null;uniqueIndex:idx_call_summary_entity" json:"entity_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Association) TableName() string { return "call_summary_entities" }

// SummaryFromRecord derives the persisted digest of a record. The id is left
// for the store to assign.
func SummaryFromRecord(r *LogRecord) *CallSummary {
	s := &CallSummary{
		CorrelationID: r.CorrelationID,
		Path:          pathOf(r.URL),
		Method:        r.Method,
		APIVersion:    r.Request.APIVersion,
		RequestAt:     r.Request.Timestamp,
		IsError:       !r.Success,
	}
	if s.APIVersion == "" {
		s.APIVersion = DefaultAPIVersion
	}
	if r.IsComplete() {
		at := r.Response.Timestamp
		status := r.StatusCode
		s.ResponseAt = &at
		s.ResponseStatus = &status
	}
	return s
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// CallFilter narrows call summary listings.
type CallFilter struct {
	Path    string
	Method  string
	IsError *bool
	From    *time.Time
	To      *time.Time
	Limit   int
}
