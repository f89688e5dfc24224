// Package sink holds the destinations a channel can emit call records to.
package sink

import (
	"context"
	"time"
)

// Entry is what a sink stores or transmits for one emission.
type Entry struct {
	Channel   string         `json:"channel"`
	Message   string         `json:"message"`
	Record    map[string]any `json:"record"`
	EmittedAt time.Time      `json:"emitted_at"`
}

func newEntry(channel, message string, fields map[string]any) Entry {
	return Entry{Channel: channel, Message: message, Record: fields, EmittedAt: time.Now().UTC()}
}

// Discard accepts and drops everything.
type Discard struct{}

func (Discard) Emit(context.Context, string, string, map[string]any) error { return nil }
