package redact

import "fmt"

// ConfigError reports a malformed redaction rule or redactor spec. It is
// raised at construction time, never while redacting.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("redact: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("redact: %s %q: %s", e.Field, e.Value, e.Message)
}

func newConfigError(field, value, msg string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: msg}
}
