package service

import "fmt"

// Finalization stages that can fail.
const (
	StageSummary      = "summary"
	StageLookup       = "lookup"
	StageAssociations = "associations"
	StageDispatch     = "dispatch"
)

// PersistenceError reports a failed finalization stage. It is logged and
// counted, never surfaced to the instrumented request.
type PersistenceError struct {
	Stage         string
	CorrelationID string
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("call %s: %s: %v", e.CorrelationID, e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
