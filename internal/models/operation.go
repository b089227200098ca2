package models

// OperationRequest is the validated, unit-normalized output of command
// interpretation, ready for dispatch to the CAD engine.
type OperationRequest struct {
	FeatureType FeatureType    `json:"feature_type"`
	Parameters  map[string]any `json:"parameters"`

	// UserIntent is the original command text, carried along so the
	// executor can store it verbatim in part memory.
	UserIntent string `json:"user_intent"`

	// Label is the reasoning engine's proposed feature label. The executor
	// may replace it after execution.
	Label string `json:"label,omitempty"`
}

// ExecutionStatus is the terminal state of a dispatched operation.
type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ExecutionResult reports the outcome of one operation dispatch.
type ExecutionResult struct {
	Status    ExecutionStatus `json:"status"`
	Label     string          `json:"label,omitempty"`
	FeatureID string          `json:"feature_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`

	// MemoryDegraded marks an operation that executed but could not be
	// remembered (embedding or storage failure during the write-back).
	// The CAD side effect stands; this is a warning, not a failure.
	MemoryDegraded bool `json:"memory_degraded,omitempty"`
}
