// Package cad defines the CAD engine boundary and an HTTP bridge client.
// The core never computes geometry; it hands validated operation requests
// to an engine and consumes its verdict.
package cad

import (
	"context"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// Result is the engine's verdict on one dispatched operation.
type Result struct {
	Success   bool   `json:"success"`
	FeatureID string `json:"feature_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Engine executes geometry operations against a CAD document. An error
// return means the engine could not be reached; a Result with
// Success=false means the engine ran the operation and it failed (invalid
// selection state, geometry error).
type Engine interface {
	Execute(ctx context.Context, partID string, req models.OperationRequest) (*Result, error)
	RenameFeature(ctx context.Context, partID, featureID, label string) error
}
