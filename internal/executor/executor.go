// Package executor dispatches validated operations to the CAD engine,
// labels executed features, and writes the outcome back to part memory.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/partvoice-go/internal/cad"
	"github.com/raphaelgruber/partvoice-go/internal/llm"
	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// ErrExecutionFailed indicates the CAD engine rejected or failed the
// operation. No memory record is written for failed operations.
var ErrExecutionFailed = errors.New("execution failed")

// Recorder is the memory write path plus the summary used for labeling.
// memory.Manager is the production implementation and the only one that
// writes to part collections.
type Recorder interface {
	RecordOperation(ctx context.Context, partID string, featureType models.FeatureType, label, userIntent string, parameters map[string]any, timestamp time.Time) (*models.MemoryRecord, error)
	ContextSummary(ctx context.Context, partID, query string) (string, error)
}

// Labeler produces short descriptive feature labels.
type Labeler interface {
	LabelFeature(ctx context.Context, featureType, intent, params, history string) (string, error)
}

// Executor runs validated operation requests end to end.
type Executor struct {
	engine  cad.Engine
	labeler Labeler
	memory  Recorder
	logger  *slog.Logger
}

// New creates an executor.
func New(engine cad.Engine, labeler Labeler, memory Recorder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, labeler: labeler, memory: memory, logger: logger}
}

// Execute dispatches the request to the CAD engine. On engine failure the
// returned error wraps ErrExecutionFailed and nothing is remembered. On
// success the feature is labeled (deterministic fallback when labeling
// fails), renamed in the feature tree, and recorded in part memory; a
// memory-write failure degrades to a warning because the CAD side effect
// already happened and must not be rolled back.
func (e *Executor) Execute(ctx context.Context, partID string, req models.OperationRequest) (models.ExecutionResult, error) {
	res, err := e.engine.Execute(ctx, partID, req)
	if err != nil {
		e.logger.Error("operation dispatch failed", "part", partID, "feature_type", req.FeatureType, "error", err)
		return models.ExecutionResult{
			Status: models.ExecutionFailed,
			Reason: err.Error(),
		}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	if !res.Success {
		e.logger.Warn("operation rejected by CAD engine",
			"part", partID, "feature_type", req.FeatureType, "reason", res.Error)
		return models.ExecutionResult{
			Status: models.ExecutionFailed,
			Reason: res.Error,
		}, fmt.Errorf("%w: %s", ErrExecutionFailed, res.Error)
	}

	timestamp := time.Now().UTC()
	label := e.label(ctx, partID, req, timestamp)

	if res.FeatureID != "" {
		if err := e.engine.RenameFeature(ctx, partID, res.FeatureID, label); err != nil {
			e.logger.Warn("feature rename failed", "part", partID, "feature_id", res.FeatureID, "error", err)
		}
	}

	result := models.ExecutionResult{
		Status:    models.ExecutionSucceeded,
		Label:     label,
		FeatureID: res.FeatureID,
	}

	if _, err := e.memory.RecordOperation(ctx, partID, req.FeatureType, label, req.UserIntent, req.Parameters, timestamp); err != nil {
		// Executed but not remembered: the operation succeeded, memory didn't.
		e.logger.Warn("operation executed but not remembered",
			"part", partID, "feature_type", req.FeatureType, "error", err)
		result.MemoryDegraded = true
	}

	return result, nil
}

// label picks the feature label: fixed labels for bookkeeping operations,
// otherwise ask the reasoning engine, falling back to the deterministic
// "<feature_type> <timestamp>" form when generation fails.
func (e *Executor) label(ctx context.Context, partID string, req models.OperationRequest, ts time.Time) string {
	switch req.FeatureType {
	case models.FeatureDimensionEdit:
		return "Dimension Modification"
	case models.FeatureExport:
		if path, ok := req.Parameters["path"].(string); ok && path != "" {
			return "Export to " + path
		}
	}

	history, err := e.memory.ContextSummary(ctx, partID, req.UserIntent)
	if err != nil {
		history = ""
	}

	label, err := e.labeler.LabelFeature(ctx,
		string(req.FeatureType), req.UserIntent, paramsText(req.Parameters), history)
	if err != nil || strings.TrimSpace(label) == "" {
		if err != nil {
			e.logger.Warn("label generation failed, using default", "part", partID, "error", err)
		}
		return llm.DeterministicLabel(string(req.FeatureType), ts)
	}

	// Engines sometimes pad the label with quotes or extra lines.
	label = strings.TrimSpace(label)
	if i := strings.IndexByte(label, '\n'); i >= 0 {
		label = label[:i]
	}
	return strings.Trim(label, `"'`)
}

func paramsText(params map[string]any) string {
	if len(params) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ", ")
}
