// Package interpreter maps natural-language commands onto the fixed CAD
// operation schema, grounded in retrieved part memory.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/partvoice-go/internal/models"
	"github.com/raphaelgruber/partvoice-go/internal/units"
)

// Validation errors. Check with errors.Is(). These abort the current
// command only; nothing reaches the CAD engine or part memory.
var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrMissingParameter     = errors.New("missing parameter")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrMalformedResponse    = errors.New("malformed response")
)

// ContextProvider supplies retrieved part memory.
type ContextProvider interface {
	RetrieveContext(ctx context.Context, partID, queryText string, topK int, featureTypes ...models.FeatureType) ([]models.ScoredRecord, error)
	ContextSummary(ctx context.Context, partID, query string) (string, error)
}

// RouterModel is the reasoning engine boundary: prompt in, structured text out.
type RouterModel interface {
	InterpretCommand(ctx context.Context, catalog, history, intent string) (string, error)
}

// Interpretation is the outcome of interpreting one command: either a
// validated operation request, or a recall summary that short-circuits
// execution entirely.
type Interpretation struct {
	Recall  bool
	Summary string
	Request *models.OperationRequest

	// Context holds the records retrieved for grounding, most similar
	// first. Empty when retrieval degraded.
	Context []models.ScoredRecord
}

// Interpreter turns (intent, part memory) into validated operation requests.
type Interpreter struct {
	memory ContextProvider
	model  RouterModel
	topK   int
	logger *slog.Logger
}

// New creates an interpreter. topK bounds how many memory records ground
// the prompt, keeping prompt size and latency predictable.
func New(memory ContextProvider, model RouterModel, topK int, logger *slog.Logger) *Interpreter {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{memory: memory, model: model, topK: topK, logger: logger}
}

// Interpret maps a user command onto the operation schema. Memory retrieval
// failures degrade to an empty context set; the command is still
// interpreted rather than blocked.
func (i *Interpreter) Interpret(ctx context.Context, partID, intent string) (*Interpretation, error) {
	records, err := i.memory.RetrieveContext(ctx, partID, intent, i.topK)
	if err != nil {
		i.logger.Warn("context retrieval failed, proceeding without memory",
			"part", partID, "error", err)
		records = nil
	}

	raw, err := i.model.InterpretCommand(ctx, CatalogText(), historyBlock(records), intent)
	if err != nil {
		return nil, fmt.Errorf("reasoning engine: %w", err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	featureType := models.FeatureType(resp.FeatureType)
	if featureType == models.FeatureRecall {
		return i.recall(ctx, partID, records), nil
	}

	request, err := validate(featureType, resp.Parameters, intent, resp.Label)
	if err != nil {
		return nil, err
	}

	i.logger.Info("command interpreted",
		"part", partID, "feature_type", request.FeatureType, "context_records", len(records))
	return &Interpretation{Request: request, Context: records}, nil
}

// recall builds the human-readable history summary. It never reaches the
// CAD engine. A summary failure degrades to the already-retrieved context.
func (i *Interpreter) recall(ctx context.Context, partID string, records []models.ScoredRecord) *Interpretation {
	summary, err := i.memory.ContextSummary(ctx, partID, "")
	if err != nil {
		i.logger.Warn("history summary failed, using retrieved context", "part", partID, "error", err)
		if len(records) == 0 {
			summary = "No prior features recorded for this part."
		} else {
			var b strings.Builder
			fmt.Fprintf(&b, "## Feature history for part '%s'\n", partID)
			for n, r := range records {
				fmt.Fprintf(&b, "\n%d. %s", n+1, r.Description)
			}
			summary = b.String()
		}
	}
	return &Interpretation{Recall: true, Summary: summary, Context: records}
}

// routerResponse is the structured reply expected from the reasoning
// engine. Treated as untrusted input: field presence and types are
// validated against the operation schema before any further use.
type routerResponse struct {
	FeatureType string         `json:"feature_type"`
	Parameters  map[string]any `json:"parameters"`
	Label       string         `json:"label"`
}

// parseResponse extracts the JSON object from the engine's reply. Models
// occasionally wrap the object in prose or code fences despite
// instructions, so everything outside the outermost braces is discarded.
func parseResponse(raw string) (*routerResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(raw, 120))
	}

	var resp routerResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.FeatureType == "" {
		return nil, fmt.Errorf("%w: missing feature_type", ErrMalformedResponse)
	}
	return &resp, nil
}

// validate checks the response against the fixed operation schema and
// normalizes all length parameters to meters.
func validate(featureType models.FeatureType, params map[string]any, intent, label string) (*models.OperationRequest, error) {
	spec := models.Spec(featureType)
	if spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperation, featureType)
	}

	normalized, err := units.NormalizeParameters(params, models.LengthParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	for _, p := range spec.Required {
		v, ok := normalized[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %q", ErrMissingParameter, featureType, p.Name)
		}
		if err := checkParam(p, v); err != nil {
			return nil, err
		}
	}
	for _, p := range spec.Optional {
		v, ok := normalized[p.Name]
		if !ok {
			continue
		}
		if err := checkParam(p, v); err != nil {
			return nil, err
		}
	}

	return &models.OperationRequest{
		FeatureType: featureType,
		Parameters:  normalized,
		UserIntent:  intent,
		Label:       strings.TrimSpace(label),
	}, nil
}

func checkParam(p models.ParamSpec, v any) error {
	switch p.Kind {
	case models.ParamNumber:
		n, ok := asNumber(v)
		if !ok {
			return fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidParameter, p.Name, v)
		}
		if p.Positive && n <= 0 {
			return fmt.Errorf("%w: %q must be positive, got %v", ErrInvalidParameter, p.Name, n)
		}
	case models.ParamString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidParameter, p.Name, v)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %q must not be empty", ErrInvalidParameter, p.Name)
		}
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func historyBlock(records []models.ScoredRecord) string {
	if len(records) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, "- "+r.Description)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
