// Package memory owns the part memory record schema and its only write
// path. Every executed operation flows through Manager.RecordOperation;
// nothing else writes to a part's collection.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/partvoice-go/internal/models"
	"github.com/raphaelgruber/partvoice-go/internal/units"
)

// recallTopK bounds how many records a query-driven context summary lists.
const recallTopK = 10

// Store is the vector store the manager persists records to.
type Store interface {
	EnsureCollection(ctx context.Context, partID string) error
	UpsertRecord(ctx context.Context, partID string, record models.MemoryRecord) error
	SearchRecords(ctx context.Context, partID string, queryVector []float32, topK int, featureTypes []models.FeatureType) ([]models.ScoredRecord, error)
	FullHistory(ctx context.Context, partID string) ([]models.MemoryRecord, error)
}

// Embedder turns record descriptions and queries into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Manager is the memory read/write path for part collections.
type Manager struct {
	store    Store
	embedder Embedder
	logger   *slog.Logger
}

// New creates a memory manager.
func New(store Store, embedder Embedder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, embedder: embedder, logger: logger}
}

// RecordOperation stores one executed operation in the part's collection:
// canonicalize units, build the immutable description, embed it, assign a
// fresh id, upsert. Returns the stored record.
//
// Callers invoke this only after the CAD engine confirmed execution; a
// failure here means "executed but not remembered" and must not be treated
// as an operation failure.
func (m *Manager) RecordOperation(
	ctx context.Context,
	partID string,
	featureType models.FeatureType,
	label string,
	userIntent string,
	parameters map[string]any,
	timestamp time.Time,
) (*models.MemoryRecord, error) {
	canonical, err := units.NormalizeParameters(parameters, models.LengthParams)
	if err != nil {
		return nil, fmt.Errorf("canonicalize parameters: %w", err)
	}

	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	description := BuildDescription(featureType, label, userIntent, canonical)
	vector, err := m.embedder.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}

	record := models.MemoryRecord{
		ID:          uuid.NewString(),
		FeatureType: featureType,
		Label:       label,
		UserIntent:  userIntent,
		Parameters:  canonical,
		Timestamp:   timestamp,
		Description: description,
		Embedding:   vector,
	}

	if err := m.store.EnsureCollection(ctx, partID); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	if err := m.store.UpsertRecord(ctx, partID, record); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	m.logger.Info("operation recorded",
		"part", partID, "feature_type", featureType, "label", label, "id", record.ID)
	return &record, nil
}

// RetrieveContext embeds the query and returns the store's ranked records
// as-is. A feature-type constraint, when given, is pushed down to the store
// as a pre-filter.
func (m *Manager) RetrieveContext(
	ctx context.Context,
	partID string,
	queryText string,
	topK int,
	featureTypes ...models.FeatureType,
) ([]models.ScoredRecord, error) {
	vector, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	records, err := m.store.SearchRecords(ctx, partID, vector, topK, featureTypes)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return records, nil
}

// FullHistory returns every record of a part in chronological order.
func (m *Manager) FullHistory(ctx context.Context, partID string) ([]models.MemoryRecord, error) {
	return m.store.FullHistory(ctx, partID)
}

// ContextSummary builds a text summary of the part's history for prompt
// injection or recall output. With a query the most relevant records come
// first; without one the full chronological history is used.
func (m *Manager) ContextSummary(ctx context.Context, partID, query string) (string, error) {
	var records []models.MemoryRecord
	if query != "" {
		scored, err := m.RetrieveContext(ctx, partID, query, recallTopK)
		if err != nil {
			return "", err
		}
		for _, s := range scored {
			records = append(records, s.MemoryRecord)
		}
	} else {
		var err error
		records, err = m.FullHistory(ctx, partID)
		if err != nil {
			return "", err
		}
	}

	if len(records) == 0 {
		return "No prior features recorded for this part.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Feature history for part '%s'\n", partID)
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. [%s] %q - %s (params: %s, time: %s)",
			i+1, r.FeatureType, r.Label, r.UserIntent,
			formatParams(r.Parameters), r.Timestamp.UTC().Format(time.RFC3339))
	}
	return b.String(), nil
}

// BuildDescription produces the denormalized summary string that gets
// embedded. Parameter order is deterministic so the same operation always
// yields the same description.
func BuildDescription(featureType models.FeatureType, label, userIntent string, parameters map[string]any) string {
	return fmt.Sprintf("%s: %s. Intent: %s. Params: %s",
		featureType, label, userIntent, formatParams(parameters))
}

func formatParams(parameters map[string]any) string {
	if len(parameters) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(parameters[k]))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}
