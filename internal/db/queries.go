package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// recordRow is the wire shape of a memory record. The id comes back as a
// SurrealDB RecordID and similarity is only present on search results.
type recordRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	FeatureType string                 `json:"feature_type"`
	Label       string                 `json:"label"`
	UserIntent  string                 `json:"user_intent"`
	Parameters  map[string]any         `json:"parameters"`
	Timestamp   time.Time              `json:"timestamp"`
	Description string                 `json:"description"`
	Embedding   []float32              `json:"embedding,omitempty"`
	Similarity  float64                `json:"similarity,omitempty"`
}

func (r recordRow) toRecord() models.MemoryRecord {
	id, _ := r.ID.ID.(string)
	return models.MemoryRecord{
		ID:          id,
		FeatureType: models.FeatureType(r.FeatureType),
		Label:       r.Label,
		UserIntent:  r.UserIntent,
		Parameters:  r.Parameters,
		Timestamp:   r.Timestamp,
		Description: r.Description,
		Embedding:   r.Embedding,
	}
}

// EnsureCollection creates the part's memory collection if it does not
// exist. Idempotent: the DDL uses IF NOT EXISTS throughout, and names
// already defined by this process are skipped entirely.
func (c *Client) EnsureCollection(ctx context.Context, partID string) error {
	table := CollectionName(partID)
	if c.isEnsured(table) {
		return nil
	}

	_, err := surrealdb.Query[any](ctx, c.db, collectionDDL(table, c.cfg.Dimension), nil)
	if err != nil {
		return wrapQueryError(err)
	}
	c.markEnsured(table)
	return nil
}

func (c *Client) isEnsured(table string) bool {
	c.ensuredMu.Lock()
	defer c.ensuredMu.Unlock()
	return c.ensured[table]
}

func (c *Client) markEnsured(table string) {
	c.ensuredMu.Lock()
	defer c.ensuredMu.Unlock()
	c.ensured[table] = true
}

// UpsertRecord stores one memory record keyed by its id. Retrying with the
// same id is safe. A vector of the wrong dimension is rejected client-side
// with ErrSchemaViolation before anything reaches the store.
func (c *Client) UpsertRecord(ctx context.Context, partID string, record models.MemoryRecord) error {
	if len(record.Embedding) != c.cfg.Dimension {
		return fmt.Errorf("%w: embedding dimension %d, collection expects %d",
			ErrSchemaViolation, len(record.Embedding), c.cfg.Dimension)
	}
	if record.Description == "" {
		return fmt.Errorf("%w: record has empty description", ErrSchemaViolation)
	}

	table := CollectionName(partID)
	params := record.Parameters
	if params == nil {
		params = map[string]any{}
	}

	_, err := surrealdb.Query[any](ctx, c.db, fmt.Sprintf(`
		UPSERT type::thing("%s", $id) CONTENT {
			feature_type: $feature_type,
			label: $label,
			user_intent: $user_intent,
			parameters: $parameters,
			timestamp: $timestamp,
			description: $description,
			embedding: $embedding
		}
	`, table), map[string]any{
		"id":           record.ID,
		"feature_type": string(record.FeatureType),
		"label":        record.Label,
		"user_intent":  record.UserIntent,
		"parameters":   params,
		"timestamp":    record.Timestamp,
		"description":  record.Description,
		"embedding":    record.Embedding,
	})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// SearchRecords returns up to topK records ranked by cosine similarity to
// the query vector, ties broken by most recent timestamp. A feature-type
// constraint, when given, restricts the candidate set before neighbors are
// chosen, so nearby records of other types never crowd out matching ones.
// An absent or empty collection yields an empty result, not an error.
func (c *Client) SearchRecords(
	ctx context.Context,
	partID string,
	queryVector []float32,
	topK int,
	featureTypes []models.FeatureType,
) ([]models.ScoredRecord, error) {
	table := CollectionName(partID)

	exists, err := c.collectionExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []models.ScoredRecord{}, nil
	}

	vars := map[string]any{
		"emb":   queryVector,
		"limit": topK,
	}

	var sql string
	if len(featureTypes) > 0 {
		// Filtered search scans only the matching rows and ranks those by
		// similarity. Going through the KNN operator here would select
		// neighbors before filtering and could starve the result set when
		// the nearest neighbors are of other types.
		types := make([]string, len(featureTypes))
		for i, t := range featureTypes {
			types[i] = string(t)
		}
		vars["types"] = types
		sql = fmt.Sprintf(`
			SELECT *, vector::similarity::cosine(embedding, $emb) AS similarity
			FROM %s
			WHERE feature_type IN $types
			ORDER BY similarity DESC, timestamp DESC
			LIMIT $limit
		`, table)
	} else {
		// KNN over the HNSW index (ef=40), similarity recomputed for ordering.
		sql = fmt.Sprintf(`
			SELECT *, vector::similarity::cosine(embedding, $emb) AS similarity
			FROM %s
			WHERE embedding <|%d,40|> $emb
			ORDER BY similarity DESC, timestamp DESC
			LIMIT $limit
		`, table, topK)
	}

	results, err := surrealdb.Query[[]recordRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ScoredRecord{}, nil
	}
	rows := (*results)[0].Result
	scored := make([]models.ScoredRecord, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, models.ScoredRecord{
			MemoryRecord: row.toRecord(),
			Similarity:   row.Similarity,
		})
	}
	return scored, nil
}

// FullHistory returns every record of a part in chronological order.
func (c *Client) FullHistory(ctx context.Context, partID string) ([]models.MemoryRecord, error) {
	table := CollectionName(partID)

	exists, err := c.collectionExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []models.MemoryRecord{}, nil
	}

	sql := fmt.Sprintf(`SELECT * OMIT embedding FROM %s ORDER BY timestamp ASC`, table)
	results, err := surrealdb.Query[[]recordRow](ctx, c.db, sql, nil)
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 {
		return []models.MemoryRecord{}, nil
	}
	rows := (*results)[0].Result
	records := make([]models.MemoryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// CountRecords returns the number of records in a part's collection.
func (c *Client) CountRecords(ctx context.Context, partID string) (int, error) {
	table := CollectionName(partID)

	exists, err := c.collectionExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	sql := fmt.Sprintf(`SELECT count() AS c FROM %s GROUP ALL`, table)
	results, err := surrealdb.Query[[]struct {
		C int `json:"c"`
	}](ctx, c.db, sql, nil)
	if err != nil {
		return 0, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// ListParts returns the sanitized part ids that have a memory collection,
// sorted for stable output.
func (c *Client) ListParts(ctx context.Context) ([]string, error) {
	tables, err := c.listTables(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		if id, ok := PartIDFromCollection(table); ok {
			parts = append(parts, id)
		}
	}
	sort.Strings(parts)
	return parts, nil
}

// dbInfo is the shape of INFO FOR DB output we care about.
type dbInfo struct {
	Tables map[string]string `json:"tables"`
}

func (c *Client) listTables(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[dbInfo](ctx, c.db, `INFO FOR DB`, nil)
	if err != nil {
		return nil, wrapQueryError(err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	info := (*results)[0].Result
	tables := make([]string, 0, len(info.Tables))
	for name := range info.Tables {
		tables = append(tables, name)
	}
	return tables, nil
}

func (c *Client) collectionExists(ctx context.Context, table string) (bool, error) {
	if c.isEnsured(table) {
		return true, nil
	}
	tables, err := c.listTables(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range tables {
		if name == table {
			return true, nil
		}
	}
	return false, nil
}
