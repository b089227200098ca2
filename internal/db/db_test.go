//go:build integration

// Package db integration tests run against a throwaway SurrealDB container.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

const testDimension = 8

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
		Dimension: testDimension,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// testEmbedding returns a deterministic unit-ish vector seeded by i.
func testEmbedding(seed float32) []float32 {
	emb := make([]float32, testDimension)
	for i := range emb {
		emb[i] = seed + float32(i)/float32(testDimension)
	}
	return emb
}

func testRecord(seed float32, featureType models.FeatureType, label string, ts time.Time) models.MemoryRecord {
	return models.MemoryRecord{
		ID:          uuid.NewString(),
		FeatureType: featureType,
		Label:       label,
		UserIntent:  "test intent for " + label,
		Parameters:  map[string]any{"depth": 0.01},
		Timestamp:   ts,
		Description: "test description for " + label,
		Embedding:   testEmbedding(seed),
	}
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.EnsureCollection(ctx, "Ensure Test"))
	require.NoError(t, testDB.EnsureCollection(ctx, "Ensure Test"))
	require.NoError(t, testDB.EnsureCollection(ctx, "ensure_test"), "equivalent id maps to same collection")
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	part := "search-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	base := time.Now().UTC().Truncate(time.Millisecond)
	near := testRecord(0.0, models.FeatureExtrude, "Base Extrude", base)
	far := testRecord(5.0, models.FeatureFillet, "Edge Fillet", base.Add(time.Second))
	require.NoError(t, testDB.UpsertRecord(ctx, part, near))
	require.NoError(t, testDB.UpsertRecord(ctx, part, far))

	scored, err := testDB.SearchRecords(ctx, part, testEmbedding(0.05), 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, scored)

	assert.Equal(t, "Base Extrude", scored[0].Label, "most similar record ranks first")
	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].Similarity, scored[i].Similarity, "results ordered by similarity")
	}
}

func TestUpsertRetrySameID(t *testing.T) {
	ctx := context.Background()
	part := "retry-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	rec := testRecord(1.0, models.FeatureChamfer, "Chamfer", time.Now().UTC())
	require.NoError(t, testDB.UpsertRecord(ctx, part, rec))
	rec.Label = "Chamfer v2"
	require.NoError(t, testDB.UpsertRecord(ctx, part, rec), "same id upserts, not duplicates")

	count, err := testDB.CountRecords(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	history, err := testDB.FullHistory(ctx, part)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Chamfer v2", history[0].Label)
}

func TestSearchFeatureTypeFilter(t *testing.T) {
	ctx := context.Background()
	part := "filter-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	now := time.Now().UTC()
	// Several extrudes sit right next to the query vector; the fillets are
	// all further away. A constrained search must still surface the fillets
	// instead of letting the nearer extrudes use up the neighbor budget.
	for i := 0; i < 4; i++ {
		rec := testRecord(float32(i)*0.01, models.FeatureExtrude, fmt.Sprintf("Extrude %d", i), now)
		require.NoError(t, testDB.UpsertRecord(ctx, part, rec))
	}
	for i := 0; i < 3; i++ {
		rec := testRecord(5.0+float32(i), models.FeatureFillet, fmt.Sprintf("Fillet %d", i), now)
		require.NoError(t, testDB.UpsertRecord(ctx, part, rec))
	}

	scored, err := testDB.SearchRecords(ctx, part, testEmbedding(0.0), 3, []models.FeatureType{models.FeatureFillet})
	require.NoError(t, err)
	require.Len(t, scored, 3, "all matching records within topK are returned")
	for _, r := range scored {
		assert.Equal(t, models.FeatureFillet, r.FeatureType)
	}
}

func TestSearchEqualSimilarityPrefersRecent(t *testing.T) {
	ctx := context.Background()
	part := "tiebreak-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := testRecord(0.0, models.FeatureExtrude, "Older Extrude", base)
	newer := testRecord(0.0, models.FeatureExtrude, "Newer Extrude", base.Add(time.Minute))
	require.NoError(t, testDB.UpsertRecord(ctx, part, older))
	require.NoError(t, testDB.UpsertRecord(ctx, part, newer))

	scored, err := testDB.SearchRecords(ctx, part, testEmbedding(0.0), 5, nil)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.Equal(t, scored[0].Similarity, scored[1].Similarity, "identical embeddings score identically")
	assert.Equal(t, "Newer Extrude", scored[0].Label, "equal similarity ranks the most recent record first")
}

func TestEnsureCollectionConcurrent(t *testing.T) {
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		part := fmt.Sprintf("concurrent-%d", i%4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- testDB.EnsureCollection(ctx, part)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestSearchAbsentCollection(t *testing.T) {
	ctx := context.Background()

	scored, err := testDB.SearchRecords(ctx, "never-created", testEmbedding(0.0), 5, nil)
	require.NoError(t, err, "absent collection is empty context, not an error")
	assert.Empty(t, scored)

	history, err := testDB.FullHistory(ctx, "never-created")
	require.NoError(t, err)
	assert.Empty(t, history)

	count, err := testDB.CountRecords(ctx, "never-created")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	part := "dimension-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	rec := testRecord(0.0, models.FeatureExtrude, "Bad Vector", time.Now().UTC())
	rec.Embedding = make([]float32, testDimension+1)
	err := testDB.UpsertRecord(ctx, part, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation), "dimension mismatch is a schema violation")
}

func TestUpsertEmptyDescription(t *testing.T) {
	ctx := context.Background()
	part := "description-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	rec := testRecord(0.0, models.FeatureExtrude, "No Description", time.Now().UTC())
	rec.Description = ""
	err := testDB.UpsertRecord(ctx, part, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestFullHistoryChronological(t *testing.T) {
	ctx := context.Background()
	part := "history-test"

	require.NoError(t, testDB.EnsureCollection(ctx, part))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		rec := testRecord(float32(i), models.FeatureSketchLine, fmt.Sprintf("Line %d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, testDB.UpsertRecord(ctx, part, rec))
	}

	history, err := testDB.FullHistory(ctx, part)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		assert.Equal(t, fmt.Sprintf("Line %d", i), rec.Label, "history is oldest first")
		assert.Empty(t, rec.Embedding, "history omits embeddings")
	}
}

func TestListParts(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.EnsureCollection(ctx, "list-a"))
	require.NoError(t, testDB.EnsureCollection(ctx, "list-b"))

	parts, err := testDB.ListParts(ctx)
	require.NoError(t, err)
	assert.Contains(t, parts, "list_a")
	assert.Contains(t, parts, "list_b")
}
