package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// fakeEmbedder maps each text to a deterministic vector: texts sharing more
// words land closer together, which is enough to test ranking.
type fakeEmbedder struct {
	fail error
}

const fakeDim = 16

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	v := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, c := range w {
			h = h*31 + int(c)
		}
		if h < 0 {
			h = -h
		}
		v[h%fakeDim]++
	}
	return v, nil
}

func (f *fakeEmbedder) Dimension() int { return fakeDim }

// fakeStore keeps records per part and ranks searches by cosine similarity.
type fakeStore struct {
	collections map[string][]models.MemoryRecord

	ensureErr error
	upsertErr error
	searchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string][]models.MemoryRecord{}}
}

func (s *fakeStore) EnsureCollection(_ context.Context, partID string) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	if _, ok := s.collections[partID]; !ok {
		s.collections[partID] = nil
	}
	return nil
}

func (s *fakeStore) UpsertRecord(_ context.Context, partID string, record models.MemoryRecord) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for i, r := range s.collections[partID] {
		if r.ID == record.ID {
			s.collections[partID][i] = record
			return nil
		}
	}
	s.collections[partID] = append(s.collections[partID], record)
	return nil
}

func (s *fakeStore) SearchRecords(_ context.Context, partID string, queryVector []float32, topK int, featureTypes []models.FeatureType) ([]models.ScoredRecord, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var scored []models.ScoredRecord
	for _, r := range s.collections[partID] {
		if len(featureTypes) > 0 && !containsType(featureTypes, r.FeatureType) {
			continue
		}
		scored = append(scored, models.ScoredRecord{MemoryRecord: r, Similarity: cosine(queryVector, r.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Timestamp.After(scored[j].Timestamp)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *fakeStore) FullHistory(_ context.Context, partID string) ([]models.MemoryRecord, error) {
	records := append([]models.MemoryRecord(nil), s.collections[partID]...)
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

func containsType(types []models.FeatureType, t models.FeatureType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestRecordOperationRoundTrip(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeEmbedder{}, nil)
	ctx := context.Background()

	rec, err := mgr.RecordOperation(ctx, "bracket", models.FeatureSketchCircle, "Base Circle",
		"draw a circle 5cm radius", map[string]any{"cx": 0.0, "cy": 0.0, "radius": "5cm"}, time.Now().UTC())
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 0.05, rec.Parameters["radius"], "units canonicalized to meters before storage")
	assert.Len(t, rec.Embedding, fakeDim)
	assert.Contains(t, rec.Description, "sketch-circle")
	assert.Contains(t, rec.Description, "draw a circle 5cm radius")

	// The record must be findable again by its own intent text.
	scored, err := mgr.RetrieveContext(ctx, "bracket", "draw a circle 5cm radius", 5)
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	assert.Equal(t, rec.ID, scored[0].ID)
}

func TestRecordOperationRanksOwnDescriptionFirst(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeEmbedder{}, nil)
	ctx := context.Background()

	intents := []struct {
		ft     models.FeatureType
		label  string
		intent string
	}{
		{models.FeatureSketchRectangle, "Base Plate Sketch", "draw a rectangle ten by five"},
		{models.FeatureExtrude, "Main Body Extrude", "extrude the plate upward"},
		{models.FeatureFillet, "Edge Fillet", "round off the sharp edges"},
	}
	for _, in := range intents {
		_, err := mgr.RecordOperation(ctx, "plate", in.ft, in.label, in.intent, nil, time.Now().UTC())
		require.NoError(t, err)
	}

	scored, err := mgr.RetrieveContext(ctx, "plate", "round off the sharp edges", 3)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Equal(t, "Edge Fillet", scored[0].Label)
}

func TestRecordOperationFailsOnEmbedError(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeEmbedder{fail: errors.New("embedding backend down")}, nil)

	_, err := mgr.RecordOperation(context.Background(), "bracket", models.FeatureExtrude, "Extrude",
		"extrude 1cm", map[string]any{"depth": "1cm"}, time.Now().UTC())
	require.Error(t, err)
	assert.Empty(t, store.collections["bracket"], "nothing stored when embedding fails")
}

func TestRecordOperationFailsOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("storage unavailable")
	mgr := New(store, &fakeEmbedder{}, nil)

	_, err := mgr.RecordOperation(context.Background(), "bracket", models.FeatureExtrude, "Extrude",
		"extrude 1cm", map[string]any{"depth": "1cm"}, time.Now().UTC())
	require.Error(t, err)
}

func TestContextSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("empty part", func(t *testing.T) {
		mgr := New(newFakeStore(), &fakeEmbedder{}, nil)
		summary, err := mgr.ContextSummary(ctx, "fresh-part", "")
		require.NoError(t, err)
		assert.Equal(t, "No prior features recorded for this part.", summary)
	})

	t.Run("full history is chronological and numbered", func(t *testing.T) {
		store := newFakeStore()
		mgr := New(store, &fakeEmbedder{}, nil)

		base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
		_, err := mgr.RecordOperation(ctx, "bracket", models.FeatureSketchRectangle, "Base Plate",
			"draw a rectangle", nil, base)
		require.NoError(t, err)
		_, err = mgr.RecordOperation(ctx, "bracket", models.FeatureExtrude, "Main Extrude",
			"extrude it", map[string]any{"depth": 0.01}, base.Add(time.Minute))
		require.NoError(t, err)

		summary, err := mgr.ContextSummary(ctx, "bracket", "")
		require.NoError(t, err)
		assert.Contains(t, summary, "## Feature history for part 'bracket'")
		assert.Contains(t, summary, `1. [sketch-rectangle] "Base Plate"`)
		assert.Contains(t, summary, `2. [extrude] "Main Extrude"`)
		assert.Contains(t, summary, "depth=0.01")
	})

	t.Run("query ranks relevant records first", func(t *testing.T) {
		store := newFakeStore()
		mgr := New(store, &fakeEmbedder{}, nil)

		now := time.Now().UTC()
		_, err := mgr.RecordOperation(ctx, "bracket", models.FeatureSketchRectangle, "Base Plate",
			"draw a rectangle", nil, now)
		require.NoError(t, err)
		_, err = mgr.RecordOperation(ctx, "bracket", models.FeatureFillet, "Edge Fillet",
			"fillet the edges", nil, now.Add(time.Minute))
		require.NoError(t, err)

		summary, err := mgr.ContextSummary(ctx, "bracket", "fillet the edges")
		require.NoError(t, err)
		assert.Contains(t, summary, `1. [fillet] "Edge Fillet"`)
	})
}

func TestBuildDescription(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			"sorted params",
			map[string]any{"depth": 0.01, "count": 3},
			"extrude: Main Extrude. Intent: extrude it. Params: count=3, depth=0.01",
		},
		{
			"no params",
			nil,
			"extrude: Main Extrude. Intent: extrude it. Params: none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDescription(models.FeatureExtrude, "Main Extrude", "extrude it", tt.params)
			if got != tt.want {
				t.Errorf("BuildDescription = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDescriptionDeterministic(t *testing.T) {
	params := map[string]any{"x1": 0.0, "y1": 0.0, "x2": 0.1, "y2": 0.05}
	first := BuildDescription(models.FeatureSketchRectangle, "Plate", "draw it", params)
	for i := 0; i < 10; i++ {
		if got := BuildDescription(models.FeatureSketchRectangle, "Plate", "draw it", params); got != first {
			t.Fatalf("description not deterministic on iteration %d: %q vs %q", i, got, first)
		}
	}
}

func TestRetrieveContextEqualSimilarityPrefersRecent(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeEmbedder{}, nil)
	ctx := context.Background()

	// Identical descriptions embed identically, so the two extrudes tie on
	// similarity and only the timestamp can order them.
	base := time.Now().UTC()
	older, err := mgr.RecordOperation(ctx, "housing", models.FeatureExtrude, "Body Extrude",
		"extrude 10 millimetres", map[string]any{"depth": 0.01}, base)
	require.NoError(t, err)
	newer, err := mgr.RecordOperation(ctx, "housing", models.FeatureExtrude, "Body Extrude",
		"extrude 10 millimetres", map[string]any{"depth": 0.01}, base.Add(time.Minute))
	require.NoError(t, err)

	scored, err := mgr.RetrieveContext(ctx, "housing", "extrude 10 millimetres", 2)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.Equal(t, scored[0].Similarity, scored[1].Similarity)
	assert.Equal(t, newer.ID, scored[0].ID, "equal similarity ranks the most recent record first")
	assert.Equal(t, older.ID, scored[1].ID)
}

func TestRetrieveContextFeatureTypeFilter(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeEmbedder{}, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, ft := range []models.FeatureType{models.FeatureExtrude, models.FeatureFillet, models.FeatureExtrude} {
		_, err := mgr.RecordOperation(ctx, "shaft", ft, fmt.Sprintf("Feature %d", i), "some intent", nil, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	scored, err := mgr.RetrieveContext(ctx, "shaft", "some intent", 10, models.FeatureExtrude)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	for _, r := range scored {
		assert.Equal(t, models.FeatureExtrude, r.FeatureType)
	}
}
