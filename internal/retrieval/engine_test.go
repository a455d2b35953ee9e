package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsawhneybuilds/exploprd/internal/models"
)

type stubFragments struct {
	fragments []models.Fragment
	err       error
}

func (s *stubFragments) ListByOwnerProcessed(ctx context.Context, ownerScope string) ([]models.Fragment, error) {
	return s.fragments, s.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

// frag builds a unit-vector fragment whose cosine against the query vector
// [1,0] equals score.
func frag(docID string, ordinal int, text string, score float64) models.Fragment {
	rem := 1 - score*score
	if rem < 0 {
		rem = 0
	}
	return models.Fragment{
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
		Embedding:  []float32{float32(score), float32(math.Sqrt(rem))},
	}
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 3}), 1e-9)
	require.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosineDegenerateInputs(t *testing.T) {
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	require.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	require.Equal(t, 0.0, Cosine(nil, nil))
}

func TestRetrieveThresholdAndOrder(t *testing.T) {
	source := &stubFragments{fragments: []models.Fragment{
		frag("doc-a", 0, "top match", 0.9),
		frag("doc-a", 1, "second match", 0.75),
		frag("doc-b", 0, "below floor", 0.65),
		frag("doc-b", 1, "weak", 0.5),
		frag("doc-c", 0, "irrelevant", 0.3),
	}}
	engine := NewEngine(source, &stubEmbedder{vec: []float32{1, 0}}, 5, 0.7)

	res, err := engine.Retrieve(context.Background(), "alice", "what is the top match")
	require.NoError(t, err)
	require.False(t, res.NoContext)
	require.Len(t, res.Fragments, 2)
	require.Equal(t, "top match", res.Fragments[0].Text)
	require.Equal(t, "second match", res.Fragments[1].Text)
	require.Equal(t, "top match"+ContextSeparator+"second match", res.Context)
}

func TestRetrieveTopKBeforeThreshold(t *testing.T) {
	source := &stubFragments{fragments: []models.Fragment{
		frag("doc-a", 0, "a0", 0.99),
		frag("doc-a", 1, "a1", 0.98),
		frag("doc-a", 2, "a2", 0.97),
		frag("doc-a", 3, "a3", 0.96),
	}}
	engine := NewEngine(source, &stubEmbedder{vec: []float32{1, 0}}, 2, 0.7)

	res, err := engine.Retrieve(context.Background(), "alice", "query")
	require.NoError(t, err)
	require.Len(t, res.Fragments, 2)
	require.Equal(t, "a0", res.Fragments[0].Text)
	require.Equal(t, "a1", res.Fragments[1].Text)
}

func TestRetrieveTieBreakOrdinalThenDocument(t *testing.T) {
	source := &stubFragments{fragments: []models.Fragment{
		{DocumentID: "doc-b", Ordinal: 2, Text: "b2", Embedding: []float32{1, 0}},
		{DocumentID: "doc-b", Ordinal: 0, Text: "b0", Embedding: []float32{1, 0}},
		{DocumentID: "doc-a", Ordinal: 2, Text: "a2", Embedding: []float32{1, 0}},
	}}
	engine := NewEngine(source, &stubEmbedder{vec: []float32{1, 0}}, 5, 0.7)

	res, err := engine.Retrieve(context.Background(), "alice", "query")
	require.NoError(t, err)
	require.Len(t, res.Fragments, 3)
	require.Equal(t, "b0", res.Fragments[0].Text)
	require.Equal(t, "a2", res.Fragments[1].Text)
	require.Equal(t, "b2", res.Fragments[2].Text)
}

func TestRetrieveNoContext(t *testing.T) {
	source := &stubFragments{fragments: []models.Fragment{
		frag("doc-a", 0, "distant", 0.1),
	}}
	engine := NewEngine(source, &stubEmbedder{vec: []float32{1, 0}}, 5, 0.7)

	res, err := engine.Retrieve(context.Background(), "alice", "query")
	require.NoError(t, err)
	require.True(t, res.NoContext)
	require.Empty(t, res.Fragments)
	require.Equal(t, NoContextMarker, res.Context)
}

func TestRetrieveEmbedFailureIsHardError(t *testing.T) {
	source := &stubFragments{fragments: []models.Fragment{
		frag("doc-a", 0, "text", 0.9),
	}}
	engine := NewEngine(source, &stubEmbedder{err: errors.New("provider down")}, 5, 0.7)

	_, err := engine.Retrieve(context.Background(), "alice", "query")
	require.Error(t, err)
}
