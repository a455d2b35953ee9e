package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
)

const (
	// ContextSeparator joins ranked fragment texts in the assembled context.
	ContextSeparator = "\n\n---\n\n"
	// NoContextMarker stands in for the context block when nothing clears
	// the similarity floor.
	NoContextMarker = "[no relevant context found]"
)

// FragmentSource lists the embedded fragments eligible for ranking.
type FragmentSource interface {
	ListByOwnerProcessed(ctx context.Context, ownerScope string) ([]models.Fragment, error)
}

type RankedFragment struct {
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type Result struct {
	Fragments []RankedFragment `json:"fragments"`
	Context   string           `json:"context"`
	NoContext bool             `json:"no_context"`
}

// Engine ranks stored fragments against a query by cosine similarity.
// Ranking happens here rather than in SQL so the tie-break order is exact.
type Engine struct {
	fragments     FragmentSource
	embedder      providers.EmbeddingClient
	topK          int
	minSimilarity float64
}

func NewEngine(fragments FragmentSource, embedder providers.EmbeddingClient, topK int, minSimilarity float64) *Engine {
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		fragments:     fragments,
		embedder:      embedder,
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

// Retrieve embeds the query and returns the top fragments above the
// similarity floor, joined into a context block. A failed query embedding
// is a hard error; the caller gets no degraded results.
func (e *Engine) Retrieve(ctx context.Context, ownerScope, query string) (Result, error) {
	return e.RetrieveWithOptions(ctx, ownerScope, query, e.topK, e.minSimilarity)
}

// RetrieveWithOptions is Retrieve with per-call limits. topK <= 0 and
// minSimilarity < 0 fall back to the engine defaults.
func (e *Engine) RetrieveWithOptions(ctx context.Context, ownerScope, query string, topK int, minSimilarity float64) (Result, error) {
	if topK <= 0 {
		topK = e.topK
	}
	if minSimilarity < 0 {
		minSimilarity = e.minSimilarity
	}
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	fragments, err := e.fragments.ListByOwnerProcessed(ctx, ownerScope)
	if err != nil {
		return Result{}, fmt.Errorf("load fragments: %w", err)
	}

	ranked := make([]RankedFragment, 0, len(fragments))
	for _, f := range fragments {
		ranked = append(ranked, RankedFragment{
			DocumentID: f.DocumentID,
			Ordinal:    f.Ordinal,
			Text:       f.Text,
			Score:      Cosine(queryVec, f.Embedding),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Ordinal != ranked[j].Ordinal {
			return ranked[i].Ordinal < ranked[j].Ordinal
		}
		return ranked[i].DocumentID < ranked[j].DocumentID
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	kept := make([]RankedFragment, 0, len(ranked))
	for _, r := range ranked {
		if r.Score >= minSimilarity {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		return Result{Fragments: []RankedFragment{}, Context: NoContextMarker, NoContext: true}, nil
	}
	texts := make([]string, 0, len(kept))
	for _, r := range kept {
		texts = append(texts, r.Text)
	}
	return Result{Fragments: kept, Context: strings.Join(texts, ContextSeparator)}, nil
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors score 0 rather than erroring.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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
