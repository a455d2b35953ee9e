package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/retrieval"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

type stubHistory struct {
	messages []models.Message
	err      error
}

func (s *stubHistory) ListRecent(ctx context.Context, ownerScope string, limit int) ([]models.Message, error) {
	return s.messages, s.err
}

type stubRetriever struct {
	result retrieval.Result
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, ownerScope, query string) (retrieval.Result, error) {
	return s.result, s.err
}

type stubGenerator struct {
	lastReq providers.GenerateRequest
	text    string
	err     error
}

func (s *stubGenerator) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	s.lastReq = req
	return s.text, s.err
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	a := NewAssembler(&stubHistory{}, &stubRetriever{}, &stubGenerator{}, 10)
	_, err := a.Ask(context.Background(), "alice", "   ")
	require.True(t, errors.Is(err, util.ErrEmptyQuery))
}

func TestAskPromptOrdering(t *testing.T) {
	gen := &stubGenerator{text: "the answer"}
	a := NewAssembler(
		&stubHistory{messages: []models.Message{
			{Role: "user", Text: "what are we building"},
			{Role: "assistant", Text: "a checkout flow"},
		}},
		&stubRetriever{result: retrieval.Result{Context: "checkout supports cards"}},
		gen,
		10,
	)

	ans, err := a.Ask(context.Background(), "alice", "which payment methods?")
	require.NoError(t, err)
	require.Equal(t, "the answer", ans.Text)

	prompt := gen.lastReq.Prompt
	historyIdx := strings.Index(prompt, "USER: what are we building")
	contextIdx := strings.Index(prompt, "checkout supports cards")
	queryIdx := strings.Index(prompt, "which payment methods?")
	require.Greater(t, historyIdx, 0)
	require.Greater(t, contextIdx, historyIdx)
	require.Greater(t, queryIdx, contextIdx)
	require.Contains(t, prompt, "ASSISTANT: a checkout flow")
	require.Equal(t, 2048, gen.lastReq.MaxTokens)
	require.InDelta(t, 0.7, gen.lastReq.Temperature, 1e-9)
}

func TestAskEmptyHistoryPlaceholder(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	a := NewAssembler(&stubHistory{}, &stubRetriever{result: retrieval.Result{Context: retrieval.NoContextMarker, NoContext: true}}, gen, 10)

	_, err := a.Ask(context.Background(), "alice", "anything?")
	require.NoError(t, err)
	require.Contains(t, gen.lastReq.Prompt, "(no prior conversation)")
	require.Contains(t, gen.lastReq.Prompt, retrieval.NoContextMarker)
}

func TestAskSurfacesGenerationError(t *testing.T) {
	genErr := errors.New("generation request failed: upstream 500")
	a := NewAssembler(&stubHistory{}, &stubRetriever{}, &stubGenerator{err: genErr}, 10)
	_, err := a.Ask(context.Background(), "alice", "question")
	require.ErrorIs(t, err, genErr)
}

func TestAskSurfacesRetrievalError(t *testing.T) {
	retErr := errors.New("embed query: provider down")
	a := NewAssembler(&stubHistory{}, &stubRetriever{err: retErr}, &stubGenerator{}, 10)
	_, err := a.Ask(context.Background(), "alice", "question")
	require.ErrorIs(t, err, retErr)
}
