package export

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

type stubDocs struct {
	docs []models.Document
	err  error
}

func (s *stubDocs) ListByOwner(ctx context.Context, ownerScope string) ([]models.Document, error) {
	return s.docs, s.err
}

type stubFragments struct {
	byDoc map[string][]models.Fragment
}

func (s *stubFragments) ListByDocument(ctx context.Context, documentID string) ([]models.Fragment, error) {
	return s.byDoc[documentID], nil
}

type stubHistory struct {
	messages []models.Message
}

func (s *stubHistory) ListRecent(ctx context.Context, ownerScope string, limit int) ([]models.Message, error) {
	if len(s.messages) > limit {
		return s.messages[len(s.messages)-limit:], nil
	}
	return s.messages, nil
}

type stubGenerator struct {
	lastReq providers.GenerateRequest
	calls   int
	text    string
	err     error
}

func (s *stubGenerator) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.text, s.err
}

func TestExportNoProcessedDocuments(t *testing.T) {
	gen := &stubGenerator{}
	a := NewAssembler(
		&stubDocs{docs: []models.Document{
			{DocumentID: "doc-1", Status: models.StatusEmbedding},
			{DocumentID: "doc-2", Status: models.StatusFailed},
		}},
		&stubFragments{},
		&stubHistory{},
		gen,
		20,
	)

	_, err := a.Export(context.Background(), "alice")
	require.True(t, errors.Is(err, util.ErrNoContent))
	require.Zero(t, gen.calls)
}

func TestExportAssemblesSourceAndHistory(t *testing.T) {
	gen := &stubGenerator{text: "# Product Requirements Document\n\n## Overview\nA thing."}
	a := NewAssembler(
		&stubDocs{docs: []models.Document{
			{DocumentID: "doc-1", Name: "notes.txt", Status: models.StatusProcessed},
			{DocumentID: "doc-2", Name: "draft.pdf", Status: models.StatusParsing},
		}},
		&stubFragments{byDoc: map[string][]models.Fragment{
			"doc-1": {
				{DocumentID: "doc-1", Ordinal: 0, Text: "first part "},
				{DocumentID: "doc-1", Ordinal: 1, Text: "second part"},
			},
		}},
		&stubHistory{messages: []models.Message{
			{Role: "user", Text: "make it searchable"},
		}},
		gen,
		20,
	)

	doc, err := a.Export(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.Contains(t, gen.lastReq.Prompt, "first part second part")
	require.Contains(t, gen.lastReq.Prompt, "notes.txt")
	require.NotContains(t, gen.lastReq.Prompt, "draft.pdf")
	require.Contains(t, gen.lastReq.Prompt, "USER: make it searchable")
	require.Equal(t, "gpt-4.1", gen.lastReq.Model)
	require.Equal(t, 4096, gen.lastReq.MaxTokens)
	require.InDelta(t, 0.45, gen.lastReq.Temperature, 1e-9)
	require.NotEmpty(t, doc.Blocks)
}

func TestExportSurfacesGenerationError(t *testing.T) {
	genErr := errors.New("generation request failed")
	a := NewAssembler(
		&stubDocs{docs: []models.Document{{DocumentID: "doc-1", Status: models.StatusProcessed}}},
		&stubFragments{},
		&stubHistory{},
		&stubGenerator{err: genErr},
		20,
	)
	_, err := a.Export(context.Background(), "alice")
	require.ErrorIs(t, err, genErr)
}

func TestStripFences(t *testing.T) {
	fenced := "```markdown\n# Title\nbody\n```"
	require.Equal(t, "# Title\nbody", StripFences(fenced))
	require.Equal(t, "# Title", StripFences("# Title"))
	require.Equal(t, "plain", StripFences("  plain  "))
}

func TestParseBlocksEveryNonBlankLine(t *testing.T) {
	md := "# Product Requirements Document\n\n## Overview\nWe build a thing.\nIt works.\n\n### Detail\n- bullet stays a paragraph\n#not-a-heading"
	blocks := ParseBlocks(md)
	require.Equal(t, []Block{
		{Type: BlockHeading, Level: 1, Text: "Product Requirements Document"},
		{Type: BlockHeading, Level: 2, Text: "Overview"},
		{Type: BlockParagraph, Text: "We build a thing."},
		{Type: BlockParagraph, Text: "It works."},
		{Type: BlockHeading, Level: 3, Text: "Detail"},
		{Type: BlockParagraph, Text: "- bullet stays a paragraph"},
		{Type: BlockParagraph, Text: "#not-a-heading"},
	}, blocks)
}
