package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawhneybuilds/exploprd/internal/chat"
	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

const (
	defaultHistoryLimit = 20
	exportModel         = "gpt-4.1"
	exportMaxTokens     = 4096
	exportTemperature   = 0.45

	outline = `Generate a product requirements document in markdown using these exact sections in this order:

# Product Requirements Document

## Overview
What we are building and why.

## Goals
What we are trying to achieve and what success looks like.

## User Stories & Personas
Who will use this and their key journeys, in "As a [user], I want [goal] so that [benefit]" form.

## Functional Requirements
Detailed description of the features and behavior to build.

## Technical Considerations
High-level technical requirements, constraints, or architecture notes.

## Out of Scope
What we are explicitly not building.

Base the document only on the source material and conversation above. Write "to be defined" under any section the material does not support.`
)

// DocumentSource lists an owner's documents.
type DocumentSource interface {
	ListByOwner(ctx context.Context, ownerScope string) ([]models.Document, error)
}

// FragmentSource loads a document's fragments in ordinal order.
type FragmentSource interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.Fragment, error)
}

// HistorySource provides the recent conversation window.
type HistorySource interface {
	ListRecent(ctx context.Context, ownerScope string, limit int) ([]models.Message, error)
}

type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
)

type Block struct {
	Type  BlockType `json:"type"`
	Level int       `json:"level,omitempty"`
	Text  string    `json:"text"`
}

type Document struct {
	Markdown string  `json:"markdown"`
	Blocks   []Block `json:"blocks"`
}

// Assembler synthesizes one structured document from every processed
// document plus recent conversation.
type Assembler struct {
	docs         DocumentSource
	fragments    FragmentSource
	history      HistorySource
	generator    providers.Generator
	historyLimit int
}

func NewAssembler(docs DocumentSource, fragments FragmentSource, history HistorySource, generator providers.Generator, historyLimit int) *Assembler {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Assembler{
		docs:         docs,
		fragments:    fragments,
		history:      history,
		generator:    generator,
		historyLimit: historyLimit,
	}
}

// Export reconstructs each processed document's full text from its fragments
// and issues a single generation call. Zero processed documents is
// util.ErrNoContent before any generation happens. Overlapping fragment text
// is kept as is; the synthesis step tolerates the repetition.
func (a *Assembler) Export(ctx context.Context, ownerScope string) (Document, error) {
	docs, err := a.docs.ListByOwner(ctx, ownerScope)
	if err != nil {
		return Document{}, fmt.Errorf("list documents: %w", err)
	}
	processed := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if d.Status == models.StatusProcessed {
			processed = append(processed, d)
		}
	}
	if len(processed) == 0 {
		return Document{}, util.ErrNoContent
	}

	var source strings.Builder
	for _, d := range processed {
		fragments, err := a.fragments.ListByDocument(ctx, d.DocumentID)
		if err != nil {
			return Document{}, fmt.Errorf("load fragments for %s: %w", d.DocumentID, err)
		}
		source.WriteString("### Source document: " + d.Name + "\n")
		for _, f := range fragments {
			source.WriteString(f.Text)
		}
		source.WriteString("\n\n")
	}

	messages, err := a.history.ListRecent(ctx, ownerScope, a.historyLimit)
	if err != nil {
		return Document{}, fmt.Errorf("load history: %w", err)
	}

	var prompt strings.Builder
	prompt.WriteString("SOURCE MATERIAL:\n")
	prompt.WriteString(source.String())
	prompt.WriteString("\nCONVERSATION DATA:\n")
	prompt.WriteString(chat.FormatHistory(messages))
	prompt.WriteString("\n\n")
	prompt.WriteString(outline)

	text, err := a.generator.Generate(ctx, providers.GenerateRequest{
		Prompt:      prompt.String(),
		Model:       exportModel,
		MaxTokens:   exportMaxTokens,
		Temperature: exportTemperature,
	})
	if err != nil {
		return Document{}, err
	}

	markdown := StripFences(text)
	return Document{Markdown: markdown, Blocks: ParseBlocks(markdown)}, nil
}

// StripFences removes a wrapping markdown code fence the model sometimes
// adds around the whole document.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseBlocks maps every non-blank markdown line to exactly one block:
// heading-marker lines become heading blocks at their level, everything else
// becomes a paragraph.
func ParseBlocks(markdown string) []Block {
	blocks := make([]Block, 0)
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if level, text, ok := headingLine(trimmed); ok {
			blocks = append(blocks, Block{Type: BlockHeading, Level: level, Text: text})
			continue
		}
		blocks = append(blocks, Block{Type: BlockParagraph, Text: trimmed})
	}
	return blocks
}

func headingLine(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level+1:]), true
}
