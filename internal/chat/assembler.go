package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/retrieval"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

const (
	defaultHistoryLimit = 10
	chatMaxTokens       = 2048
	chatTemperature     = 0.7

	instructions = `You are a product requirements assistant. Answer using only the provided context and conversation history.
If the answer is not present in the context or history, reply exactly: "I don't have enough information in the provided documents to answer that."
Prefer bulleted lists when the answer enumerates requirements, features, or steps.`
)

// HistorySource provides the recent conversation window.
type HistorySource interface {
	ListRecent(ctx context.Context, ownerScope string, limit int) ([]models.Message, error)
}

// Retriever is the slice of the retrieval engine the assembler needs.
type Retriever interface {
	Retrieve(ctx context.Context, ownerScope, query string) (retrieval.Result, error)
}

type Answer struct {
	Text      string
	Retrieved retrieval.Result
}

// Assembler builds one generation request per question: instructions, then
// history, then retrieved context, then the query. It does not persist
// messages; that stays with the caller.
type Assembler struct {
	history      HistorySource
	retriever    Retriever
	generator    providers.Generator
	historyLimit int
}

func NewAssembler(history HistorySource, retriever Retriever, generator providers.Generator, historyLimit int) *Assembler {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Assembler{
		history:      history,
		retriever:    retriever,
		generator:    generator,
		historyLimit: historyLimit,
	}
}

func (a *Assembler) Ask(ctx context.Context, ownerScope, query string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, util.ErrEmptyQuery
	}

	messages, err := a.history.ListRecent(ctx, ownerScope, a.historyLimit)
	if err != nil {
		return Answer{}, fmt.Errorf("load history: %w", err)
	}
	retrieved, err := a.retriever.Retrieve(ctx, ownerScope, query)
	if err != nil {
		return Answer{}, err
	}

	prompt := BuildPrompt(messages, retrieved.Context, query)
	text, err := a.generator.Generate(ctx, providers.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Retrieved: retrieved}, nil
}

// BuildPrompt lays out the request sections in fixed order.
func BuildPrompt(history []models.Message, contextBlock, query string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nCONVERSATION HISTORY:\n")
	b.WriteString(FormatHistory(history))
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(query)
	return b.String()
}

// FormatHistory renders messages oldest first as "ROLE: text" lines.
func FormatHistory(history []models.Message) string {
	if len(history) == 0 {
		return "(no prior conversation)"
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}
