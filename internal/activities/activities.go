package activities

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tsawhneybuilds/exploprd/internal/config"
	"github.com/tsawhneybuilds/exploprd/internal/extract"
	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/storage"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

type Activities struct {
	cfg      config.Config
	docRepo  *storage.DocumentRepo
	fragRepo *storage.FragmentRepo
	registry *extract.Registry
	embedder providers.EmbeddingClient
	logger   *slog.Logger
}

func New(cfg config.Config, db *storage.DB, embedder providers.EmbeddingClient, logger *slog.Logger) *Activities {
	return &Activities{
		cfg:      cfg,
		docRepo:  storage.NewDocumentRepo(db),
		fragRepo: storage.NewFragmentRepo(db),
		registry: extract.NewRegistry(),
		embedder: embedder,
		logger:   logger,
	}
}

func (a *Activities) MarkStatusActivity(ctx context.Context, in MarkStatusInput) error {
	return a.docRepo.UpdateStatus(ctx, in.DocumentID, models.DocumentStatus(in.Status), in.FailReason)
}

// FetchBlobActivity copies the stored blob into a private working file so
// later steps never race a re-upload writing to the same blob location.
func (a *Activities) FetchBlobActivity(ctx context.Context, in FetchBlobInput) (FetchBlobOutput, error) {
	_ = ctx
	src, err := os.Open(in.BlobLocation)
	if err != nil {
		return FetchBlobOutput{}, fmt.Errorf("open blob: %w", err)
	}
	defer src.Close()

	workDir := filepath.Join(a.cfg.DataRoot, "work")
	if err := util.EnsureDir(workDir); err != nil {
		return FetchBlobOutput{}, err
	}
	dst, err := os.CreateTemp(workDir, "ingest-"+in.DocumentID+"-*")
	if err != nil {
		return FetchBlobOutput{}, fmt.Errorf("create work file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return FetchBlobOutput{}, fmt.Errorf("copy blob to work file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return FetchBlobOutput{}, fmt.Errorf("close work file: %w", err)
	}
	return FetchBlobOutput{WorkPath: dst.Name()}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	text, err := a.registry.Extract(in.WorkPath, in.ContentType)
	if err != nil {
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{Text: text}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	chunks := util.ChunkText(in.Text, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	return ChunkTextOutput{Chunks: chunks}, nil
}

// EmbedFragmentsActivity embeds each chunk. A chunk whose embedding call
// fails is skipped rather than failing the document.
func (a *Activities) EmbedFragmentsActivity(ctx context.Context, in EmbedFragmentsInput) (EmbedFragmentsOutput, error) {
	out := EmbedFragmentsOutput{Embedded: make([]EmbeddedFragment, 0, len(in.Chunks))}
	for i, chunk := range in.Chunks {
		vec, err := a.embedder.Embed(ctx, chunk)
		if err != nil {
			a.logger.Warn("fragment embedding failed, skipping",
				"document_id", in.DocumentID, "ordinal", i, "error", err)
			out.Skipped++
			continue
		}
		out.Embedded = append(out.Embedded, EmbeddedFragment{Ordinal: i, Vector: vec})
	}
	return out, nil
}

func (a *Activities) ReplaceFragmentsActivity(ctx context.Context, in ReplaceFragmentsInput) error {
	fragments := make([]models.Fragment, 0, len(in.Embedded))
	for _, e := range in.Embedded {
		if e.Ordinal < 0 || e.Ordinal >= len(in.Chunks) {
			return fmt.Errorf("embedded ordinal %d out of range", e.Ordinal)
		}
		fragments = append(fragments, models.Fragment{
			DocumentID: in.DocumentID,
			Ordinal:    e.Ordinal,
			Text:       in.Chunks[e.Ordinal],
			Embedding:  e.Vector,
		})
	}
	return a.fragRepo.ReplaceBatch(ctx, in.DocumentID, fragments)
}

func (a *Activities) MarkProcessedActivity(ctx context.Context, in MarkProcessedInput) error {
	return a.docRepo.MarkProcessed(ctx, in.DocumentID, in.ChunkCount)
}

func (a *Activities) RemoveWorkFileActivity(ctx context.Context, in RemoveWorkFileInput) error {
	_ = ctx
	if in.WorkPath == "" {
		return nil
	}
	if err := os.Remove(in.WorkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove work file: %w", err)
	}
	return nil
}
