package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"github.com/tsawhneybuilds/exploprd/internal/events"
	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/util"
	"github.com/tsawhneybuilds/exploprd/internal/workflows"
)

// WorkflowStarter is the slice of the Temporal client the consumer needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
}

// DocumentResolver maps a blob location back to its document record.
type DocumentResolver interface {
	GetByBlobLocation(ctx context.Context, blobLocation string) (models.Document, error)
}

// Consumer reacts to upload-finalized events by starting an ingestion
// workflow for the matching document.
type Consumer struct {
	temporal   WorkflowStarter
	docs       DocumentResolver
	uploadRoot string
	taskQueue  string
	logger     *slog.Logger
}

func NewConsumer(temporal WorkflowStarter, docs DocumentResolver, uploadRoot, taskQueue string, logger *slog.Logger) *Consumer {
	return &Consumer{
		temporal:   temporal,
		docs:       docs,
		uploadRoot: uploadRoot,
		taskQueue:  taskQueue,
		logger:     logger,
	}
}

// HandleUploadFinalized is the NATS subscription callback. Events for blobs
// outside the upload root are ignored; delivery is at least once, so a
// duplicate event simply restarts the same workflow ID and supersedes the
// in-flight run.
func (c *Consumer) HandleUploadFinalized(subject string, data []byte) {
	var ev events.UploadFinalized
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("malformed upload event", "subject", subject, "error", err)
		return
	}
	if !c.withinUploadRoot(ev.BlobLocation) {
		c.logger.Debug("ignoring blob outside upload root", "blob_location", ev.BlobLocation)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := c.docs.GetByBlobLocation(ctx, ev.BlobLocation)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			c.logger.Warn("upload event for unknown blob", "blob_location", ev.BlobLocation)
			return
		}
		c.logger.Error("resolve document for upload event", "blob_location", ev.BlobLocation, "error", err)
		return
	}
	if ev.OwnerScope != "" && doc.OwnerScope != ev.OwnerScope {
		c.logger.Warn("upload event owner mismatch", "document_id", doc.DocumentID,
			"event_owner", ev.OwnerScope, "document_owner", doc.OwnerScope)
		return
	}

	contentType := ev.ContentType
	if contentType == "" {
		contentType = doc.ContentType
	}
	wfID := "ingest-" + doc.DocumentID
	_, err = c.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                    wfID,
		TaskQueue:             c.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_TERMINATE_IF_RUNNING,
	}, workflows.DocumentIngestWorkflow, workflows.DocumentIngestInput{
		DocumentID:   doc.DocumentID,
		BlobLocation: doc.BlobLocation,
		ContentType:  contentType,
	})
	if err != nil {
		c.logger.Error("start ingest workflow", "workflow_id", wfID, "error", err)
		return
	}
	c.logger.Info("ingest workflow started", "workflow_id", wfID, "document_id", doc.DocumentID)
}

func (c *Consumer) withinUploadRoot(blobLocation string) bool {
	root, err := filepath.Abs(c.uploadRoot)
	if err != nil {
		return false
	}
	loc, err := filepath.Abs(blobLocation)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, loc)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
