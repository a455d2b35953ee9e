package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tsawhneybuilds/exploprd/internal/activities"
	"github.com/tsawhneybuilds/exploprd/internal/models"
)

const QueryGetIngestStatus = "GetIngestStatus"

// DocumentIngestWorkflow drives one document from uploaded blob to stored,
// embedded fragments. Unsupported formats and empty documents finish the
// workflow normally with the document marked failed; anything else is a
// workflow error and retried by the usual Temporal machinery.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	status := IngestStatus{
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	workPath := ""
	cleanup := func() {
		if workPath == "" {
			return
		}
		_ = workflow.ExecuteActivity(ctx, "RemoveWorkFileActivity", activities.RemoveWorkFileInput{WorkPath: workPath}).Get(ctx, nil)
	}

	failDocument := func(step, reason string) (string, error) {
		status.Status = string(models.StatusFailed)
		status.FailReason = reason
		status.Steps[step] = "failed"
		_ = workflow.ExecuteActivity(ctx, "MarkStatusActivity", activities.MarkStatusInput{
			DocumentID: input.DocumentID,
			Status:     string(models.StatusFailed),
			FailReason: reason,
		}).Get(ctx, nil)
		cleanup()
		return status.Status, nil
	}

	// abort handles unrecoverable non-sentinel step errors: the document must
	// still land in a terminal state, so mark it failed best-effort before
	// surfacing the error. Status-store failures skip the mark and return
	// directly; there is nothing left to write with.
	abort := func(step string, err error) (string, error) {
		status.Status = string(models.StatusFailed)
		status.FailReason = models.FailReasonIngestError
		status.Steps[step] = "failed"
		_ = workflow.ExecuteActivity(ctx, "MarkStatusActivity", activities.MarkStatusInput{
			DocumentID: input.DocumentID,
			Status:     string(models.StatusFailed),
			FailReason: models.FailReasonIngestError,
		}).Get(ctx, nil)
		cleanup()
		return "", err
	}

	status.CurrentStep = "download"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "MarkStatusActivity", activities.MarkStatusInput{
		DocumentID: input.DocumentID,
		Status:     string(models.StatusDownloading),
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	var fetchOut activities.FetchBlobOutput
	if err := workflow.ExecuteActivity(ctx, "FetchBlobActivity", activities.FetchBlobInput{
		DocumentID:   input.DocumentID,
		BlobLocation: input.BlobLocation,
	}).Get(ctx, &fetchOut); err != nil {
		return abort(status.CurrentStep, err)
	}
	workPath = fetchOut.WorkPath
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "parse"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "MarkStatusActivity", activities.MarkStatusInput{
		DocumentID: input.DocumentID,
		Status:     string(models.StatusParsing),
	}).Get(ctx, nil); err != nil {
		cleanup()
		return "", err
	}
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{
		WorkPath:    workPath,
		ContentType: input.ContentType,
	}).Get(ctx, &textOut); err != nil {
		if isUnsupportedFormatError(err) {
			return failDocument(status.CurrentStep, models.FailReasonUnsupportedFormat)
		}
		if isEmptyTextError(err) {
			return failDocument(status.CurrentStep, models.FailReasonEmptyText)
		}
		return abort(status.CurrentStep, err)
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "chunk"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		Text: textOut.Text,
	}).Get(ctx, &chunkOut); err != nil {
		return abort(status.CurrentStep, err)
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "MarkStatusActivity", activities.MarkStatusInput{
		DocumentID: input.DocumentID,
		Status:     string(models.StatusEmbedding),
	}).Get(ctx, nil); err != nil {
		cleanup()
		return "", err
	}
	var embedOut activities.EmbedFragmentsOutput
	if err := workflow.ExecuteActivity(ctx, "EmbedFragmentsActivity", activities.EmbedFragmentsInput{
		DocumentID: input.DocumentID,
		Chunks:     chunkOut.Chunks,
	}).Get(ctx, &embedOut); err != nil {
		return abort(status.CurrentStep, err)
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "store"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "ReplaceFragmentsActivity", activities.ReplaceFragmentsInput{
		DocumentID: input.DocumentID,
		Chunks:     chunkOut.Chunks,
		Embedded:   embedOut.Embedded,
	}).Get(ctx, nil); err != nil {
		return abort(status.CurrentStep, err)
	}
	status.Steps[status.CurrentStep] = "done"
	cleanup()

	status.CurrentStep = "finalize"
	status.Steps[status.CurrentStep] = "processing"
	status.ChunkCount = len(embedOut.Embedded)
	if err := workflow.ExecuteActivity(ctx, "MarkProcessedActivity", activities.MarkProcessedInput{
		DocumentID: input.DocumentID,
		ChunkCount: status.ChunkCount,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = string(models.StatusProcessed)
	return status.Status, nil
}

func isUnsupportedFormatError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unsupported content type")
}

func isEmptyTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}
