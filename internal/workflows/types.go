package workflows

type DocumentIngestInput struct {
	DocumentID   string
	BlobLocation string
	ContentType  string
}

// IngestStatus is exposed through the status query while ingestion runs.
type IngestStatus struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	Steps       map[string]string `json:"steps"`
}
