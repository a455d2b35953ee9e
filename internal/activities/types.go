package activities

type MarkStatusInput struct {
	DocumentID string
	Status     string
	FailReason string
}

type FetchBlobInput struct {
	DocumentID   string
	BlobLocation string
}

type FetchBlobOutput struct {
	WorkPath string
}

type ExtractTextInput struct {
	WorkPath    string
	ContentType string
}

type ExtractTextOutput struct {
	Text string
}

type ChunkTextInput struct {
	Text string
}

type ChunkTextOutput struct {
	Chunks []string
}

type EmbedFragmentsInput struct {
	DocumentID string
	Chunks     []string
}

// EmbeddedFragment pairs a surviving chunk with its vector. Ordinal refers
// back to the chunk's position in the original chunk list.
type EmbeddedFragment struct {
	Ordinal int
	Vector  []float32
}

type EmbedFragmentsOutput struct {
	Embedded []EmbeddedFragment
	Skipped  int
}

type ReplaceFragmentsInput struct {
	DocumentID string
	Chunks     []string
	Embedded   []EmbeddedFragment
}

type MarkProcessedInput struct {
	DocumentID string
	ChunkCount int
}

type RemoveWorkFileInput struct {
	WorkPath string
}
