package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.MarkStatusActivity)
	w.RegisterActivity(a.FetchBlobActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedFragmentsActivity)
	w.RegisterActivity(a.ReplaceFragmentsActivity)
	w.RegisterActivity(a.MarkProcessedActivity)
	w.RegisterActivity(a.RemoveWorkFileActivity)
}
