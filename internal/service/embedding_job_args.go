package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	promptEmbeddingKind = "prompt_embedding"
	// EmbeddingsQueueName is the River queue used for prompt embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// PromptEmbeddingInserter inserts embedding jobs (e.g. River client). Used by EnqueueBackfill.
type PromptEmbeddingInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// PromptEmbeddingArgs is the job payload for generating and storing the embedding of one prompt.
// Uniqueness is by PromptID so a prompt has at most one outstanding job.
type PromptEmbeddingArgs struct {
	PromptID uuid.UUID `json:"prompt_id" river:"unique"`
}

// Kind returns the River job kind.
func (PromptEmbeddingArgs) Kind() string { return promptEmbeddingKind }

var _ river.JobArgs = PromptEmbeddingArgs{}

// uniqueOutstandingStates dedupes against jobs that have not finished. Completed jobs are excluded so a prompt
// whose text changed can be embedded again.
var uniqueOutstandingStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}
