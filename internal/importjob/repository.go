package importjob

import (
	"context"
	"errors"

	"github.com/comerzia/catalog-import-service/internal/model"
)

// ErrNotPending means the guarded pending -> processing transition found the
// job in some other state, usually because another runner picked it up first.
var ErrNotPending = errors.New("importjob: job is not pending")

type Repository interface {
	// Create records a new job in state pending and returns its id.
	Create(ctx context.Context, fileHandle, merchantID, userID string) (string, error)
	// MarkProcessing performs the compare-and-swap transition
	// pending -> processing; ErrNotPending when the job was not pending.
	MarkProcessing(ctx context.Context, jobID string) error
	// Update persists a new state plus, when result is non-nil, serialized
	// stats, message and row errors.
	Update(ctx context.Context, jobID string, state model.JobState, result *model.JobResult) error
	// Get is tenant-scoped: a job owned by another merchant is
	// indistinguishable from an absent one and returns (nil, nil).
	Get(ctx context.Context, jobID, merchantID string) (*model.ImportJob, error)
}
