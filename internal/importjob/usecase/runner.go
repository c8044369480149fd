package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comerzia/catalog-import-service/internal/blobstore"
	"github.com/comerzia/catalog-import-service/internal/importer"
	"github.com/comerzia/catalog-import-service/internal/importjob"
	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lockTTL bounds how long a crashed runner can hold a job lock.
const lockTTL = 15 * time.Minute

// ErrAlreadyRunning means another runner holds this job's lock.
var ErrAlreadyRunning = errors.New("importjob: job is already being processed")

// BatchEngine is the batch import engine contract the runner drives.
type BatchEngine interface {
	Run(ctx context.Context, data []byte, merchantID, userID string, onProgress importer.ProgressFunc) (*importer.Result, error)
}

// Locker is the distributed lock used as a fast-path guard against double
// processing; the ledger's guarded pending -> processing transition remains
// the authoritative one.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

// Runner orchestrates one import job end to end: blob fetch, batch engine,
// ledger updates, blob cleanup. One invocation processes one job
// start-to-finish with no internal parallelism.
type Runner struct {
	ledger importjob.Repository
	blobs  blobstore.Store
	engine BatchEngine
	locker Locker
	logger *zap.Logger
}

func NewRunner(ledger importjob.Repository, blobs blobstore.Store, engine BatchEngine, locker Locker, logger *zap.Logger) *Runner {
	return &Runner{
		ledger: ledger,
		blobs:  blobs,
		engine: engine,
		locker: locker,
		logger: logger,
	}
}

func (r *Runner) Run(ctx context.Context, jobID, fileHandle, merchantID, userID string) error {
	lockKey := "lock:importjob:" + jobID
	lockValue := uuid.New().String()

	acquired, err := r.locker.AcquireLock(ctx, lockKey, lockValue, lockTTL)
	if err != nil {
		// lock service outage must not strand jobs; the ledger CAS below
		// still guards the transition
		r.logger.Error("failed to acquire job lock", zap.String("job_id", jobID), zap.Error(err))
		acquired = true
	} else if !acquired {
		return ErrAlreadyRunning
	}
	if acquired {
		defer func() {
			if err := r.locker.ReleaseLock(context.Background(), lockKey, lockValue); err != nil {
				r.logger.Warn("failed to release job lock", zap.String("job_id", jobID), zap.Error(err))
			}
		}()
	}

	if err := r.ledger.MarkProcessing(ctx, jobID); err != nil {
		return err
	}

	data, err := r.blobs.Get(ctx, fileHandle)
	if err != nil {
		// the blob (if any) stays behind on this path; the TTL sweep
		// reclaims it
		r.fail(ctx, jobID, fmt.Sprintf("could not read uploaded file: %v", err))
		return err
	}
	defer func() {
		if err := r.blobs.Delete(context.Background(), fileHandle); err != nil {
			r.logger.Warn("failed to delete blob after processing",
				zap.String("job_id", jobID),
				zap.String("file_handle", fileHandle),
				zap.Error(err),
			)
		}
	}()

	onProgress := func(processed, totalValid int, stats model.ImportStats) {
		res := &model.JobResult{
			Stats:   stats,
			Message: fmt.Sprintf("processing row %d of %d", processed, totalValid),
		}
		if err := r.ledger.Update(ctx, jobID, model.StateProcessing, res); err != nil {
			r.logger.Warn("failed to persist progress", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	result, err := r.engine.Run(ctx, data, merchantID, userID, onProgress)
	if err != nil {
		r.fail(ctx, jobID, err.Error())
		return err
	}

	state := model.StateCompleted
	if !result.Success {
		state = model.StateFailed
	}
	final := &model.JobResult{
		Stats:     result.Stats,
		Message:   result.Message,
		RowErrors: result.RowErrors,
	}
	if err := r.ledger.Update(ctx, jobID, state, final); err != nil {
		return fmt.Errorf("importjob: persist final state: %w", err)
	}

	r.logger.Info("import job finished",
		zap.String("job_id", jobID),
		zap.String("merchant_id", merchantID),
		zap.String("state", string(state)),
		zap.Int("processed", result.Stats.Processed),
		zap.Int("errors", result.Stats.Errors),
	)
	return nil
}

func (r *Runner) fail(ctx context.Context, jobID, message string) {
	res := &model.JobResult{Message: message}
	if err := r.ledger.Update(ctx, jobID, model.StateFailed, res); err != nil {
		r.logger.Error("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
