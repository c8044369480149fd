package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/comerzia/catalog-import-service/internal/importjob"
	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, fileHandle, merchantID, userID string) (string, error) {
	job := &model.ImportJob{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		UserID:     userID,
		FileHandle: fileHandle,
		State:      model.StatePending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	query := `
        INSERT INTO import_jobs (
            id, merchant_id, user_id, file_handle, state, message, created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :user_id, :file_handle, :state, :message, :created_at, :updated_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, job); err != nil {
		return "", fmt.Errorf("importjob: create: %w", err)
	}
	return job.ID, nil
}

func (r *PGRepository) MarkProcessing(ctx context.Context, jobID string) error {
	query := `
        UPDATE import_jobs
        SET state = $1, updated_at = now()
        WHERE id = $2 AND state = $3
    `
	res, err := r.DB.ExecContext(ctx, query, model.StateProcessing, jobID, model.StatePending)
	if err != nil {
		return fmt.Errorf("importjob: mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("importjob: mark processing: %w", err)
	}
	if affected == 0 {
		return importjob.ErrNotPending
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, jobID string, state model.JobState, result *model.JobResult) error {
	if result == nil {
		query := `UPDATE import_jobs SET state = $1, updated_at = now() WHERE id = $2`
		_, err := r.DB.ExecContext(ctx, query, state, jobID)
		if err != nil {
			return fmt.Errorf("importjob: update: %w", err)
		}
		return nil
	}

	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("importjob: marshal stats: %w", err)
	}
	rowErrs, err := json.Marshal(result.RowErrors)
	if err != nil {
		return fmt.Errorf("importjob: marshal row errors: %w", err)
	}

	query := `
        UPDATE import_jobs
        SET state = $1, stats = $2, message = $3, row_errors = $4, updated_at = now()
        WHERE id = $5
    `
	_, err = r.DB.ExecContext(ctx, query, state, string(stats), result.Message, string(rowErrs), jobID)
	if err != nil {
		return fmt.Errorf("importjob: update: %w", err)
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, jobID, merchantID string) (*model.ImportJob, error) {
	var job model.ImportJob
	query := `SELECT * FROM import_jobs WHERE id = $1 AND merchant_id = $2 LIMIT 1`
	err := r.DB.GetContext(ctx, &job, query, jobID, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("importjob: get: %w", err)
	}
	return &job, nil
}
