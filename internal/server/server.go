// Package server exposes the upload and polling endpoints of the import
// pipeline. It only accepts the file and creates the job; processing is
// detached so the caller never waits on the batch.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/comerzia/catalog-import-service/internal/auth"
	"github.com/comerzia/catalog-import-service/internal/blobstore"
	"github.com/comerzia/catalog-import-service/internal/importjob"
	"github.com/comerzia/catalog-import-service/internal/importjob/listener"
	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Publisher emits import-requested events for the worker side.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Runner runs a job directly when inline mode is on.
type Runner interface {
	Run(ctx context.Context, jobID, fileHandle, merchantID, userID string) error
}

type Server struct {
	blobs     blobstore.Store
	ledger    importjob.Repository
	publisher Publisher
	runner    Runner
	inline    bool
	logger    *zap.Logger
}

func New(blobs blobstore.Store, ledger importjob.Repository, publisher Publisher, runner Runner, inline bool, logger *zap.Logger) *Server {
	return &Server{
		blobs:     blobs,
		ledger:    ledger,
		publisher: publisher,
		runner:    runner,
		inline:    inline,
		logger:    logger,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	v1.POST("/imports", s.createImport)
	v1.GET("/imports/:id", s.getImport)

	return r
}

type createImportResponse struct {
	JobID string         `json:"job_id"`
	State model.JobState `json:"state"`
}

type jobResponse struct {
	ID        string             `json:"id"`
	State     model.JobState     `json:"state"`
	Message   string             `json:"message,omitempty"`
	Stats     *model.ImportStats `json:"stats,omitempty"`
	RowErrors []model.RowError   `json:"row_errors,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (s *Server) createImport(c *gin.Context) {
	merchantID := auth.MerchantID(c)
	userID := auth.UserID(c)
	if merchantID == "" || userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing merchant or user identity"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a spreadsheet file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	stored, err := s.blobs.Put(c.Request.Context(), data, header.Filename, merchantID, userID)
	if err != nil {
		if errors.Is(err, blobstore.ErrSizeExceeded) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the maximum upload size"})
			return
		}
		s.logger.Error("failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded file"})
		return
	}

	jobID, err := s.ledger.Create(c.Request.Context(), stored.Handle, merchantID, userID)
	if err != nil {
		s.logger.Error("failed to create import job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create import job"})
		return
	}

	if err := s.dispatch(c.Request.Context(), jobID, stored.Handle, merchantID, userID); err != nil {
		s.logger.Error("failed to dispatch import job",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		// the job stays pending; the blob is reclaimed by the TTL sweep if
		// nothing ever picks it up
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not schedule import job"})
		return
	}

	c.JSON(http.StatusAccepted, createImportResponse{JobID: jobID, State: model.StatePending})
}

func (s *Server) dispatch(ctx context.Context, jobID, fileHandle, merchantID, userID string) error {
	if s.inline {
		go func() {
			if err := s.runner.Run(context.Background(), jobID, fileHandle, merchantID, userID); err != nil {
				s.logger.Error("inline import run failed", zap.String("job_id", jobID), zap.Error(err))
			}
		}()
		return nil
	}

	event := listener.ImportRequestedEvent{
		JobID:      jobID,
		FileHandle: fileHandle,
		MerchantID: merchantID,
		UserID:     userID,
		Timestamp:  time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, []byte(merchantID), payload)
}

func (s *Server) getImport(c *gin.Context) {
	merchantID := auth.MerchantID(c)
	if merchantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing merchant identity"})
		return
	}

	job, err := s.ledger.Get(c.Request.Context(), c.Param("id"), merchantID)
	if err != nil {
		s.logger.Error("failed to load import job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load import job"})
		return
	}
	if job == nil {
		// absent and foreign-tenant jobs are indistinguishable
		c.JSON(http.StatusNotFound, gin.H{"error": "import job not found"})
		return
	}

	resp := jobResponse{
		ID:        job.ID,
		State:     job.State,
		Message:   job.Message,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if len(job.Stats) > 0 {
		var stats model.ImportStats
		if err := json.Unmarshal(job.Stats, &stats); err == nil {
			resp.Stats = &stats
		}
	}
	if len(job.RowErrors) > 0 {
		var rowErrs []model.RowError
		if err := json.Unmarshal(job.RowErrors, &rowErrs); err == nil {
			resp.RowErrors = rowErrs
		}
	}

	c.JSON(http.StatusOK, resp)
}
