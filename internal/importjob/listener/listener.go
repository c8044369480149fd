package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/comerzia/catalog-import-service/internal/importjob"
	"github.com/comerzia/catalog-import-service/internal/importjob/usecase"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer is the kafka read side the listener drains.
type Consumer interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Runner processes one import job end to end.
type Runner interface {
	Run(ctx context.Context, jobID, fileHandle, merchantID, userID string) error
}

// ImportRequestedEvent is published by the upload endpoint once the blob and
// ledger entry exist.
type ImportRequestedEvent struct {
	JobID      string    `json:"job_id"`
	FileHandle string    `json:"file_handle"`
	MerchantID string    `json:"merchant_id"`
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ImportListener consumes import-requested events and runs the jobs,
// decoupling processing from the upload request.
type ImportListener struct {
	consumer Consumer
	runner   Runner
	logger   *zap.Logger
}

func NewImportListener(consumer Consumer, runner Runner, logger *zap.Logger) *ImportListener {
	return &ImportListener{
		consumer: consumer,
		runner:   runner,
		logger:   logger,
	}
}

func (l *ImportListener) Start(ctx context.Context) {
	l.logger.Info("starting import job listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping import job listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *ImportListener) processMessage(ctx context.Context, value []byte) {
	var event ImportRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal import event", zap.Error(err))
		return
	}
	if event.JobID == "" || event.FileHandle == "" {
		l.logger.Warn("dropping malformed import event", zap.ByteString("payload", value))
		return
	}

	l.logger.Info("processing import job",
		zap.String("job_id", event.JobID),
		zap.String("merchant_id", event.MerchantID),
	)

	err := l.runner.Run(ctx, event.JobID, event.FileHandle, event.MerchantID, event.UserID)
	if err != nil {
		// duplicate deliveries surface as not-pending or already-running;
		// they are safe to drop
		if errors.Is(err, importjob.ErrNotPending) || errors.Is(err, usecase.ErrAlreadyRunning) {
			l.logger.Info("skipping already-claimed job", zap.String("job_id", event.JobID))
			return
		}
		l.logger.Error("import job failed",
			zap.String("job_id", event.JobID),
			zap.String("merchant_id", event.MerchantID),
			zap.Error(err),
		)
	}
}
