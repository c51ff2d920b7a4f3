package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/forum-auth-api/internal/models"
	"github.com/noah-isme/forum-auth-api/pkg/jobs"
)

type auditLogStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records audit trail entries through a background queue so
// the request path never blocks on the insert.
type AuditService struct {
	store  auditLogStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService builds the service and its worker queue. Start must be
// called before Record delivers anything.
func NewAuditService(store auditLogStore, logger *zap.Logger, workers, bufferSize int) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{store: store, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: bufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged, never surfaced to
// the caller; audit loss must not fail an otherwise successful request.
func (s *AuditService) Record(log *models.AuditLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: log.Action, Payload: log}); err != nil {
		s.logger.Warn("failed to enqueue audit log", zap.Error(err), zap.String("action", log.Action))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Warn("audit job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.CreateAuditLog(ctx, log)
}
