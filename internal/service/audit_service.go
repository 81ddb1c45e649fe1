package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/jobs"
)

const auditJobType = "audit.write"

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// AuditRecorder accepts audit entries without blocking the request path.
type AuditRecorder interface {
	Record(entry models.AuditEntry)
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// AuditService writes audit entries through an in-memory job queue.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service and its queue; call Start before Record.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	return s
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record queues an entry. A full or stopped queue drops it with a warning.
func (s *AuditService) Record(entry models.AuditEntry) {
	job := jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: entry}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordAuditDropped()
		s.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err),
		)
	}
}

// Recent returns the latest audit entries for the dashboard.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditEntry)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	log, err := toAuditLog(job.ID, entry)
	if err != nil {
		s.logger.Error("encode audit details", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	return s.repo.Create(ctx, log)
}

func toAuditLog(id string, entry models.AuditEntry) (*models.AuditLog, error) {
	log := &models.AuditLog{
		ID:        id,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if entry.ResourceID != "" {
		rid := entry.ResourceID
		log.ResourceID = &rid
	}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		details := string(raw)
		log.Details = &details
	}
	return log, nil
}

type discardAudit struct{}

func (discardAudit) Record(models.AuditEntry) {}
