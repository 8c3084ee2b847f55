package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditRetentionJobName is the name of the audit record retention job
const AuditRetentionJobName = "audit_retention"

// AuditCleanupService purges audit records older than the retention window.
// The interface keeps the job decoupled from the service package.
type AuditCleanupService interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error)
}

// AuditRetentionJob deletes audit records older than the configured
// retention window. This is the only path that removes audit records.
type AuditRetentionJob struct {
	auditService  AuditCleanupService
	logger        *zap.Logger
	retentionDays int
	timeout       time.Duration
}

// NewAuditRetentionJob creates a new audit retention job. A retentionDays of
// zero or less disables purging entirely.
func NewAuditRetentionJob(auditService AuditCleanupService, logger *zap.Logger, retentionDays int, timeout time.Duration) *AuditRetentionJob {
	return &AuditRetentionJob{
		auditService:  auditService,
		logger:        logger,
		retentionDays: retentionDays,
		timeout:       timeout,
	}
}

// Run executes one retention pass.
func (j *AuditRetentionJob) Run() {
	if j.retentionDays <= 0 {
		j.logger.Debug("audit retention disabled, skipping run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	deleted, err := j.auditService.CleanupOldRecords(ctx, j.retentionDays)
	if err != nil {
		j.logger.Error("audit retention run failed",
			zap.Error(err),
			zap.Int("retention_days", j.retentionDays))
		return
	}

	j.logger.Info("audit retention run completed",
		zap.Int64("deleted_records", deleted),
		zap.Int("retention_days", j.retentionDays),
		zap.Duration("duration", time.Since(start)))
}
