package service

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/auth"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditService appends to and reads the audit trail. Writes happen inside
// the caller's transaction so a mutation and its record commit together:
// either both are visible or neither is.
type AuditService struct {
	auditRepo *repository.AuditRecordRepository
	logger    *zap.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repository.AuditRecordRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends one record describing a committed mutation. When tx is
// non-nil the record is written through that transaction.
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, action domain.AuditAction, kind domain.EntityKind, entityID uuid.UUID, oldValues, newValues interface{}) error {
	record := &domain.AuditRecord{
		Action:     action,
		EntityKind: kind,
		EntityID:   entityID,
		RecordedAt: time.Now().UTC(),
	}

	if actor, ok := auth.FromContext(ctx); ok && actor != nil {
		record.ActorID = actor.ActorID
		record.ActorName = actor.DisplayName
	}

	changes := calculateChanges(oldValues, newValues)
	if len(changes) > 0 {
		if changesJSON, err := json.Marshal(changes); err == nil {
			record.Changes = string(changesJSON)
		}
	}

	repo := s.auditRepo
	if tx != nil {
		repo = s.auditRepo.WithTx(tx)
	}

	if err := repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to append audit record",
			zap.String("action", string(action)),
			zap.String("entity_kind", string(kind)),
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
		return err
	}

	return nil
}

// Trail returns an entity's records in chronological order. Each call runs
// the query anew, so the trail can be replayed any number of times.
func (s *AuditService) Trail(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID) ([]domain.AuditRecord, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidInput
	}
	return s.auditRepo.ListByEntity(ctx, kind, entityID)
}

// List returns records matching the filter, newest first
func (s *AuditService) List(ctx context.Context, page, pageSize int, filter *repository.AuditRecordFilter) ([]domain.AuditRecord, int64, error) {
	return s.auditRepo.List(ctx, page, pageSize, filter)
}

// CleanupOldRecords removes records older than the retention window. This is
// the trail's only deletion path, invoked by the retention job.
func (s *AuditService) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	count, err := s.auditRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge old audit records",
			zap.Int("retention_days", retentionDays),
			zap.Error(err))
		return 0, err
	}

	if count > 0 {
		s.logger.Info("purged old audit records",
			zap.Int64("deleted_count", count),
			zap.Int("retention_days", retentionDays))
	}

	return count, nil
}

// calculateChanges diffs two snapshots field by field. A nil old snapshot
// records every new field; a nil new snapshot records every removed field.
func calculateChanges(oldValues, newValues interface{}) map[string]interface{} {
	changes := make(map[string]interface{})

	oldMap := toMap(oldValues)
	newMap := toMap(newValues)

	for key, newVal := range newMap {
		if oldVal, exists := oldMap[key]; exists {
			if !reflect.DeepEqual(oldVal, newVal) {
				changes[key] = map[string]interface{}{
					"old": oldVal,
					"new": newVal,
				}
			}
		} else {
			changes[key] = map[string]interface{}{
				"old": nil,
				"new": newVal,
			}
		}
	}

	for key, oldVal := range oldMap {
		if _, exists := newMap[key]; !exists {
			changes[key] = map[string]interface{}{
				"old": oldVal,
				"new": nil,
			}
		}
	}

	return changes
}

func toMap(v interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	if v == nil {
		return result
	}

	if m, ok := v.(map[string]interface{}); ok {
		return m
	}

	data, err := json.Marshal(v)
	if err != nil {
		return result
	}

	_ = json.Unmarshal(data, &result)
	return result
}
