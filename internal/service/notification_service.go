package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService creates and reads in-app notifications
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo *repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// NotifyDealClosed notifies a deal's assignee that the deal was won or lost.
// Written through the caller's transaction so the notification commits with
// the close.
func (s *NotificationService) NotifyDealClosed(ctx context.Context, tx *gorm.DB, deal *domain.Deal, notes string) error {
	notifType := domain.NotificationTypeDealWon
	title := "Deal won"
	if deal.Status == domain.DealStatusLost {
		notifType = domain.NotificationTypeDealLost
		title = "Deal lost"
	}

	message := fmt.Sprintf("Deal %q closed as %s", deal.Title, deal.Status)
	if notes != "" {
		message = fmt.Sprintf("%s: %s", message, notes)
	}

	dealID := deal.ID
	notification := &domain.Notification{
		UserID:     deal.AssignedToID,
		Type:       notifType,
		Title:      title,
		Message:    message,
		EntityKind: domain.KindDeal,
		EntityID:   &dealID,
	}

	repo := s.notificationRepo
	if tx != nil {
		repo = s.notificationRepo.WithTx(tx)
	}

	if err := repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first
func (s *NotificationService) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, page, pageSize)
}

// CountUnread counts a user's unread notifications
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

// MarkRead marks a notification as read
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	if _, err := s.notificationRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.notificationRepo.MarkRead(ctx, id)
}

// MarkAllRead marks every unread notification of a user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}
