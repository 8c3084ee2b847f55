package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService manages CRM users
type UserService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	dealRepo *repository.DealRepository
	audit    *AuditService
	locks    *repository.KeyLock
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, userRepo *repository.UserRepository, dealRepo *repository.DealRepository, audit *AuditService, locks *repository.KeyLock, logger *zap.Logger) *UserService {
	return &UserService{
		db:       db,
		userRepo: userRepo,
		dealRepo: dealRepo,
		audit:    audit,
		locks:    locks,
		logger:   logger,
	}
}

func userSnapshot(u *domain.User) map[string]interface{} {
	return map[string]interface{}{
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	}
}

// Create creates a user. Emails are unique among live users; a soft-deleted
// user's email may be reused.
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	role := domain.UserRole(req.Role)
	if req.Role == "" {
		role = domain.UserRoleAgent
	}
	if !role.IsValid() {
		return nil, ErrInvalidInput
	}

	user := &domain.User{
		Name:  req.Name,
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Role:  role,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)

		if _, err := userRepo.GetByEmail(ctx, user.Email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionCreate, domain.KindUser, user.ID, nil, userSnapshot(user))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))

	return user, nil
}

// GetByID fetches a user
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns users matching the filters
func (s *UserService) List(ctx context.Context, page, pageSize int, filters *repository.UserFilters) ([]domain.User, int64, error) {
	return s.userRepo.List(ctx, page, pageSize, filters)
}

// ListDeals returns the deals assigned to a user
func (s *UserService) ListDeals(ctx context.Context, id uuid.UUID) ([]domain.Deal, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.dealRepo.ListByAssignee(ctx, id)
}

// Update patches a user
func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.User, error) {
	s.locks.Lock(domain.KindUser, id)
	defer s.locks.Unlock(domain.KindUser, id)

	var user *domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)

		var err error
		user, err = userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		before := userSnapshot(user)

		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if email != user.Email {
				if existing, err := userRepo.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
					return ErrDuplicateEmail
				} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				user.Email = email
			}
		}
		if req.Role != nil {
			role := domain.UserRole(*req.Role)
			if !role.IsValid() {
				return ErrInvalidInput
			}
			user.Role = role
		}

		if err := userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionUpdate, domain.KindUser, user.ID, before, userSnapshot(user))
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// SoftDelete tombstones a user. Deals assigned to the user keep their
// reference; later updates to those deals fail integrity checks until they
// are reassigned.
func (s *UserService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(domain.KindUser, id)
	defer s.locks.Unlock(domain.KindUser, id)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)

		user, err := userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := userRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		return s.audit.Record(ctx, tx, domain.AuditActionSoftDelete, domain.KindUser, id, userSnapshot(user), nil)
	})
}
