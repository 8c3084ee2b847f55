// Package testutil provides shared database helpers for the test suites.
// Tests run against in-memory SQLite so they need no external services.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// Each call gets its own database, so tests never see each other's data.
func SetupTestDB(t *testing.T) *gorm.DB {
	// A named shared-cache memory database keeps the data visible across
	// the connections of gorm's pool.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&domain.User{},
		&domain.Organization{},
		&domain.Contact{},
		&domain.Pipeline{},
		&domain.Stage{},
		&domain.Deal{},
		&domain.DealStageHistory{},
		&domain.Activity{},
		&domain.Note{},
		&domain.AuditRecord{},
		&domain.Notification{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CreateTestUser inserts a user with a unique email derived from the name
func CreateTestUser(t *testing.T, db *gorm.DB, name string, role domain.UserRole) *domain.User {
	user := &domain.User{
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestOrganization inserts an organization
func CreateTestOrganization(t *testing.T, db *gorm.DB, name string) *domain.Organization {
	org := &domain.Organization{
		Name:     name,
		Industry: "Construction",
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

// CreateTestContact inserts a contact created by the given user
func CreateTestContact(t *testing.T, db *gorm.DB, name string, createdBy *domain.User) *domain.Contact {
	contact := &domain.Contact{
		Name:        name,
		Email:       fmt.Sprintf("%s@contact.example.com", uuid.New().String()[:8]),
		CreatedByID: createdBy.ID,
	}
	require.NoError(t, db.Create(contact).Error)
	return contact
}

// CreateTestPipeline inserts a pipeline with three stages at positions
// 0, 1 and 2 with win probabilities 0.1, 0.5 and 0.9. The returned
// pipeline has its Stages slice loaded in position order.
func CreateTestPipeline(t *testing.T, db *gorm.DB, name string, createdBy *domain.User, isDefault bool) *domain.Pipeline {
	pipeline := &domain.Pipeline{
		Name:        name,
		CreatedByID: createdBy.ID,
		IsDefault:   isDefault,
	}
	require.NoError(t, db.Create(pipeline).Error)

	stages := []domain.Stage{
		{PipelineID: pipeline.ID, Name: "Qualification", Position: 0, WinProbability: 0.1},
		{PipelineID: pipeline.ID, Name: "Proposal", Position: 1, WinProbability: 0.5},
		{PipelineID: pipeline.ID, Name: "Negotiation", Position: 2, WinProbability: 0.9},
	}
	for i := range stages {
		require.NoError(t, db.Create(&stages[i]).Error)
	}

	pipeline.Stages = stages
	return pipeline
}
