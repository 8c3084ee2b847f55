package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. Every entity is soft-deleted: DeletedAt is
// the tombstone that excludes a record from default queries while keeping it
// readable for audit history.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// BeforeCreate assigns the primary key when the caller did not supply one.
// IDs are generated application-side so the same models work on PostgreSQL
// and on the SQLite databases the tests run against.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// EntityKind names an entity type for audit records and key-level locking
type EntityKind string

const (
	KindUser         EntityKind = "user"
	KindOrganization EntityKind = "organization"
	KindContact      EntityKind = "contact"
	KindPipeline     EntityKind = "pipeline"
	KindStage        EntityKind = "stage"
	KindDeal         EntityKind = "deal"
	KindActivity     EntityKind = "activity"
	KindNote         EntityKind = "note"
)

// IsValid checks if the EntityKind is a valid enum value
func (k EntityKind) IsValid() bool {
	switch k {
	case KindUser, KindOrganization, KindContact, KindPipeline, KindStage, KindDeal, KindActivity, KindNote:
		return true
	}
	return false
}

// UserRole represents the role of a user
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleAgent   UserRole = "agent"
	UserRoleManager UserRole = "manager"
)

// IsValid checks if the UserRole is a valid enum value
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleAgent, UserRoleManager:
		return true
	}
	return false
}

// User represents a CRM user (deal assignee, contact creator)
type User struct {
	BaseModel
	Name  string   `gorm:"type:varchar(200);not null"`
	// The unique index is partial so a soft-deleted user's email can be
	// taken by a new account.
	Email string   `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email,where:deleted_at IS NULL"`
	Role  UserRole `gorm:"type:varchar(50);not null;default:'agent';index"`
}

// Organization represents a company a contact belongs to
type Organization struct {
	BaseModel
	Name     string `gorm:"type:varchar(200);not null;index"`
	Industry string `gorm:"type:varchar(100)"`
	Website  string `gorm:"type:varchar(500)"`
	Address  string `gorm:"type:varchar(500)"`
}

// Contact represents an individual person. A contact may be unaffiliated,
// so OrganizationID is nullable.
type Contact struct {
	BaseModel
	Name           string        `gorm:"type:varchar(200);not null;index"`
	Email          string        `gorm:"type:varchar(255);index"`
	Phone          string        `gorm:"type:varchar(50)"`
	OrganizationID *uuid.UUID    `gorm:"type:uuid;index;column:organization_id"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID"`
	CreatedByID    uuid.UUID     `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedBy      *User         `gorm:"foreignKey:CreatedByID"`
}

// Pipeline represents one named sales process owning an ordered set of stages.
// At most one pipeline is the default at any time; setting a new default
// atomically clears the previous one.
type Pipeline struct {
	BaseModel
	Name        string    `gorm:"type:varchar(200);not null"`
	CreatedByID uuid.UUID `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedByID"`
	IsDefault   bool      `gorm:"not null;default:false;column:is_default;index"`
	Stages      []Stage   `gorm:"foreignKey:PipelineID"`
}

// Stage represents one ordered step within a pipeline. PipelineID is
// immutable after creation; Position is unique within the pipeline.
type Stage struct {
	BaseModel
	PipelineID     uuid.UUID `gorm:"type:uuid;not null;index;column:pipeline_id"`
	Pipeline       *Pipeline `gorm:"foreignKey:PipelineID"`
	Name           string    `gorm:"type:varchar(200);not null"`
	Position       int       `gorm:"not null"`
	WinProbability float64   `gorm:"type:decimal(4,3);not null;default:0;column:win_probability"`
}

// DealStatus represents the lifecycle status of a deal
type DealStatus string

const (
	DealStatusOpen DealStatus = "open"
	DealStatusWon  DealStatus = "won"
	DealStatusLost DealStatus = "lost"
)

// IsValid checks if the DealStatus is a valid enum value
func (s DealStatus) IsValid() bool {
	switch s {
	case DealStatusOpen, DealStatusWon, DealStatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s DealStatus) IsTerminal() bool {
	return s == DealStatusWon || s == DealStatusLost
}

// Deal represents a sales opportunity. StageID always belongs to PipelineID;
// once the status is won or lost the stage is frozen at its closing value.
type Deal struct {
	BaseModel
	Title             string     `gorm:"type:varchar(200);not null"`
	ContactID         uuid.UUID  `gorm:"type:uuid;not null;index;column:contact_id"`
	Contact           *Contact   `gorm:"foreignKey:ContactID"`
	Value             float64    `gorm:"type:decimal(15,2);not null;default:0"`
	Status            DealStatus `gorm:"type:varchar(50);not null;default:'open';index"`
	ExpectedCloseDate *time.Time `gorm:"type:date;column:expected_close_date"`
	PipelineID        uuid.UUID  `gorm:"type:uuid;not null;index;column:pipeline_id"`
	Pipeline          *Pipeline  `gorm:"foreignKey:PipelineID"`
	StageID           uuid.UUID  `gorm:"type:uuid;not null;index;column:stage_id"`
	Stage             *Stage     `gorm:"foreignKey:StageID"`
	AssignedToID      uuid.UUID  `gorm:"type:uuid;not null;index;column:assigned_to_id"`
	AssignedTo        *User      `gorm:"foreignKey:AssignedToID"`
	ClosedAt          *time.Time `gorm:"column:closed_at"`
}

// DealStageHistory tracks every stage movement of a deal, including backward
// moves, which are permitted but flagged.
type DealStageHistory struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key"`
	DealID      uuid.UUID  `gorm:"type:uuid;not null;index;column:deal_id"`
	Deal        *Deal      `gorm:"foreignKey:DealID"`
	FromStageID *uuid.UUID `gorm:"type:uuid;column:from_stage_id"`
	ToStageID   uuid.UUID  `gorm:"type:uuid;not null;column:to_stage_id"`
	Backward    bool       `gorm:"not null;default:false"`
	ChangedByID uuid.UUID  `gorm:"type:uuid;not null;column:changed_by_id"`
	Notes       string     `gorm:"type:text"`
	ChangedAt   time.Time  `gorm:"not null;column:changed_at;index"`
}

// TableName overrides the default table name to match the migration
func (DealStageHistory) TableName() string {
	return "deal_stage_history"
}

// BeforeCreate assigns the primary key when the caller did not supply one
func (h *DealStageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// ActivityType represents the type of activity
type ActivityType string

const (
	ActivityTypeCall    ActivityType = "call"
	ActivityTypeEmail   ActivityType = "email"
	ActivityTypeTask    ActivityType = "task"
	ActivityTypeMeeting ActivityType = "meeting"
)

// IsValid checks if the ActivityType is a valid enum value
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeCall, ActivityTypeEmail, ActivityTypeTask, ActivityTypeMeeting:
		return true
	}
	return false
}

// Activity represents a scheduled interaction attached to a deal.
// CompletedAt, when set, is never before ScheduledAt.
type Activity struct {
	BaseModel
	DealID      uuid.UUID    `gorm:"type:uuid;not null;index;column:deal_id"`
	Deal        *Deal        `gorm:"foreignKey:DealID"`
	Type        ActivityType `gorm:"type:varchar(50);not null;index"`
	Subject     string       `gorm:"type:varchar(200);not null"`
	ScheduledAt time.Time    `gorm:"not null;column:scheduled_at;index"`
	CompletedAt *time.Time   `gorm:"column:completed_at"`
	Notes       string       `gorm:"type:text"`
	CreatedByID uuid.UUID    `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedBy   *User        `gorm:"foreignKey:CreatedByID"`
}

// Note represents a free-form note attached to a deal
type Note struct {
	BaseModel
	DealID      uuid.UUID `gorm:"type:uuid;not null;index;column:deal_id"`
	Deal        *Deal     `gorm:"foreignKey:DealID"`
	Content     string    `gorm:"type:text;not null"`
	CreatedByID uuid.UUID `gorm:"type:uuid;not null;column:created_by_id"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedByID"`
}

// AuditAction represents the type of audited mutation
type AuditAction string

const (
	AuditActionCreate      AuditAction = "create"
	AuditActionUpdate      AuditAction = "update"
	AuditActionSoftDelete  AuditAction = "soft_delete"
	AuditActionStageChange AuditAction = "stage_change"
	AuditActionClose       AuditAction = "close"
	AuditActionReopen      AuditAction = "reopen"
)

// AuditRecord is an append-only log entry describing one committed mutation.
// Records are never updated; the only deletion path is the retention job.
type AuditRecord struct {
	ID         uuid.UUID   `gorm:"type:uuid;primary_key"`
	ActorID    *uuid.UUID  `gorm:"type:uuid;column:actor_id;index"`
	ActorName  string      `gorm:"type:varchar(200);column:actor_name"`
	Action     AuditAction `gorm:"type:varchar(50);not null"`
	EntityKind EntityKind  `gorm:"type:varchar(50);not null;column:entity_kind;index:idx_audit_entity"`
	EntityID   uuid.UUID   `gorm:"type:uuid;not null;column:entity_id;index:idx_audit_entity"`
	Changes    string      `gorm:"type:text"`
	RecordedAt time.Time   `gorm:"not null;column:recorded_at;index"`
}

// BeforeCreate assigns the primary key when the caller did not supply one
func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeDealWon          NotificationType = "deal_won"
	NotificationTypeDealLost         NotificationType = "deal_lost"
	NotificationTypeDealStageChanged NotificationType = "deal_stage_changed"
)

// Notification represents an in-app notification for a user
type Notification struct {
	BaseModel
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index;column:user_id"`
	User       *User            `gorm:"foreignKey:UserID"`
	Type       NotificationType `gorm:"type:varchar(50);not null"`
	Title      string           `gorm:"type:varchar(200);not null"`
	Message    string           `gorm:"type:varchar(500);not null"`
	Read       bool             `gorm:"not null;default:false;index"`
	ReadAt     *time.Time       `gorm:"column:read_at"`
	EntityKind EntityKind       `gorm:"type:varchar(50);column:entity_kind"`
	EntityID   *uuid.UUID       `gorm:"type:uuid;column:entity_id"`
}
