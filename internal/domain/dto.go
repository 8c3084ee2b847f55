package domain

import (
	"time"

	"github.com/google/uuid"
)

// ---- Pagination ----

// PaginatedResponse wraps list results with paging metadata
type PaginatedResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ---- User DTOs ----

// CreateUserRequest is the payload for creating a user
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role" validate:"omitempty,oneof=admin agent manager"`
}

// UpdateUserRequest is the payload for updating a user. Nil fields are
// left unchanged.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=200"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Role  *string `json:"role" validate:"omitempty,oneof=admin agent manager"`
}

// UserResponse is the API representation of a user
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ---- Organization DTOs ----

// CreateOrganizationRequest is the payload for creating an organization
type CreateOrganizationRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Industry string `json:"industry" validate:"omitempty,max=100"`
	Website  string `json:"website" validate:"omitempty,max=500"`
	Address  string `json:"address" validate:"omitempty,max=500"`
}

// UpdateOrganizationRequest is the payload for updating an organization
type UpdateOrganizationRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Industry *string `json:"industry" validate:"omitempty,max=100"`
	Website  *string `json:"website" validate:"omitempty,max=500"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
}

// OrganizationResponse is the API representation of an organization
type OrganizationResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	Website   string    `json:"website,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ---- Contact DTOs ----

// CreateContactRequest is the payload for creating a contact
type CreateContactRequest struct {
	Name           string     `json:"name" validate:"required,max=200"`
	Email          string     `json:"email" validate:"omitempty,email,max=255"`
	Phone          string     `json:"phone" validate:"omitempty,max=50"`
	OrganizationID *uuid.UUID `json:"organization_id" validate:"omitempty"`
	CreatedByID    uuid.UUID  `json:"created_by_id" validate:"required"`
}

// UpdateContactRequest is the payload for updating a contact.
// ClearOrganization detaches the contact from its organization; it wins
// over OrganizationID when both are set.
type UpdateContactRequest struct {
	Name              *string    `json:"name" validate:"omitempty,max=200"`
	Email             *string    `json:"email" validate:"omitempty,email,max=255"`
	Phone             *string    `json:"phone" validate:"omitempty,max=50"`
	OrganizationID    *uuid.UUID `json:"organization_id" validate:"omitempty"`
	ClearOrganization bool       `json:"clear_organization"`
}

// ContactResponse is the API representation of a contact
type ContactResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Email        string                `json:"email,omitempty"`
	Phone        string                `json:"phone,omitempty"`
	Organization *OrganizationResponse `json:"organization,omitempty"`
	CreatedBy    *UserResponse         `json:"created_by,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// ---- Pipeline and Stage DTOs ----

// StageInput describes one stage in a pipeline create request
type StageInput struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Position       int     `json:"position" validate:"gte=0"`
	WinProbability float64 `json:"win_probability" validate:"gte=0,lte=1"`
}

// CreatePipelineRequest is the payload for creating a pipeline with its stages
type CreatePipelineRequest struct {
	Name        string       `json:"name" validate:"required,max=200"`
	CreatedByID uuid.UUID    `json:"created_by_id" validate:"required"`
	IsDefault   bool         `json:"is_default"`
	Stages      []StageInput `json:"stages" validate:"required,min=1,dive"`
}

// UpdatePipelineRequest is the payload for renaming a pipeline or changing
// its default flag
type UpdatePipelineRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=200"`
	IsDefault *bool   `json:"is_default"`
}

// CreateStageRequest is the payload for adding a stage to a pipeline
type CreateStageRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Position       int     `json:"position" validate:"gte=0"`
	WinProbability float64 `json:"win_probability" validate:"gte=0,lte=1"`
}

// UpdateStageRequest is the payload for updating a stage. The owning
// pipeline cannot be changed.
type UpdateStageRequest struct {
	Name           *string  `json:"name" validate:"omitempty,max=200"`
	Position       *int     `json:"position" validate:"omitempty,gte=0"`
	WinProbability *float64 `json:"win_probability" validate:"omitempty,gte=0,lte=1"`
}

// StageResponse is the API representation of a stage
type StageResponse struct {
	ID             uuid.UUID `json:"id"`
	PipelineID     uuid.UUID `json:"pipeline_id"`
	Name           string    `json:"name"`
	Position       int       `json:"position"`
	WinProbability float64   `json:"win_probability"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PipelineResponse is the API representation of a pipeline with its stages
// ordered by position
type PipelineResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	IsDefault bool            `json:"is_default"`
	CreatedBy *UserResponse   `json:"created_by,omitempty"`
	Stages    []StageResponse `json:"stages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ---- Deal DTOs ----

// CreateDealRequest is the payload for creating a deal. When PipelineID is
// nil the default pipeline is used and the deal enters its first stage.
type CreateDealRequest struct {
	Title             string     `json:"title" validate:"required,max=200"`
	ContactID         uuid.UUID  `json:"contact_id" validate:"required"`
	Value             float64    `json:"value" validate:"gte=0"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
	PipelineID        *uuid.UUID `json:"pipeline_id"`
	StageID           *uuid.UUID `json:"stage_id"`
	AssignedToID      uuid.UUID  `json:"assigned_to_id" validate:"required"`
}

// UpdateDealRequest is the payload for updating an open deal's editable
// fields. Stage moves go through the dedicated stage endpoint.
type UpdateDealRequest struct {
	Title             *string    `json:"title" validate:"omitempty,max=200"`
	Value             *float64   `json:"value" validate:"omitempty,gte=0"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
	ContactID         *uuid.UUID `json:"contact_id"`
	AssignedToID      *uuid.UUID `json:"assigned_to_id"`
}

// MoveDealStageRequest is the payload for moving a deal to another stage
// of its current pipeline
type MoveDealStageRequest struct {
	StageID uuid.UUID `json:"stage_id" validate:"required"`
	Notes   string    `json:"notes" validate:"omitempty,max=2000"`
}

// MoveDealPipelineRequest is the payload for moving a deal to a different
// pipeline
type MoveDealPipelineRequest struct {
	PipelineID uuid.UUID  `json:"pipeline_id" validate:"required"`
	StageID    *uuid.UUID `json:"stage_id"`
}

// CloseDealRequest is the payload for closing a deal as won or lost
type CloseDealRequest struct {
	Status string `json:"status" validate:"required,oneof=won lost"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// DealResponse is the API representation of a deal. WeightedValue is the
// deal value scaled by the current stage's win probability.
type DealResponse struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	Contact           *ContactResponse `json:"contact,omitempty"`
	ContactID         uuid.UUID        `json:"contact_id"`
	Value             float64          `json:"value"`
	WeightedValue     float64          `json:"weighted_value"`
	Status            string           `json:"status"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date,omitempty"`
	PipelineID        uuid.UUID        `json:"pipeline_id"`
	Stage             *StageResponse   `json:"stage,omitempty"`
	StageID           uuid.UUID        `json:"stage_id"`
	AssignedTo        *UserResponse    `json:"assigned_to,omitempty"`
	AssignedToID      uuid.UUID        `json:"assigned_to_id"`
	ClosedAt          *time.Time       `json:"closed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// DealStageHistoryResponse is one entry of a deal's stage movement history
type DealStageHistoryResponse struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"deal_id"`
	FromStageID *uuid.UUID `json:"from_stage_id,omitempty"`
	ToStageID   uuid.UUID  `json:"to_stage_id"`
	Backward    bool       `json:"backward"`
	ChangedByID uuid.UUID  `json:"changed_by_id"`
	Notes       string     `json:"notes,omitempty"`
	ChangedAt   time.Time  `json:"changed_at"`
}

// PipelineBoardColumn is one stage column of the pipeline board view
type PipelineBoardColumn struct {
	Stage         StageResponse  `json:"stage"`
	Deals         []DealResponse `json:"deals"`
	TotalValue    float64        `json:"total_value"`
	WeightedValue float64        `json:"weighted_value"`
}

// PipelineBoardResponse groups a pipeline's open deals by stage
type PipelineBoardResponse struct {
	Pipeline PipelineResponse      `json:"pipeline"`
	Columns  []PipelineBoardColumn `json:"columns"`
}

// ---- Activity DTOs ----

// CreateActivityRequest is the payload for creating an activity on a deal
type CreateActivityRequest struct {
	DealID      uuid.UUID `json:"deal_id" validate:"required"`
	Type        string    `json:"type" validate:"required,oneof=call email task meeting"`
	Subject     string    `json:"subject" validate:"required,max=200"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Notes       string    `json:"notes" validate:"omitempty,max=5000"`
	CreatedByID uuid.UUID `json:"created_by_id" validate:"required"`
}

// UpdateActivityRequest is the payload for updating an activity
type UpdateActivityRequest struct {
	Type        *string    `json:"type" validate:"omitempty,oneof=call email task meeting"`
	Subject     *string    `json:"subject" validate:"omitempty,max=200"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
}

// ActivityResponse is the API representation of an activity
type ActivityResponse struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"deal_id"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedBy   *UserResponse `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ---- Note DTOs ----

// CreateNoteRequest is the payload for creating a note on a deal
type CreateNoteRequest struct {
	DealID      uuid.UUID `json:"deal_id" validate:"required"`
	Content     string    `json:"content" validate:"required,max=10000"`
	CreatedByID uuid.UUID `json:"created_by_id" validate:"required"`
}

// UpdateNoteRequest is the payload for editing a note's content
type UpdateNoteRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

// NoteResponse is the API representation of a note
type NoteResponse struct {
	ID        uuid.UUID     `json:"id"`
	DealID    uuid.UUID     `json:"deal_id"`
	Content   string        `json:"content"`
	CreatedBy *UserResponse `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ---- Audit DTOs ----

// AuditRecordResponse is the API representation of one audit record
type AuditRecordResponse struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	ActorName  string     `json:"actor_name,omitempty"`
	Action     string     `json:"action"`
	EntityKind string     `json:"entity_kind"`
	EntityID   uuid.UUID  `json:"entity_id"`
	Changes    string     `json:"changes,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// ---- Notification DTOs ----

// NotificationResponse is the API representation of a notification
type NotificationResponse struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	EntityKind string     `json:"entity_kind,omitempty"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ---- Health DTOs ----

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}
