package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
)

// ActorContext holds the authenticated actor of a request. Mutating services
// use it to stamp audit records; a nil ActorID means the system actor
// (API key or background job).
type ActorContext struct {
	ActorID     *uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRole
	System      bool
}

type contextKey string

const actorContextKey contextKey = "actorContext"

// SystemActor is the actor used by API key requests and background jobs
func SystemActor(name string) *ActorContext {
	return &ActorContext{DisplayName: name, System: true}
}

// WithActorContext adds actor context to the context
func WithActorContext(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// FromContext extracts actor context from the context
func FromContext(ctx context.Context) (*ActorContext, bool) {
	actor, ok := ctx.Value(actorContextKey).(*ActorContext)
	return actor, ok
}

// IsAdmin checks if the actor has the admin role or is the system actor
func (a *ActorContext) IsAdmin() bool {
	return a.System || a.Role == domain.UserRoleAdmin
}
