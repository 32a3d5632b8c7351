package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/identity"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("insufficient permissions")
)

// Resolver turns an incoming request into the acting user, or fails with
// ErrUnauthenticated. Injected per server, never a process-wide singleton.
type Resolver interface {
	ResolveActor(ctx context.Context, r *http.Request) (*identity.User, error)
}

// RequireRole fails with ErrForbidden unless the actor holds one of the
// allowed roles.
func RequireRole(actor *identity.User, roles ...identity.Role) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireSelfOrAdmin fails with ErrForbidden unless the actor owns the
// resource or is an admin.
func RequireSelfOrAdmin(actor *identity.User, ownerID uuid.UUID) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if actor.Role == identity.RoleAdmin || actor.ID == ownerID {
		return nil
	}
	return ErrForbidden
}

type actorKey struct{}

// WithActor stores the resolved actor in the request context.
func WithActor(ctx context.Context, actor *identity.User) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom retrieves the resolved actor, or ErrUnauthenticated if the
// auth middleware did not run.
func ActorFrom(ctx context.Context) (*identity.User, error) {
	actor, ok := ctx.Value(actorKey{}).(*identity.User)
	if !ok || actor == nil {
		return nil, ErrUnauthenticated
	}
	return actor, nil
}
