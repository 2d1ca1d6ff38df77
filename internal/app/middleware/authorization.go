package middleware

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("middleware: caller not authenticated")
	ErrForbidden       = errors.New("middleware: caller role not permitted")
)

const (
	RoleGuest = "guest"
	RoleHost  = "host"
)

// Actor is the identity the boundary verified for the current request.
type Actor struct {
	ID   string
	Role string
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.ID != ""
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleAuthorizer admits messages whose RequiredRole matches the actor's role.
// Messages without a RequiredRole are open.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(interface{ RequiredRole() string })
	if !ok || restricted.RequiredRole() == "" {
		return nil
	}
	actor, ok := ActorFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if actor.Role != restricted.RequiredRole() {
		return ErrForbidden
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardCommands(a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardQueries(a.Authorize)
}
