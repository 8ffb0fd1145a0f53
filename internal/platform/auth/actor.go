package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleStaff   Role = "STAFF"
)

// ParseRole picks STAFF when any of the token roles names it and falls back
// to PATIENT otherwise.
func ParseRole(roles []string) Role {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), string(RoleStaff)) {
			return RoleStaff
		}
	}
	return RolePatient
}

// Identity is what the bearer token says about the caller.
type Identity struct {
	Subject string
	Name    string
	Email   string
	Role    Role
}

// Actor is the provisioned user performing a request. Handlers read it once
// and pass it into every mutating service call.
type Actor struct {
	UserID  uuid.UUID
	Subject string
	Name    string
	Role    Role
}

func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

const (
	identityKey contextKey = "identity"
	actorKey    contextKey = "actor"
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the actor attached by the provisioning middleware,
// or a 401 when the request carries none.
func ActorFromContext(c echo.Context) (Actor, error) {
	a, ok := c.Request().Context().Value(actorKey).(Actor)
	if !ok || a.UserID == uuid.Nil {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user")
	}
	return a, nil
}

// UserProvisioner maps a token identity onto a stored user.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, id Identity) (Actor, error)
}

// ProvisionMiddleware resolves the token identity to an Actor on every
// authenticated request. Requests without an identity pass through untouched.
func ProvisionMiddleware(p UserProvisioner) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id, ok := IdentityFromContext(ctx)
			if !ok {
				return next(c)
			}
			actor, err := p.EnsureUser(ctx, id)
			if err != nil {
				he := echo.NewHTTPError(http.StatusBadGateway, "could not resolve user")
				he.Internal = err
				return he
			}
			c.SetRequest(c.Request().WithContext(WithActor(ctx, actor)))
			c.Set("user_id", actor.UserID.String())
			return next(c)
		}
	}
}
