package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/store"
)

// Gate validates a connection's credential once at handshake and produces
// the immutable identity attached to the connection for its lifetime.
type Gate struct {
	users     store.UserStore
	jwtConfig *JWTConfig
}

// NewGate creates an identity gate.
func NewGate(users store.UserStore, jwtConfig *JWTConfig) *Gate {
	return &Gate{users: users, jwtConfig: jwtConfig}
}

// Authenticate verifies the bearer credential and confirms the referenced
// user still exists and is active. The second check is independent of the
// token: a deactivated user must not retain live presence even with a
// still-valid credential.
func (g *Gate) Authenticate(ctx context.Context, token string) (core.Identity, *core.Error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Identity{}, core.NewError(core.CodeAuthRequired, "credential required")
	}

	claims, err := ValidateToken(g.jwtConfig, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.Identity{}, core.NewError(core.CodeTokenExpired, "credential expired")
		}
		return core.Identity{}, core.NewError(core.CodeInvalidToken, "credential invalid")
	}

	user, err := g.users.GetActiveUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The store cannot tell a deleted user from a deactivated
			// one without a second lookup.
			if _, lookupErr := g.users.GetUserByID(ctx, claims.UserID); lookupErr == nil {
				return core.Identity{}, core.NewError(core.CodeUserInactive, "user is deactivated")
			}
			return core.Identity{}, core.NewError(core.CodeUserNotFound, "user no longer exists")
		}
		return core.Identity{}, core.NewError(core.CodeServerError, "failed to verify user")
	}

	return core.Identity{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		DisplayName:    user.DisplayName,
	}, nil
}
