package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/orgchat/orgchat-server/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	cfg := testJWTConfig()
	users := newFakeUsers()
	svc := NewService(users, cfg)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "password123", "Alice", 10, store.RoleMember)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate registration token: %v", err)
	}
	if claims.OrganizationID != 10 || claims.Role != store.RoleMember {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	stored, err := users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.PasswordHash == "password123" {
		t.Fatal("password must not be stored in plaintext")
	}
	if !stored.IsActive {
		t.Fatal("new users must be active")
	}

	token, err = svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err != nil {
		t.Fatalf("validate login token: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newFakeUsers(), testJWTConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123", "", 10, ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "short", "", 10, ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if _, err := svc.Register(ctx, "alice", "password123", "", 10, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "password123", "", 10, ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterDefaults(t *testing.T) {
	users := newFakeUsers()
	svc := NewService(users, testJWTConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123", "", 10, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if u.DisplayName != "alice" {
		t.Fatalf("expected display name to default to username, got %q", u.DisplayName)
	}
	if u.Role != store.RoleMember {
		t.Fatalf("expected default member role, got %q", u.Role)
	}
}

func TestLoginFailures(t *testing.T) {
	users := newFakeUsers()
	svc := NewService(users, testJWTConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123", "", 10, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	u, _ := users.GetUserByUsername(ctx, "alice")
	u.IsActive = false
	if _, err := svc.Login(ctx, "alice", "password123"); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}
