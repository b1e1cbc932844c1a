package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/memory"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
)

func newAuth(t *testing.T, adminPassword string) (Service, *store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(memory.New(), log)
	cfg := config.AdminConfig{
		JWTSecret:      "test-secret",
		AccessTokenTTL: time.Hour,
		AdminUser:      "admin",
		AdminPassword:  adminPassword,
	}
	return New(st, log, cfg), st
}

func TestAdminLoginAndAuthorize(t *testing.T) {
	svc, _ := newAuth(t, "admin-pass")
	ctx := context.Background()
	if _, err := svc.LoginAdmin(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	session, err := svc.LoginAdmin(ctx, "admin", "admin-pass")
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	principal, err := svc.Authorize(ctx, session.Token)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !principal.IsAdmin() || !principal.Can(domain.CapBatchLookup) || !principal.CanAccessEnvironment("any") {
		t.Fatalf("admin must hold every capability: %+v", principal)
	}
}

func TestAdminPasswordMayBeHashed(t *testing.T) {
	hash, err := crypto.HashPassword("s3gredo")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc, _ := newAuth(t, string(hash))
	if _, err := svc.LoginAdmin(context.Background(), "admin", "s3gredo"); err != nil {
		t.Fatalf("expected hashed admin password to match: %v", err)
	}
}

func TestLoginTokenReflectsCurrentState(t *testing.T) {
	svc, st := newAuth(t, "admin-pass")
	ctx := context.Background()
	env, err := st.CreateEnvironment(ctx, store.NewEnvironment{Name: "QA", Port: 5005, Directory: "ambiente-5005-app", OwnerUser: "o", OwnerPassword: "p"})
	if err != nil {
		t.Fatalf("create environment: %v", err)
	}
	profile, err := st.CreateProfile(ctx, store.NewProfile{Name: "Consulta", Capabilities: domain.Capabilities{SingleLookup: true}})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := st.CreateLogin(ctx, store.NewLogin{Username: "ana", Password: "x", EnvironmentID: env.ID, ProfileID: &profile.ID}); err != nil {
		t.Fatalf("create login: %v", err)
	}

	if _, err := svc.Login(ctx, "ana", "y"); !errors.Is(err, store.ErrWrongPassword) {
		t.Fatalf("expected wrong password, got %v", err)
	}
	session, err := svc.Login(ctx, "ANA", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	principal, err := svc.Authorize(ctx, session.Token)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if principal.IsAdmin() || !principal.Can(domain.CapSingleLookup) || principal.Can(domain.CapBatchLookup) {
		t.Fatalf("unexpected capabilities %+v", principal)
	}
	if !principal.CanAccessEnvironment(env.ID) || principal.CanAccessEnvironment("other") {
		t.Fatalf("login must be confined to its environment")
	}

	grant := domain.Capabilities{SingleLookup: true, BatchLookup: true}
	if _, err := st.UpdateProfile(ctx, profile.ID, store.ProfilePatch{Capabilities: &grant}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	principal, err = svc.Authorize(ctx, session.Token)
	if err != nil || !principal.Can(domain.CapBatchLookup) {
		t.Fatalf("expected refreshed capabilities, got %+v err=%v", principal, err)
	}

	off := false
	if _, err := st.UpdateEnvironment(ctx, env.ID, store.EnvironmentPatch{Active: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Authorize(ctx, session.Token); !errors.Is(err, store.ErrEnvironmentInactive) {
		t.Fatalf("expected environment inactive, got %v", err)
	}
}

func TestAuthorizeRejectsGarbage(t *testing.T) {
	svc, _ := newAuth(t, "admin-pass")
	for _, token := range []string{"", "not-a-jwt"} {
		if _, err := svc.Authorize(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected invalid token for %q, got %v", token, err)
		}
	}
}
