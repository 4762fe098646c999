package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
	"github.com/krishanraja/try-ritual-sub002/internal/testutil"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	service := services.NewAuthService(repository.NewPartnerRepository(db), "test-secret")

	partner, token, err := service.Register(ctx, "ana@test.com", "hunter2-but-long", "Ana")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token on registration")
	}
	if partner.PasswordHash == "hunter2-but-long" {
		t.Fatal("password stored in plain text")
	}

	authenticated, err := service.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}
	if authenticated.ID != partner.ID {
		t.Errorf("authenticated partner %s, want %s", authenticated.ID, partner.ID)
	}

	_, loginToken, err := service.Login(ctx, "ana@test.com", "hunter2-but-long")
	if err != nil {
		t.Fatalf("logging in: %v", err)
	}
	if loginToken == "" {
		t.Fatal("expected a token on login")
	}
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	service := services.NewAuthService(repository.NewPartnerRepository(db), "test-secret")

	if _, _, err := service.Register(ctx, "ana@test.com", "correct-password", "Ana"); err != nil {
		t.Fatalf("registering: %v", err)
	}

	if _, _, err := service.Login(ctx, "ana@test.com", "wrong-password"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := service.Login(ctx, "nobody@test.com", "whatever"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthService_RejectsTamperedToken(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	partnerRepo := repository.NewPartnerRepository(db)

	issuer := services.NewAuthService(partnerRepo, "secret-a")
	verifier := services.NewAuthService(partnerRepo, "secret-b")

	_, token, err := issuer.Register(ctx, "ana@test.com", "correct-password", "Ana")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	if _, err := verifier.Authenticate(ctx, token); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
	if _, err := issuer.Authenticate(ctx, "not-a-token"); err == nil {
		t.Fatal("garbage token was accepted")
	}
}
