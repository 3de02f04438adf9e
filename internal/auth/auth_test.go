package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigline/internal/domain"
)

func TestSignAndParseToken(t *testing.T) {
	now := time.Now()
	tok, err := SignToken("secret", "gigline", Caller{PartyID: "c1", Role: domain.RoleCustomer}, time.Hour, now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := ParseToken(tok, "secret", "gigline")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.PartyID != "c1" || c.Role != domain.RoleCustomer || c.Source != "jwt" {
		t.Fatalf("unexpected caller %+v", c)
	}
	if _, err := ParseToken(tok, "other", ""); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseTokenIssuer(t *testing.T) {
	tok, err := SignToken("secret", "elsewhere", Caller{PartyID: "c1"}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(tok, "secret", "gigline"); err == nil {
		t.Fatalf("expected foreign issuer to be rejected")
	}
	if c, err := ParseToken(tok, "secret", ""); err != nil || c.PartyID != "c1" {
		t.Fatalf("no issuer configured should accept: %+v %v", c, err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	tok, err := SignToken("secret", "", Caller{PartyID: "c1"}, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(tok, "secret", ""); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestSignTokenRequiresSecret(t *testing.T) {
	if _, err := SignToken("", "", Caller{PartyID: "c1"}, 0, time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAuthenticators(t *testing.T) {
	ctx := context.Background()
	if _, err := (ContextAuthenticator{}).CurrentParty(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	ctx2 := WithCaller(ctx, Caller{PartyID: "e1"})
	c, err := (ContextAuthenticator{}).CurrentParty(ctx2)
	if err != nil || c.PartyID != "e1" {
		t.Fatalf("context caller: %+v %v", c, err)
	}

	s := Static{Caller: Caller{PartyID: "admin"}}
	if c, _ := s.CurrentParty(ctx); c.PartyID != "admin" {
		t.Fatalf("static caller: %+v", c)
	}
	if c, _ := s.CurrentParty(ctx2); c.PartyID != "e1" {
		t.Fatalf("context should win over static: %+v", c)
	}
	if _, err := (Static{}).CurrentParty(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty static should be unauthenticated, got %v", err)
	}
}
