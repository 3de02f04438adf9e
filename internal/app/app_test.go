package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gigline/internal/auth"
	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/notify"
)

func TestOpenSeedsAdmin(t *testing.T) {
	ws := t.TempDir()
	a, err := Open(context.Background(), Options{Workspace: ws})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p, err := a.Engine.GetParty(context.Background(), "admin")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if p.Role != domain.RoleAdmin || p.Status != domain.PartyActive {
		t.Fatalf("unexpected admin %+v", p)
	}
	a.Close()

	// A second open must not fail on the existing admin.
	b, err := Open(context.Background(), Options{Workspace: ws})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	b.Close()
}

func TestOpenUsesWorkspaceConfig(t *testing.T) {
	ws := t.TempDir()
	doc := "bootstrap:\n  admin_id: root\n  admin_name: Root\nledger:\n  initial_wallet: \"50\"\n"
	if err := os.WriteFile(filepath.Join(ws, "gigline.yml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(context.Background(), Options{Workspace: ws, Auth: auth.Static{Caller: auth.Caller{PartyID: "root"}}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	p, err := a.Engine.CreateParty(context.Background(), engineParty("c1"))
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	if p.Wallet.String() != "50" {
		t.Fatalf("initial wallet not applied: %s", p.Wallet)
	}
}

func TestNewNotifier(t *testing.T) {
	if _, ok := NewNotifier(config.Bookkeeping{Notifier: config.NotifierWebhook, URL: "http://x"}, nil).(notify.Webhook); !ok {
		t.Fatalf("expected webhook notifier")
	}
	if _, ok := NewNotifier(config.Bookkeeping{Notifier: config.NotifierLog}, nil).(notify.Log); !ok {
		t.Fatalf("expected log notifier")
	}
	if _, ok := NewNotifier(config.Bookkeeping{}, nil).(notify.Nop); !ok {
		t.Fatalf("expected nop notifier")
	}
}

func engineParty(id string) engine.PartyCreateOptions {
	return engine.PartyCreateOptions{ID: id, Name: id, Role: domain.RoleCustomer}
}
