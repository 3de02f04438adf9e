package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"gigline/internal/domain"
)

func party(id string, wallet int64) *domain.Party {
	return &domain.Party{ID: id, Wallet: decimal.NewFromInt(wallet)}
}

func TestTransfer(t *testing.T) {
	a, b := party("a", 100), party("b", 0)
	wt, err := Transfer(a, b, decimal.NewFromInt(40), domain.ReasonReleaseToExecutor, "k1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if a.Wallet.String() != "60" || b.Wallet.String() != "40" {
		t.Fatalf("wallets %s/%s", a.Wallet, b.Wallet)
	}
	if domain.Deref(wt.FromPartyID) != "a" || domain.Deref(wt.ToPartyID) != "b" || domain.Deref(wt.ContractID) != "k1" {
		t.Fatalf("unexpected record %+v", wt)
	}

	if _, err := Transfer(a, b, decimal.NewFromInt(61), domain.ReasonReleaseToExecutor, ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if a.Wallet.String() != "60" || b.Wallet.String() != "40" {
		t.Fatalf("failed transfer changed wallets")
	}
	if _, err := Transfer(a, a, decimal.NewFromInt(1), domain.ReasonDeposit, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected self transfer rejection, got %v", err)
	}
	if _, err := Transfer(a, b, decimal.Zero, domain.ReasonDeposit, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected zero amount rejection, got %v", err)
	}
}

func TestHoldThenSettle(t *testing.T) {
	c, e := party("c", 1000), party("e", 0)
	hold, err := Hold(c, decimal.NewFromInt(300), "k1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if hold.ToPartyID != nil || hold.Reason != domain.ReasonEscrowHold || c.Wallet.String() != "700" {
		t.Fatalf("unexpected hold %+v wallet %s", hold, c.Wallet)
	}
	rel, err := Release(e, decimal.NewFromInt(300), "k1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if rel.FromPartyID != nil || e.Wallet.String() != "300" {
		t.Fatalf("unexpected release %+v wallet %s", rel, e.Wallet)
	}
	if _, err := Hold(c, decimal.NewFromInt(701), "k2"); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestDeposit(t *testing.T) {
	p := party("p", 5)
	wt, err := Deposit(p, decimal.RequireFromString("2.50"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if p.Wallet.String() != "7.5" || wt.Reason != domain.ReasonDeposit || wt.ContractID != nil {
		t.Fatalf("unexpected deposit %+v wallet %s", wt, p.Wallet)
	}
	if _, err := Deposit(p, decimal.NewFromInt(-1)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected negative deposit rejection, got %v", err)
	}
}

// For any sequence of holds, releases, refunds and transfers, no wallet goes
// negative and wallets plus escrow always add up to the starting total.
func TestPropertyWalletsStayNonNegativeAndConserved(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		parties := []*domain.Party{
			party("c", int64(rapid.IntRange(0, 1000).Draw(rt, "c"))),
			party("e", int64(rapid.IntRange(0, 1000).Draw(rt, "e"))),
		}
		total := parties[0].Wallet.Add(parties[1].Wallet)
		escrow := decimal.Zero

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.SampledFrom([]string{"hold", "release", "refund", "transfer"}).Draw(rt, "op")
			amount := decimal.NewFromInt(int64(rapid.IntRange(-5, 400).Draw(rt, "amount")))
			who := parties[rapid.IntRange(0, 1).Draw(rt, "who")]
			switch op {
			case "hold":
				if _, err := Hold(who, amount, "k"); err == nil {
					escrow = escrow.Add(amount)
				}
			case "release", "refund":
				if amount.GreaterThan(escrow) {
					continue
				}
				fn := Release
				if op == "refund" {
					fn = Refund
				}
				if _, err := fn(who, amount, "k"); err == nil {
					escrow = escrow.Sub(amount)
				}
			case "transfer":
				other := parties[0]
				if who == other {
					other = parties[1]
				}
				_, _ = Transfer(who, other, amount, domain.ReasonReleaseToExecutor, "")
			}
			for _, p := range parties {
				if p.Wallet.IsNegative() {
					rt.Fatalf("wallet of %s went negative: %s", p.ID, p.Wallet)
				}
			}
			sum := parties[0].Wallet.Add(parties[1].Wallet).Add(escrow)
			if !sum.Equal(total) {
				rt.Fatalf("funds not conserved: %s != %s", sum, total)
			}
		}
	})
}
