// Package ledger moves funds between party wallets.
//
// Functions mutate the wallets of the parties they are given and return the
// transfer record describing the movement. They never persist anything: the
// caller saves both wallets and the record in the transaction that caused the
// movement. Escrow is implicit: a hold debits the customer without crediting
// anyone, and a later release or refund credits without debiting.
package ledger

import (
	"github.com/shopspring/decimal"

	"gigline/internal/domain"
)

// Transfer moves amount from one wallet to another.
func Transfer(from, to *domain.Party, amount decimal.Decimal, reason domain.TransferReason, contractID string) (domain.WalletTransfer, error) {
	if from == nil || to == nil {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidInput, "transfer requires both parties")
	}
	if from.ID == to.ID {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidInput, "transfer to self")
	}
	if err := debit(from, amount); err != nil {
		return domain.WalletTransfer{}, err
	}
	credit(to, amount)
	return record(&from.ID, &to.ID, amount, reason, contractID), nil
}

// Hold debits the customer into the implicit escrow.
func Hold(customer *domain.Party, amount decimal.Decimal, contractID string) (domain.WalletTransfer, error) {
	if customer == nil {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidInput, "hold requires a customer")
	}
	if err := debit(customer, amount); err != nil {
		return domain.WalletTransfer{}, err
	}
	return record(&customer.ID, nil, amount, domain.ReasonEscrowHold, contractID), nil
}

// Release credits the executor with funds previously held.
func Release(executor *domain.Party, amount decimal.Decimal, contractID string) (domain.WalletTransfer, error) {
	return fromEscrow(executor, amount, domain.ReasonReleaseToExecutor, contractID)
}

// Refund credits the customer with funds previously held.
func Refund(customer *domain.Party, amount decimal.Decimal, contractID string) (domain.WalletTransfer, error) {
	return fromEscrow(customer, amount, domain.ReasonRefundToCustomer, contractID)
}

// Deposit tops up a wallet from outside the marketplace.
func Deposit(p *domain.Party, amount decimal.Decimal) (domain.WalletTransfer, error) {
	if p == nil {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidInput, "deposit requires a party")
	}
	if err := checkAmount(amount); err != nil {
		return domain.WalletTransfer{}, err
	}
	credit(p, amount)
	return record(nil, &p.ID, amount, domain.ReasonDeposit, ""), nil
}

// CanAfford reports whether p holds at least amount.
func CanAfford(p domain.Party, amount decimal.Decimal) bool {
	return p.Wallet.GreaterThanOrEqual(amount)
}

func fromEscrow(p *domain.Party, amount decimal.Decimal, reason domain.TransferReason, contractID string) (domain.WalletTransfer, error) {
	if p == nil {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidInput, "%s requires a party", reason)
	}
	if err := checkAmount(amount); err != nil {
		return domain.WalletTransfer{}, err
	}
	credit(p, amount)
	return record(nil, &p.ID, amount, reason, contractID), nil
}

func debit(p *domain.Party, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if !CanAfford(*p, amount) {
		return domain.Errorf(domain.ErrInsufficientFunds, "party %s has %s, needs %s", p.ID, p.Wallet.String(), amount.String())
	}
	p.Wallet = p.Wallet.Sub(amount)
	return nil
}

func credit(p *domain.Party, amount decimal.Decimal) {
	p.Wallet = p.Wallet.Add(amount)
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Errorf(domain.ErrInvalidInput, "amount must be positive, got %s", amount.String())
	}
	return nil
}

func record(from, to *string, amount decimal.Decimal, reason domain.TransferReason, contractID string) domain.WalletTransfer {
	wt := domain.WalletTransfer{
		Amount:     amount,
		Reason:     reason,
		ContractID: domain.StringPtr(contractID),
	}
	if from != nil {
		id := *from
		wt.FromPartyID = &id
	}
	if to != nil {
		id := *to
		wt.ToPartyID = &id
	}
	return wt
}
