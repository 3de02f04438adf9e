package lifecycle

import (
	"gigline/internal/domain"
	"gigline/internal/ledger"
)

// ContractDraft identifies a contract about to be created.
type ContractDraft struct {
	ID                     string
	ConfirmationCode       string
	RepeatConfirmationCode string
}

// CreateContract validates every precondition, then holds the task price from
// the customer, assigns the executor and returns the new PAID contract.
// A failed check leaves task, customer and executor untouched.
func CreateContract(d ContractDraft, t *domain.Task, customer, executor *domain.Party, now string) (domain.Contract, domain.WalletTransfer, error) {
	if t.Status != domain.TaskRegistered {
		return domain.Contract{}, domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidTaskStatus, "task %s is %s, expected %s", t.ID, t.Status, domain.TaskRegistered)
	}
	if customer.ID != t.CustomerID {
		return domain.Contract{}, domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidClientRole, "party %s is not the customer of task %s", customer.ID, t.ID)
	}
	if err := checkExecutor(*executor); err != nil {
		return domain.Contract{}, domain.WalletTransfer{}, err
	}
	if err := checkActive(*customer, "customer"); err != nil {
		return domain.Contract{}, domain.WalletTransfer{}, err
	}
	if d.ConfirmationCode == "" || d.ConfirmationCode != d.RepeatConfirmationCode {
		return domain.Contract{}, domain.WalletTransfer{}, domain.Errorf(domain.ErrConfirmationMismatch, "confirmation codes must be equal and non-empty")
	}
	if !ledger.CanAfford(*customer, t.Price) {
		return domain.Contract{}, domain.WalletTransfer{}, domain.Errorf(domain.ErrInsufficientFunds, "customer %s has %s, task costs %s", customer.ID, customer.Wallet.String(), t.Price.String())
	}

	hold, err := ledger.Hold(customer, t.Price, d.ID)
	if err != nil {
		return domain.Contract{}, domain.WalletTransfer{}, err
	}
	customer.UpdatedAt = now
	if err := AssignExecutor(t, customer, executor, now); err != nil {
		return domain.Contract{}, domain.WalletTransfer{}, err
	}
	c := domain.Contract{
		ID:         d.ID,
		TaskID:     t.ID,
		CustomerID: customer.ID,
		ExecutorID: executor.ID,
		Amount:     t.Price,
		Status:     domain.ContractPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return c, hold, nil
}

// Settlement holds every row touched by a contract status change.
type Settlement struct {
	Contract *domain.Contract
	Task     *domain.Task
	Customer *domain.Party
	Executor *domain.Party
}

// SettleContract moves a PAID contract to DONE (pay the executor) or
// TERMINATED (refund the customer and cancel the task).
func SettleContract(s Settlement, acting domain.Party, to domain.ContractStatus, now string) (domain.WalletTransfer, error) {
	c := s.Contract
	if c.Status != domain.ContractPaid {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidContractStatus, "contract %s is %s, only %s contracts may change", c.ID, c.Status, domain.ContractPaid)
	}
	if acting.ID != c.CustomerID {
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidClientStatus, "party %s is not the customer of contract %s", acting.ID, c.ID)
	}
	if err := checkActive(acting, "customer"); err != nil {
		return domain.WalletTransfer{}, err
	}

	var (
		wt  domain.WalletTransfer
		err error
	)
	switch to {
	case domain.ContractDone:
		if !s.Task.Status.Terminal() {
			return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidTaskStatus, "task %s is %s; finish or cancel it before settling", s.Task.ID, s.Task.Status)
		}
		wt, err = ledger.Release(s.Executor, c.Amount, c.ID)
		if err != nil {
			return domain.WalletTransfer{}, err
		}
		s.Executor.UpdatedAt = now
	case domain.ContractTerminated:
		wt, err = ledger.Refund(s.Customer, c.Amount, c.ID)
		if err != nil {
			return domain.WalletTransfer{}, err
		}
		s.Customer.UpdatedAt = now
		ForceCancel(s.Task, now)
	default:
		return domain.WalletTransfer{}, domain.Errorf(domain.ErrInvalidContractStatus, "cannot move contract %s to %s", c.ID, to)
	}
	c.Status = to
	c.UpdatedAt = now
	c.ClosedAt = &now
	return wt, nil
}

// CheckContractDeletable allows deletion of terminal contracts only.
func CheckContractDeletable(c domain.Contract) error {
	if !c.Status.Terminal() {
		return domain.Errorf(domain.ErrInvalidContractStatus, "contract %s not terminated", c.ID)
	}
	return nil
}
