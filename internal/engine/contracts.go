package engine

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/lifecycle"
	"gigline/internal/repo"
)

// ContractCreateOptions is an executor's acceptance of a registered task.
type ContractCreateOptions struct {
	ID                     string
	TaskID                 string
	ExecutorID             string
	ConfirmationCode       string
	RepeatConfirmationCode string
}

// CreateContract holds the task price from the customer's wallet, assigns the
// calling executor and opens a PAID contract.
func (e Engine) CreateContract(ctx context.Context, opts ContractCreateOptions) (domain.Contract, error) {
	var c domain.Contract
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		executor, err := e.caller(ctx, tx)
		if err != nil {
			return err
		}
		if executor.ID != opts.ExecutorID {
			return domain.Errorf(domain.ErrUnavailableRoleOperation, "party %s cannot accept a task on behalf of %s", executor.ID, opts.ExecutorID)
		}
		t, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
		if err != nil {
			return err
		}
		customer, err := e.Repo.GetPartyTx(ctx, tx, t.CustomerID)
		if err != nil {
			return err
		}
		now := e.stamp()
		var hold domain.WalletTransfer
		c, hold, err = lifecycle.CreateContract(lifecycle.ContractDraft{
			ID:                     newID(opts.ID),
			ConfirmationCode:       opts.ConfirmationCode,
			RepeatConfirmationCode: opts.RepeatConfirmationCode,
		}, &t, &customer, &executor, now)
		if err != nil {
			return err
		}
		c.Version = 1
		if err := e.Repo.UpdatePartyTx(ctx, tx, &customer); err != nil {
			return err
		}
		if err := e.Repo.UpdatePartyTx(ctx, tx, &executor); err != nil {
			return err
		}
		if err := e.Repo.UpdateTaskTx(ctx, tx, &t); err != nil {
			return err
		}
		if err := e.Repo.InsertContract(ctx, tx, c); err != nil {
			return uniqueAs(err, domain.ErrConcurrentModification, "task %s already has a contract", t.ID)
		}
		hold, err = e.saveTransfer(ctx, tx, hold, now)
		if err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, "contract.created", "contract", c.ID, executor.ID, events.EventPayload{
			"task_id":     t.ID,
			"customer_id": c.CustomerID,
			"executor_id": c.ExecutorID,
			"amount":      c.Amount.String(),
			"transfer_id": hold.ID,
		}); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "task.updated", "task", t.ID, executor.ID, events.EventPayload{
			"from":        domain.TaskRegistered,
			"to":          t.Status,
			"executor_id": c.ExecutorID,
		})
	})
	return c, err
}

// ContractUpdateOptions requests settlement of a PAID contract.
type ContractUpdateOptions struct {
	ID              string
	Status          domain.ContractStatus
	ExpectedVersion int64
}

// UpdateContract settles a contract on the customer's request: DONE pays the
// executor, TERMINATED refunds the customer and cancels the task. A DONE
// contract is reported to bookkeeping after commit.
func (e Engine) UpdateContract(ctx context.Context, opts ContractUpdateOptions) (domain.Contract, error) {
	var c domain.Contract
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		acting, err := e.caller(ctx, tx)
		if err != nil {
			return err
		}
		c, err = e.Repo.GetContractTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if err := checkVersion("contract", c.ID, opts.ExpectedVersion, c.Version); err != nil {
			return err
		}
		t, err := e.Repo.GetTaskTx(ctx, tx, c.TaskID)
		if err != nil {
			return err
		}
		customer, err := e.Repo.GetPartyTx(ctx, tx, c.CustomerID)
		if err != nil {
			return err
		}
		executor, err := e.Repo.GetPartyTx(ctx, tx, c.ExecutorID)
		if err != nil {
			return err
		}
		taskFrom := t.Status
		now := e.stamp()
		wt, err := lifecycle.SettleContract(lifecycle.Settlement{
			Contract: &c,
			Task:     &t,
			Customer: &customer,
			Executor: &executor,
		}, acting, opts.Status, now)
		if err != nil {
			return err
		}
		payee := &executor
		if opts.Status == domain.ContractTerminated {
			payee = &customer
		}
		if err := e.Repo.UpdatePartyTx(ctx, tx, payee); err != nil {
			return err
		}
		if t.Status != taskFrom {
			if err := e.Repo.UpdateTaskTx(ctx, tx, &t); err != nil {
				return err
			}
			if err := e.events().Append(ctx, tx, "task.updated", "task", t.ID, acting.ID, events.EventPayload{"from": taskFrom, "to": t.Status, "forced": true}); err != nil {
				return err
			}
		}
		if err := e.Repo.UpdateContractTx(ctx, tx, &c); err != nil {
			return err
		}
		wt, err = e.saveTransfer(ctx, tx, wt, now)
		if err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "contract.updated", "contract", c.ID, acting.ID, events.EventPayload{
			"from":        domain.ContractPaid,
			"to":          c.Status,
			"amount":      c.Amount.String(),
			"transfer_id": wt.ID,
		})
	})
	if err != nil {
		return c, err
	}
	if c.Status == domain.ContractDone && e.Notifier != nil {
		if nerr := e.Notifier.NotifyContractDone(ctx, c); nerr != nil {
			e.logger().Printf("engine: bookkeeping notification for contract %s failed: %v", c.ID, nerr)
		}
	}
	return c, nil
}

// DeleteContract removes a settled contract. Only its parties or an admin may do so.
func (e Engine) DeleteContract(ctx context.Context, contractID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		caller, err := e.activeCaller(ctx, tx)
		if err != nil {
			return err
		}
		c, err := e.Repo.GetContractTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if caller.ID != c.CustomerID && caller.ID != c.ExecutorID && caller.Role != domain.RoleAdmin {
			return domain.Errorf(domain.ErrUnavailableRoleOperation, "party %s takes no part in contract %s", caller.ID, c.ID)
		}
		if err := lifecycle.CheckContractDeletable(c); err != nil {
			return err
		}
		if err := e.Repo.DeleteContractTx(ctx, tx, c.ID); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "contract.deleted", "contract", c.ID, caller.ID, events.EventPayload{"task_id": c.TaskID, "status": c.Status})
	})
}

func (e Engine) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	return e.Repo.GetContract(ctx, id)
}

func (e Engine) ListContracts(ctx context.Context, f repo.ContractFilters) ([]domain.Contract, error) {
	return e.Repo.ListContracts(ctx, f)
}
