package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/lifecycle"
	"gigline/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID                 string
	Title              string
	Description        string
	Price              decimal.Decimal
	CompletionDeadline string
}

// CreateTask registers a task owned by the caller. Executors and blocked
// parties may not place work orders.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	var t domain.Task
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		customer, err := e.caller(ctx, tx)
		if err != nil {
			return err
		}
		if customer.Role == domain.RoleExecutor || customer.Blocked() {
			return domain.Errorf(domain.ErrUnavailableRoleOperation, "%s %s party cannot create tasks", customer.Status, customer.Role)
		}
		now := e.stamp()
		t = domain.Task{
			ID:                 newID(opts.ID),
			CustomerID:         customer.ID,
			Title:              strings.TrimSpace(opts.Title),
			Description:        opts.Description,
			Price:              opts.Price,
			Status:             domain.TaskRegistered,
			CompletionDeadline: domain.StringPtr(strings.TrimSpace(opts.CompletionDeadline)),
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := e.validateTask(t); err != nil {
			return err
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return uniqueAs(err, domain.ErrInvalidInput, "task %s already exists", t.ID)
		}
		return e.events().Append(ctx, tx, "task.created", "task", t.ID, customer.ID, events.EventPayload{
			"title":  t.Title,
			"price":  t.Price.String(),
			"status": t.Status,
		})
	})
	return t, err
}

// TaskUpdateOptions encapsulates allowed updates. Nil fields are left untouched.
type TaskUpdateOptions struct {
	ID                 string
	Status             *domain.TaskStatus
	Decision           *string
	Title              *string
	Description        *string
	Price              *decimal.Decimal
	CompletionDeadline *string
	// ExpectedVersion, when set, rejects the update if the task changed since it was read.
	ExpectedVersion int64
}

func (o TaskUpdateOptions) change() lifecycle.TaskChange {
	return lifecycle.TaskChange{
		Status:             o.Status,
		Decision:           o.Decision,
		Title:              o.Title,
		Description:        o.Description,
		Price:              o.Price,
		CompletionDeadline: o.CompletionDeadline,
	}
}

// UpdateTask applies a customer edit or review, or an executor submission.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	var t domain.Task
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		caller, err := e.activeCaller(ctx, tx)
		if err != nil {
			return err
		}
		t, err = e.Repo.GetTaskTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if err := checkVersion("task", t.ID, opts.ExpectedVersion, t.Version); err != nil {
			return err
		}
		if t.Status.Terminal() {
			return domain.Errorf(domain.ErrInvalidTaskStatus, "task %s is %s", t.ID, t.Status)
		}
		actor := lifecycle.ActorFor(t, caller)
		if actor == lifecycle.ActorNone {
			return domain.Errorf(domain.ErrUnavailableRoleOperation, "party %s takes no part in task %s", caller.ID, t.ID)
		}
		target := t.Status
		if opts.Status != nil {
			target = *opts.Status
		}
		if err := checkExecutorPresence(t, target); err != nil {
			return err
		}
		from := t.Status
		if err := lifecycle.ApplyTaskChange(&t, actor, opts.change(), e.stamp()); err != nil {
			return err
		}
		if err := e.validateTask(t); err != nil {
			return err
		}
		if err := e.Repo.UpdateTaskTx(ctx, tx, &t); err != nil {
			return err
		}
		payload := events.EventPayload{"from": from, "to": t.Status}
		if opts.Decision != nil {
			payload["decision"] = t.Decision
		}
		return e.events().Append(ctx, tx, "task.updated", "task", t.ID, caller.ID, payload)
	})
	return t, err
}

// checkExecutorPresence rejects targets that contradict whether t has an executor.
// Cancelling an assigned task goes through contract termination instead.
func checkExecutorPresence(t domain.Task, target domain.TaskStatus) error {
	if target == domain.TaskCanceled && t.HasExecutor() {
		return domain.Errorf(domain.ErrUnavailableRoleOperation, "task %s has an executor; terminate its contract instead", t.ID)
	}
	if lifecycle.RequiresExecutor(target) && !t.HasExecutor() {
		return domain.Errorf(domain.ErrUnavailableRoleOperation, "task %s has no executor for %s", t.ID, target)
	}
	return nil
}

// DeleteTask removes a terminal task and, before it, its terminal contract.
func (e Engine) DeleteTask(ctx context.Context, taskID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		caller, err := e.activeCaller(ctx, tx)
		if err != nil {
			return err
		}
		t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if caller.ID != t.CustomerID && caller.Role != domain.RoleAdmin {
			return domain.Errorf(domain.ErrUnavailableRoleOperation, "only the customer may delete task %s", t.ID)
		}
		if !t.Status.Terminal() {
			return domain.Errorf(domain.ErrInvalidTaskStatus, "task %s is %s", t.ID, t.Status)
		}
		c, err := e.Repo.GetContractByTaskTx(ctx, tx, t.ID)
		switch {
		case err == nil:
			if err := lifecycle.CheckContractDeletable(c); err != nil {
				return err
			}
			if err := e.Repo.DeleteContractTx(ctx, tx, c.ID); err != nil {
				return err
			}
			if err := e.events().Append(ctx, tx, "contract.deleted", "contract", c.ID, caller.ID, events.EventPayload{"task_id": t.ID, "status": c.Status}); err != nil {
				return err
			}
		case !isNotFound(err):
			return err
		}
		if err := e.Repo.DeleteTaskTx(ctx, tx, t.ID); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "task.deleted", "task", t.ID, caller.ID, events.EventPayload{"status": t.Status})
	})
}

func (e Engine) validateTask(t domain.Task) error {
	if err := lifecycle.ValidateTaskFields(t); err != nil {
		return err
	}
	if floor, err := e.Config.MinTaskPrice(); err == nil && floor.IsPositive() && t.Price.LessThan(floor) {
		return domain.Errorf(domain.ErrInvalidInput, "price %s is below the minimum %s", t.Price.String(), floor.String())
	}
	if t.CompletionDeadline != nil {
		if _, err := time.Parse(time.RFC3339, *t.CompletionDeadline); err != nil {
			return domain.Errorf(domain.ErrInvalidInput, "completion deadline %q is not RFC 3339", *t.CompletionDeadline)
		}
	}
	return nil
}

// TaskTransitions lists the statuses the caller may request for a task.
func (e Engine) TaskTransitions(ctx context.Context, taskID string) ([]domain.TaskStatus, error) {
	c, err := e.Auth.CurrentParty(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrUnauthenticated, "", err)
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var out []domain.TaskStatus
	for _, to := range lifecycle.AllowedTaskTargets(lifecycle.ActorFor(t, domain.Party{ID: c.PartyID}), t.Status) {
		if checkExecutorPresence(t, to) == nil {
			out = append(out, to)
		}
	}
	return out, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, f)
}
