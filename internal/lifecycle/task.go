package lifecycle

import (
	"strings"

	"github.com/shopspring/decimal"

	"gigline/internal/domain"
)

// Actor is the caller's relation to a task.
type Actor string

const (
	ActorNone     Actor = ""
	ActorCustomer Actor = "customer"
	ActorExecutor Actor = "executor"
)

// ActorFor resolves how caller relates to t.
func ActorFor(t domain.Task, caller domain.Party) Actor {
	switch {
	case caller.ID == t.CustomerID:
		return ActorCustomer
	case t.HasExecutor() && caller.ID == *t.ExecutorID:
		return ActorExecutor
	default:
		return ActorNone
	}
}

// TaskRule describes what an allowed transition permits besides the status change.
type TaskRule struct {
	EditFields      bool
	SetDecision     bool
	RequireDecision bool
}

type transitionKey struct {
	actor    Actor
	from, to domain.TaskStatus
}

var taskTransitions = map[transitionKey]TaskRule{
	{ActorCustomer, domain.TaskRegistered, domain.TaskRegistered}: {EditFields: true},
	{ActorCustomer, domain.TaskRegistered, domain.TaskCanceled}:   {},
	{ActorCustomer, domain.TaskOnCheck, domain.TaskDone}:          {},
	{ActorCustomer, domain.TaskOnCheck, domain.TaskOnFix}:         {},
	{ActorExecutor, domain.TaskInProgress, domain.TaskOnCheck}:    {SetDecision: true, RequireDecision: true},
	{ActorExecutor, domain.TaskOnFix, domain.TaskOnCheck}:         {SetDecision: true, RequireDecision: true},
}

// LookupTaskTransition returns the rule for (actor, from, to) or ErrUnavailableTransition.
func LookupTaskTransition(actor Actor, from, to domain.TaskStatus) (TaskRule, error) {
	if from.Terminal() {
		return TaskRule{}, domain.Errorf(domain.ErrInvalidTaskStatus, "task is %s", from)
	}
	rule, ok := taskTransitions[transitionKey{actor, from, to}]
	if !ok {
		who := string(actor)
		if who == "" {
			who = "non-participant"
		}
		return TaskRule{}, domain.Errorf(domain.ErrUnavailableTransition, "%s cannot move task %s -> %s", who, from, to)
	}
	return rule, nil
}

// AllowedTaskTargets lists the statuses actor may request from the given status.
func AllowedTaskTargets(actor Actor, from domain.TaskStatus) []domain.TaskStatus {
	var out []domain.TaskStatus
	for _, to := range []domain.TaskStatus{
		domain.TaskRegistered, domain.TaskInProgress, domain.TaskOnCheck,
		domain.TaskOnFix, domain.TaskDone, domain.TaskCanceled,
	} {
		if _, ok := taskTransitions[transitionKey{actor, from, to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// TaskChange is a requested update. Nil fields are left untouched.
type TaskChange struct {
	Status             *domain.TaskStatus
	Decision           *string
	Title              *string
	Description        *string
	Price              *decimal.Decimal
	CompletionDeadline *string
}

func (c TaskChange) editsFields() bool {
	return c.Title != nil || c.Description != nil || c.Price != nil || c.CompletionDeadline != nil
}

// ApplyTaskChange validates change against the transition table and applies it
// to t. On error t is left as it was.
func ApplyTaskChange(t *domain.Task, actor Actor, change TaskChange, now string) error {
	target := t.Status
	if change.Status != nil {
		target = *change.Status
	}
	rule, err := LookupTaskTransition(actor, t.Status, target)
	if err != nil {
		return err
	}
	if change.editsFields() && !rule.EditFields {
		return domain.Errorf(domain.ErrUnavailableTransition, "task fields are editable only by the customer while %s", domain.TaskRegistered)
	}
	if change.Decision != nil && !rule.SetDecision {
		return domain.Errorf(domain.ErrUnavailableTransition, "decision is set by the executor on submission")
	}
	if rule.RequireDecision {
		decision := t.Decision
		if change.Decision != nil {
			decision = *change.Decision
		}
		if strings.TrimSpace(decision) == "" {
			return domain.Errorf(domain.ErrInvalidInput, "decision is required to submit work")
		}
	}
	next := *t
	if change.Title != nil {
		next.Title = *change.Title
	}
	if change.Description != nil {
		next.Description = *change.Description
	}
	if change.Price != nil {
		next.Price = *change.Price
	}
	if change.CompletionDeadline != nil {
		next.CompletionDeadline = domain.StringPtr(*change.CompletionDeadline)
	}
	if err := ValidateTaskFields(next); err != nil {
		return err
	}
	if change.Decision != nil {
		next.Decision = *change.Decision
	}
	setTaskStatus(&next, target, now)
	*t = next
	return nil
}

// ValidateTaskFields checks the customer-editable fields.
func ValidateTaskFields(t domain.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return domain.Errorf(domain.ErrInvalidInput, "title is required")
	}
	if !t.Price.IsPositive() {
		return domain.Errorf(domain.ErrInvalidInput, "price must be positive")
	}
	return nil
}

// AssignExecutor binds executor to a REGISTERED task and starts the work.
// Wallets are not touched here.
func AssignExecutor(t *domain.Task, customer, executor *domain.Party, now string) error {
	if t.Status != domain.TaskRegistered {
		return domain.Errorf(domain.ErrInvalidTaskStatus, "task %s is %s, expected %s", t.ID, t.Status, domain.TaskRegistered)
	}
	if err := checkExecutor(*executor); err != nil {
		return err
	}
	if err := checkActive(*customer, "customer"); err != nil {
		return err
	}
	id := executor.ID
	t.ExecutorID = &id
	setTaskStatus(t, domain.TaskInProgress, now)
	executor.Status = domain.PartyActive
	executor.UpdatedAt = now
	return nil
}

// ForceCancel cancels t regardless of who asks. Terminal tasks stay as they
// are: a DONE task terminated through its contract keeps DONE (the refund
// still happens), since no transition ever leaves DONE or CANCELED.
func ForceCancel(t *domain.Task, now string) bool {
	if t.Status.Terminal() {
		return false
	}
	setTaskStatus(t, domain.TaskCanceled, now)
	return true
}

// RequiresExecutor reports whether a task in status s must have an executor.
func RequiresExecutor(s domain.TaskStatus) bool {
	switch s {
	case domain.TaskInProgress, domain.TaskOnCheck, domain.TaskOnFix, domain.TaskDone:
		return true
	}
	return false
}

func setTaskStatus(t *domain.Task, s domain.TaskStatus, now string) {
	if t.Status != s && s == domain.TaskDone {
		t.CompletedAt = &now
	}
	t.Status = s
	t.UpdatedAt = now
}

func checkExecutor(p domain.Party) error {
	if p.Role != domain.RoleExecutor {
		return domain.Errorf(domain.ErrInvalidClientRole, "party %s has role %s, expected %s", p.ID, p.Role, domain.RoleExecutor)
	}
	return checkActive(p, "executor")
}

func checkActive(p domain.Party, what string) error {
	switch p.Status {
	case domain.PartyBlocked, domain.PartyDeleted:
		return domain.Errorf(domain.ErrInvalidClientStatus, "%s %s is %s", what, p.ID, p.Status)
	}
	return nil
}
