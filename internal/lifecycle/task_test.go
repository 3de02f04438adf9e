package lifecycle

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"gigline/internal/domain"
)

const now = "2024-01-01T00:00:00Z"

var allTaskStatuses = []domain.TaskStatus{
	domain.TaskRegistered, domain.TaskInProgress, domain.TaskOnCheck,
	domain.TaskOnFix, domain.TaskDone, domain.TaskCanceled,
}

func newTask() domain.Task {
	return domain.Task{ID: "t1", CustomerID: "c1", Title: "Logo", Price: decimal.NewFromInt(300), Status: domain.TaskRegistered}
}

func assigned(status domain.TaskStatus) domain.Task {
	t := newTask()
	t.ExecutorID = domain.StringPtr("e1")
	t.Status = status
	return t
}

func ts(s domain.TaskStatus) *domain.TaskStatus { return &s }

func sp(s string) *string { return &s }

func TestLookupTaskTransition(t *testing.T) {
	cases := []struct {
		actor    Actor
		from, to domain.TaskStatus
		err      error
	}{
		{ActorCustomer, domain.TaskRegistered, domain.TaskRegistered, nil},
		{ActorCustomer, domain.TaskRegistered, domain.TaskCanceled, nil},
		{ActorCustomer, domain.TaskOnCheck, domain.TaskDone, nil},
		{ActorCustomer, domain.TaskOnCheck, domain.TaskOnFix, nil},
		{ActorExecutor, domain.TaskInProgress, domain.TaskOnCheck, nil},
		{ActorExecutor, domain.TaskOnFix, domain.TaskOnCheck, nil},
		{ActorCustomer, domain.TaskInProgress, domain.TaskCanceled, domain.ErrUnavailableTransition},
		{ActorExecutor, domain.TaskOnCheck, domain.TaskDone, domain.ErrUnavailableTransition},
		{ActorCustomer, domain.TaskRegistered, domain.TaskInProgress, domain.ErrUnavailableTransition},
		{ActorNone, domain.TaskOnCheck, domain.TaskDone, domain.ErrUnavailableTransition},
		{ActorCustomer, domain.TaskDone, domain.TaskOnFix, domain.ErrInvalidTaskStatus},
		{ActorCustomer, domain.TaskCanceled, domain.TaskRegistered, domain.ErrInvalidTaskStatus},
	}
	for _, tc := range cases {
		_, err := LookupTaskTransition(tc.actor, tc.from, tc.to)
		if tc.err == nil && err != nil {
			t.Errorf("%s %s->%s: unexpected error %v", tc.actor, tc.from, tc.to, err)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%s %s->%s: expected %v, got %v", tc.actor, tc.from, tc.to, tc.err, err)
		}
	}
}

func TestApplyTaskChange(t *testing.T) {
	task := newTask()
	price := decimal.NewFromInt(350)
	if err := ApplyTaskChange(&task, ActorCustomer, TaskChange{Title: sp("Logo v2"), Price: &price}, now); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if task.Title != "Logo v2" || !task.Price.Equal(price) || task.Status != domain.TaskRegistered {
		t.Fatalf("edit not applied: %+v", task)
	}
	bad := decimal.NewFromInt(-1)
	if err := ApplyTaskChange(&task, ActorCustomer, TaskChange{Price: &bad}, now); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid price, got %v", err)
	}

	task = assigned(domain.TaskInProgress)
	if err := ApplyTaskChange(&task, ActorExecutor, TaskChange{Status: ts(domain.TaskOnCheck)}, now); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing decision, got %v", err)
	}
	if err := ApplyTaskChange(&task, ActorExecutor, TaskChange{Status: ts(domain.TaskOnCheck), Decision: sp("see PR"), Title: sp("mine")}, now); !errors.Is(err, domain.ErrUnavailableTransition) {
		t.Fatalf("executor must not edit fields, got %v", err)
	}
	if err := ApplyTaskChange(&task, ActorExecutor, TaskChange{Status: ts(domain.TaskOnCheck), Decision: sp("see PR")}, now); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if task.Status != domain.TaskOnCheck || task.Decision != "see PR" {
		t.Fatalf("submit not applied: %+v", task)
	}
	if err := ApplyTaskChange(&task, ActorCustomer, TaskChange{Status: ts(domain.TaskDone), Decision: sp("override")}, now); !errors.Is(err, domain.ErrUnavailableTransition) {
		t.Fatalf("customer must not set decision, got %v", err)
	}
	if err := ApplyTaskChange(&task, ActorCustomer, TaskChange{Status: ts(domain.TaskDone)}, now); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if task.CompletedAt == nil || *task.CompletedAt != now {
		t.Fatalf("completed_at not set: %+v", task)
	}
}

func TestAssignExecutor(t *testing.T) {
	customer := &domain.Party{ID: "c1", Role: domain.RoleCustomer, Status: domain.PartyActive}
	executor := &domain.Party{ID: "e1", Role: domain.RoleExecutor, Status: domain.PartyCreated}

	task := newTask()
	if err := AssignExecutor(&task, customer, &domain.Party{ID: "x", Role: domain.RoleCustomer}, now); !errors.Is(err, domain.ErrInvalidClientRole) {
		t.Fatalf("expected role error, got %v", err)
	}
	blocked := *customer
	blocked.Status = domain.PartyBlocked
	if err := AssignExecutor(&task, &blocked, executor, now); !errors.Is(err, domain.ErrInvalidClientStatus) {
		t.Fatalf("expected blocked customer error, got %v", err)
	}
	if task.Status != domain.TaskRegistered || task.HasExecutor() {
		t.Fatalf("failed assignment mutated the task")
	}
	if err := AssignExecutor(&task, customer, executor, now); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.Status != domain.TaskInProgress || domain.Deref(task.ExecutorID) != "e1" || executor.Status != domain.PartyActive {
		t.Fatalf("assignment not applied: %+v %+v", task, executor)
	}
	if err := AssignExecutor(&task, customer, executor, now); !errors.Is(err, domain.ErrInvalidTaskStatus) {
		t.Fatalf("expected second assignment to fail, got %v", err)
	}
}

func TestForceCancel(t *testing.T) {
	for _, s := range allTaskStatuses {
		task := assigned(s)
		changed := ForceCancel(&task, now)
		if s.Terminal() {
			if changed || task.Status != s {
				t.Errorf("%s: terminal task changed to %s", s, task.Status)
			}
			continue
		}
		if !changed || task.Status != domain.TaskCanceled {
			t.Errorf("%s: expected cancel, got %s", s, task.Status)
		}
	}
}

// No sequence of requested changes moves a task out of a terminal status or
// into a status that contradicts executor presence.
func TestPropertyTaskClosure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := newTask()
		if rapid.Bool().Draw(rt, "assigned") {
			task.ExecutorID = domain.StringPtr("e1")
			task.Status = domain.TaskInProgress
		}
		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			actor := rapid.SampledFrom([]Actor{ActorCustomer, ActorExecutor, ActorNone}).Draw(rt, "actor")
			to := rapid.SampledFrom(allTaskStatuses).Draw(rt, "to")
			before := task
			err := ApplyTaskChange(&task, actor, TaskChange{Status: &to, Decision: decisionFor(actor)}, now)
			if before.Status.Terminal() {
				if err == nil || task.Status != before.Status {
					rt.Fatalf("terminal task %s moved to %s", before.Status, task.Status)
				}
			}
			if err != nil && task.Status != before.Status {
				rt.Fatalf("rejected change still moved %s -> %s", before.Status, task.Status)
			}
			if !task.HasExecutor() && RequiresExecutor(task.Status) {
				rt.Fatalf("status %s reached without an executor", task.Status)
			}
		}
	})
}

func decisionFor(a Actor) *string {
	if a == ActorExecutor {
		return sp("work")
	}
	return nil
}
