package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gigline/internal/auth"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

type recordingNotifier struct {
	mu   sync.Mutex
	done []string
	err  error
}

func (n *recordingNotifier) NotifyContractDone(_ context.Context, c domain.Contract) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = append(n.done, c.ID)
	return n.err
}

type testEnv struct {
	Engine   engine.Engine
	Notifier *recordingNotifier
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	n := &recordingNotifier{}
	eng := engine.New(conn, config.Default(), auth.ContextAuthenticator{}, n)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.Bootstrap(ctx, "admin", "Admin"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	env := testEnv{Engine: eng, Notifier: n, Ctx: ctx}
	env.party(t, "c1", domain.RoleCustomer)
	env.party(t, "e1", domain.RoleExecutor)
	env.party(t, "e2", domain.RoleExecutor)
	if _, err := eng.Deposit(env.as("admin"), "c1", decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return env
}

func (env testEnv) as(partyID string) context.Context {
	return auth.WithCaller(env.Ctx, auth.Caller{PartyID: partyID})
}

func (env testEnv) party(t *testing.T, id string, role domain.Role) domain.Party {
	t.Helper()
	p, err := env.Engine.CreateParty(env.as("admin"), engine.PartyCreateOptions{ID: id, Name: id, Role: role})
	if err != nil {
		t.Fatalf("create party %s: %v", id, err)
	}
	return p
}

func (env testEnv) wallet(t *testing.T, id string) string {
	t.Helper()
	p, err := env.Engine.GetParty(env.Ctx, id)
	if err != nil {
		t.Fatalf("get party %s: %v", id, err)
	}
	return p.Wallet.String()
}

func (env testEnv) task(t *testing.T, price int64) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.as("c1"), engine.TaskCreateOptions{Title: "Landing page", Price: decimal.NewFromInt(price)})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env testEnv) contract(t *testing.T, taskID, executorID string) domain.Contract {
	t.Helper()
	c, err := env.Engine.CreateContract(env.as(executorID), engine.ContractCreateOptions{
		TaskID: taskID, ExecutorID: executorID, ConfirmationCode: "1234", RepeatConfirmationCode: "1234",
	})
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return c
}

func status(s domain.TaskStatus) *domain.TaskStatus { return &s }

func str(s string) *string { return &s }

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestContractSettledDone(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 300)
	if task.Status != domain.TaskRegistered || task.HasExecutor() {
		t.Fatalf("new task should be registered and unassigned: %+v", task)
	}

	c := env.contract(t, task.ID, "e1")
	if c.Status != domain.ContractPaid || !c.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected contract %+v", c)
	}
	if got := env.wallet(t, "c1"); got != "700" {
		t.Fatalf("customer wallet after hold = %s", got)
	}
	task, _ = env.Engine.GetTask(env.Ctx, task.ID)
	if task.Status != domain.TaskInProgress || domain.Deref(task.ExecutorID) != "e1" {
		t.Fatalf("task not assigned: %+v", task)
	}
	e1, _ := env.Engine.GetParty(env.Ctx, "e1")
	if e1.Status != domain.PartyActive {
		t.Fatalf("executor should be active, got %s", e1.Status)
	}

	task, err := env.Engine.UpdateTask(env.as("e1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck), Decision: str("done")})
	if err != nil || task.Status != domain.TaskOnCheck {
		t.Fatalf("submit: %v %+v", err, task)
	}

	_, err = env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractDone})
	expectKind(t, err, domain.ErrInvalidTaskStatus)

	if _, err := env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskDone)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	c, err = env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractDone})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if c.Status != domain.ContractDone || c.ClosedAt == nil {
		t.Fatalf("contract not closed: %+v", c)
	}
	if got := env.wallet(t, "e1"); got != "300" {
		t.Fatalf("executor wallet = %s", got)
	}
	if got := env.wallet(t, "c1"); got != "700" {
		t.Fatalf("customer wallet = %s", got)
	}
	if len(env.Notifier.done) != 1 || env.Notifier.done[0] != c.ID {
		t.Fatalf("bookkeeping not notified: %v", env.Notifier.done)
	}

	_, err = env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated})
	expectKind(t, err, domain.ErrInvalidContractStatus)

	transfers, err := env.Engine.ListTransfers(env.Ctx, repo.TransferFilters{ContractID: c.ID})
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	reasons := map[domain.TransferReason]int{}
	for _, tr := range transfers {
		reasons[tr.Reason]++
	}
	if len(transfers) != 2 || reasons[domain.ReasonEscrowHold] != 1 || reasons[domain.ReasonReleaseToExecutor] != 1 {
		t.Fatalf("unexpected transfers %+v", transfers)
	}
}

func TestContractTerminatedRefunds(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 300)
	c := env.contract(t, task.ID, "e1")

	c, err := env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated})
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if c.Status != domain.ContractTerminated {
		t.Fatalf("status = %s", c.Status)
	}
	if got := env.wallet(t, "c1"); got != "1000" {
		t.Fatalf("customer not refunded: %s", got)
	}
	if got := env.wallet(t, "e1"); got != "0" {
		t.Fatalf("executor paid on termination: %s", got)
	}
	task, _ = env.Engine.GetTask(env.Ctx, task.ID)
	if task.Status != domain.TaskCanceled {
		t.Fatalf("task not cancelled: %s", task.Status)
	}
	if len(env.Notifier.done) != 0 {
		t.Fatalf("termination must not notify bookkeeping")
	}
}

func TestCreateContractPreconditionsLeaveNoTrace(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 300)
	expensive := env.task(t, 5000)

	cases := []struct {
		name string
		ctx  context.Context
		opts engine.ContractCreateOptions
		kind error
	}{
		{"caller is not the executor", env.as("e2"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "1"}, domain.ErrUnavailableRoleOperation},
		{"customer cannot execute", env.as("c1"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "c1", ConfirmationCode: "1", RepeatConfirmationCode: "1"}, domain.ErrInvalidClientRole},
		{"codes differ", env.as("e1"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "2"}, domain.ErrConfirmationMismatch},
		{"codes empty", env.as("e1"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e1"}, domain.ErrConfirmationMismatch},
		{"wallet too small", env.as("e1"), engine.ContractCreateOptions{TaskID: expensive.ID, ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "1"}, domain.ErrInsufficientFunds},
		{"unknown task", env.as("e1"), engine.ContractCreateOptions{TaskID: "missing", ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "1"}, domain.ErrEntityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateContract(tc.ctx, tc.opts)
			expectKind(t, err, tc.kind)
			if domain.IsRetryable(err) {
				t.Fatalf("precondition failures must not be retryable")
			}
		})
	}
	if got := env.wallet(t, "c1"); got != "1000" {
		t.Fatalf("wallet touched by failed attempts: %s", got)
	}
	task, _ = env.Engine.GetTask(env.Ctx, task.ID)
	if task.Status != domain.TaskRegistered || task.HasExecutor() {
		t.Fatalf("task touched by failed attempts: %+v", task)
	}
	e1, _ := env.Engine.GetParty(env.Ctx, "e1")
	if e1.Status != domain.PartyCreated {
		t.Fatalf("executor touched by failed attempts: %s", e1.Status)
	}
}

func TestCreateContractBlockedParties(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 100)
	if _, err := env.Engine.SetPartyStatus(env.as("admin"), "e1", domain.PartyBlocked); err != nil {
		t.Fatalf("block executor: %v", err)
	}
	_, err := env.Engine.CreateContract(env.as("e1"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "1"})
	expectKind(t, err, domain.ErrInvalidClientStatus)

	if _, err := env.Engine.SetPartyStatus(env.as("admin"), "c1", domain.PartyBlocked); err != nil {
		t.Fatalf("block customer: %v", err)
	}
	_, err = env.Engine.CreateContract(env.as("e2"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e2", ConfirmationCode: "1", RepeatConfirmationCode: "1"})
	expectKind(t, err, domain.ErrInvalidClientStatus)
}

func TestCreateContractRollsBackOnPersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 300)
	if _, err := env.Engine.DB.Exec(`CREATE TRIGGER fail_contract BEFORE INSERT ON contracts BEGIN SELECT RAISE(ABORT, 'disk on fire'); END;`); err != nil {
		t.Fatalf("install trigger: %v", err)
	}
	_, err := env.Engine.CreateContract(env.as("e1"), engine.ContractCreateOptions{TaskID: task.ID, ExecutorID: "e1", ConfirmationCode: "1", RepeatConfirmationCode: "1"})
	expectKind(t, err, domain.ErrInternal)

	if got := env.wallet(t, "c1"); got != "1000" {
		t.Fatalf("debit leaked out of failed transaction: %s", got)
	}
	task, _ = env.Engine.GetTask(env.Ctx, task.ID)
	if task.Status != domain.TaskRegistered || task.Version != 1 {
		t.Fatalf("task leaked out of failed transaction: %+v", task)
	}
	transfers, _ := env.Engine.ListTransfers(env.Ctx, repo.TransferFilters{PartyID: "c1"})
	for _, tr := range transfers {
		if tr.Reason == domain.ReasonEscrowHold {
			t.Fatalf("escrow transfer leaked: %+v", tr)
		}
	}
}

func TestConcurrentCreateContract(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 300)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, executor := range []string{"e1", "e2"} {
		wg.Add(1)
		go func(i int, executor string) {
			defer wg.Done()
			_, errs[i] = env.Engine.CreateContract(env.as(executor), engine.ContractCreateOptions{
				TaskID: task.ID, ExecutorID: executor, ConfirmationCode: "1", RepeatConfirmationCode: "1",
			})
		}(i, executor)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInvalidTaskStatus), errors.Is(err, domain.ErrConcurrentModification):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d (%v)", succeeded, errs)
	}
	if got := env.wallet(t, "c1"); got != "700" {
		t.Fatalf("customer charged %s, expected a single hold", got)
	}
	contracts, _ := env.Engine.ListContracts(env.Ctx, repo.ContractFilters{TaskID: task.ID})
	if len(contracts) != 1 {
		t.Fatalf("expected one contract, got %d", len(contracts))
	}
}

func TestUpdateTaskGuards(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.CreateTask(env.as("e1"), engine.TaskCreateOptions{Title: "x", Price: decimal.NewFromInt(1)})
	expectKind(t, err, domain.ErrUnavailableRoleOperation)
	_, err = env.Engine.CreateTask(env.as("c1"), engine.TaskCreateOptions{Title: "x", Price: decimal.Zero})
	expectKind(t, err, domain.ErrInvalidInput)

	task := env.task(t, 100)
	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnFix)})
	expectKind(t, err, domain.ErrUnavailableRoleOperation)

	task, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Title: str("Landing page v2"), ExpectedVersion: task.Version})
	if err != nil || task.Title != "Landing page v2" || task.Version != 2 {
		t.Fatalf("edit: %v %+v", err, task)
	}
	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Title: str("stale"), ExpectedVersion: 1})
	expectKind(t, err, domain.ErrConcurrentModification)

	env.contract(t, task.ID, "e1")

	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskCanceled)})
	expectKind(t, err, domain.ErrUnavailableRoleOperation)
	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnFix)})
	expectKind(t, err, domain.ErrUnavailableTransition)
	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Title: str("late edit")})
	expectKind(t, err, domain.ErrUnavailableTransition)
	_, err = env.Engine.UpdateTask(env.as("e2"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck), Decision: str("x")})
	expectKind(t, err, domain.ErrUnavailableRoleOperation)
	_, err = env.Engine.UpdateTask(env.as("e1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck)})
	expectKind(t, err, domain.ErrInvalidInput)

	if _, err := env.Engine.UpdateTask(env.as("e1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck), Decision: str("v1")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnFix)}); err != nil {
		t.Fatalf("request fix: %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.as("e1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck), Decision: str("v2")}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	allowed, err := env.Engine.TaskTransitions(env.as("c1"), task.ID)
	if err != nil || len(allowed) != 2 {
		t.Fatalf("customer on ON_CHECK should have two targets, got %v %v", allowed, err)
	}
	if _, err := env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskDone)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnFix)})
	expectKind(t, err, domain.ErrInvalidTaskStatus)

	if _, err := env.Engine.SetPartyStatus(env.as("admin"), "e2", domain.PartyBlocked); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err = env.Engine.UpdateTask(env.as("e2"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskOnCheck)})
	expectKind(t, err, domain.ErrInvalidClientStatus)
}

func TestUpdateContractOnlyByCustomer(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 100)
	c := env.contract(t, task.ID, "e1")
	_, err := env.Engine.UpdateContract(env.as("e1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated})
	expectKind(t, err, domain.ErrInvalidClientStatus)
	_, err = env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractPaid})
	expectKind(t, err, domain.ErrInvalidContractStatus)
	_, err = env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated, ExpectedVersion: c.Version + 1})
	expectKind(t, err, domain.ErrConcurrentModification)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	env.Notifier.err = errors.New("books offline")
	task := env.task(t, 100)
	c := env.contract(t, task.ID, "e1")
	if _, err := env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated}); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	task2 := env.task(t, 100)
	c2 := env.contract(t, task2.ID, "e1")
	_, _ = env.Engine.UpdateTask(env.as("e1"), engine.TaskUpdateOptions{ID: task2.ID, Status: status(domain.TaskOnCheck), Decision: str("ok")})
	_, _ = env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task2.ID, Status: status(domain.TaskDone)})
	c2, err := env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c2.ID, Status: domain.ContractDone})
	if err != nil {
		t.Fatalf("settle with failing notifier: %v", err)
	}
	stored, _ := env.Engine.GetContract(env.Ctx, c2.ID)
	if stored.Status != domain.ContractDone {
		t.Fatalf("settlement rolled back: %s", stored.Status)
	}
}

func TestDeleteTaskAndContract(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, 100)
	c := env.contract(t, task.ID, "e1")

	expectKind(t, env.Engine.DeleteTask(env.as("c1"), task.ID), domain.ErrInvalidTaskStatus)
	expectKind(t, env.Engine.DeleteContract(env.as("c1"), c.ID), domain.ErrInvalidContractStatus)

	if _, err := env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c.ID, Status: domain.ContractTerminated}); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	expectKind(t, env.Engine.DeleteTask(env.as("e1"), task.ID), domain.ErrUnavailableRoleOperation)
	if err := env.Engine.DeleteTask(env.as("c1"), task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := env.Engine.GetContract(env.Ctx, c.ID); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("contract should be deleted with its task, got %v", err)
	}
	expectKind(t, env.Engine.DeleteTask(env.as("c1"), task.ID), domain.ErrEntityNotFound)
	if got := env.wallet(t, "c1"); got != "1000" {
		t.Fatalf("delete changed wallets: %s", got)
	}

	other := env.task(t, 100)
	c2 := env.contract(t, other.ID, "e2")
	if _, err := env.Engine.UpdateContract(env.as("c1"), engine.ContractUpdateOptions{ID: c2.ID, Status: domain.ContractTerminated}); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := env.Engine.DeleteContract(env.as("e2"), c2.ID); err != nil {
		t.Fatalf("delete contract: %v", err)
	}
	expectKind(t, env.Engine.DeleteContract(env.as("e2"), c2.ID), domain.ErrEntityNotFound)
}

func TestPartyAdministration(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateParty(env.as("c1"), engine.PartyCreateOptions{Name: "x", Role: domain.RoleCustomer})
	expectKind(t, err, domain.ErrUnavailableRoleOperation)
	_, err = env.Engine.CreateParty(env.as("admin"), engine.PartyCreateOptions{ID: "c1", Name: "dup", Role: domain.RoleCustomer})
	expectKind(t, err, domain.ErrInvalidInput)
	_, err = env.Engine.CreateParty(env.as("admin"), engine.PartyCreateOptions{Name: "x", Role: "OWNER"})
	expectKind(t, err, domain.ErrInvalidInput)
	_, err = env.Engine.Deposit(env.as("admin"), "c1", decimal.NewFromInt(-5))
	expectKind(t, err, domain.ErrInvalidInput)
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Price: decimal.NewFromInt(1)})
	expectKind(t, err, domain.ErrUnauthenticated)

	task := env.task(t, 100)
	_, err = env.Engine.SetPartyStatus(env.as("admin"), "c1", domain.PartyDeleted)
	expectKind(t, err, domain.ErrInvalidClientStatus)
	if _, err := env.Engine.UpdateTask(env.as("c1"), engine.TaskUpdateOptions{ID: task.ID, Status: status(domain.TaskCanceled)}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	p, err := env.Engine.SetPartyStatus(env.as("admin"), "c1", domain.PartyDeleted)
	if err != nil || p.Status != domain.PartyDeleted {
		t.Fatalf("delete party: %v %+v", err, p)
	}
	_, err = env.Engine.CreateTask(env.as("c1"), engine.TaskCreateOptions{Title: "x", Price: decimal.NewFromInt(1)})
	expectKind(t, err, domain.ErrInvalidClientStatus)

	evts, err := env.Engine.LatestEvents(env.Ctx, repo.EventFilters{EntityKind: "party", EntityID: "c1"})
	if err != nil || len(evts) < 3 {
		t.Fatalf("expected party events, got %d %v", len(evts), err)
	}
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	key, raw, err := env.Engine.CreateAPIKey(env.as("c1"), "", "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if key.PartyID != "c1" || raw == "" || key.KeyHash != repo.HashAPIKey(raw) {
		t.Fatalf("unexpected key %+v", key)
	}
	_, _, err = env.Engine.CreateAPIKey(env.as("e1"), "c1", "steal")
	expectKind(t, err, domain.ErrUnavailableRoleOperation)
	keys, err := env.Engine.ListAPIKeys(env.as("admin"), "c1")
	if err != nil || len(keys) != 1 {
		t.Fatalf("list keys: %v %v", keys, err)
	}
	if err := env.Engine.RevokeAPIKey(env.as("c1"), "c1", key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	expectKind(t, env.Engine.RevokeAPIKey(env.as("c1"), "c1", key.ID), domain.ErrEntityNotFound)

	evts, err := env.Engine.LatestEvents(env.Ctx, repo.EventFilters{EntityKind: "party", EntityID: "c1"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var revoked *domain.Event
	for i := range evts {
		if evts[i].Type == "apikey.revoked" {
			revoked = &evts[i]
		}
	}
	if revoked == nil || revoked.ActorID != "c1" {
		t.Fatalf("expected apikey.revoked event by c1, got %+v", evts)
	}
	// Audit rows follow the engine clock.
	if revoked.TS != "2024-01-01T00:00:00Z" {
		t.Fatalf("event stamped %s, want engine clock", revoked.TS)
	}

	second, _, err := env.Engine.CreateAPIKey(env.as("c1"), "", "second")
	if err != nil {
		t.Fatalf("create second key: %v", err)
	}
	if _, err := env.Engine.SetPartyStatus(env.as("admin"), "c1", domain.PartyBlocked); err != nil {
		t.Fatalf("block c1: %v", err)
	}
	_, err = env.Engine.ListAPIKeys(env.as("c1"), "")
	expectKind(t, err, domain.ErrInvalidClientStatus)
	expectKind(t, env.Engine.RevokeAPIKey(env.as("c1"), "c1", second.ID), domain.ErrInvalidClientStatus)
	if keys, err := env.Engine.ListAPIKeys(env.as("admin"), "c1"); err != nil || len(keys) != 1 {
		t.Fatalf("blocked party's key should survive: %v %v", keys, err)
	}
}
