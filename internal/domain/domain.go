package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
	RoleExecutor Role = "EXECUTOR"
)

type PartyStatus string

const (
	PartyCreated PartyStatus = "CREATED"
	PartyActive  PartyStatus = "ACTIVE"
	PartyBlocked PartyStatus = "BLOCKED"
	PartyDeleted PartyStatus = "DELETED"
)

type TaskStatus string

const (
	TaskRegistered TaskStatus = "REGISTERED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskOnCheck    TaskStatus = "ON_CHECK"
	TaskOnFix      TaskStatus = "ON_FIX"
	TaskDone       TaskStatus = "DONE"
	TaskCanceled   TaskStatus = "CANCELED"
)

// Terminal reports whether no further transition is permitted from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskCanceled
}

type ContractStatus string

const (
	ContractPaid       ContractStatus = "PAID"
	ContractDone       ContractStatus = "DONE"
	ContractTerminated ContractStatus = "TERMINATED"
)

func (s ContractStatus) Terminal() bool {
	return s == ContractDone || s == ContractTerminated
}

type TransferReason string

const (
	ReasonEscrowHold        TransferReason = "ESCROW_HOLD"
	ReasonReleaseToExecutor TransferReason = "RELEASE_TO_EXECUTOR"
	ReasonRefundToCustomer  TransferReason = "REFUND_TO_CUSTOMER"
	ReasonDeposit           TransferReason = "DEPOSIT"
)

// Party is a marketplace participant (user/client) owning a wallet.
type Party struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Role      Role            `json:"role"`
	Status    PartyStatus     `json:"status"`
	Wallet    decimal.Decimal `json:"wallet"`
	Version   int64           `json:"version"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func (p Party) Blocked() bool { return p.Status == PartyBlocked }

// Task is a work order placed by a customer and, once assigned, performed by an executor.
type Task struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customer_id"`
	ExecutorID         *string         `json:"executor_id,omitempty"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Status             TaskStatus      `json:"status"`
	CompletionDeadline *string         `json:"completion_deadline,omitempty"`
	Decision           string          `json:"decision,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
	CompletedAt        *string         `json:"completed_at,omitempty"`
}

func (t Task) HasExecutor() bool { return t.ExecutorID != nil && *t.ExecutorID != "" }

// Contract binds a customer and an executor to a task and tracks the escrowed amount.
type Contract struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"task_id"`
	CustomerID string          `json:"customer_id"`
	ExecutorID string          `json:"executor_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     ContractStatus  `json:"status"`
	Version    int64           `json:"version"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
	ClosedAt   *string         `json:"closed_at,omitempty"`
}

// WalletTransfer records one movement of funds. A nil side is the implicit escrow.
type WalletTransfer struct {
	ID          string          `json:"id"`
	FromPartyID *string         `json:"from_party_id,omitempty"`
	ToPartyID   *string         `json:"to_party_id,omitempty"`
	ContractID  *string         `json:"contract_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      TransferReason  `json:"reason"`
	CreatedAt   string          `json:"created_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	PartyID   string `json:"party_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at"`
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleCustomer, RoleExecutor:
		return r, nil
	}
	return "", Errorf(ErrInvalidInput, "unknown role %q", s)
}

func ParsePartyStatus(s string) (PartyStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "NOT_EXIST" {
		v = string(PartyDeleted)
	}
	switch st := PartyStatus(v); st {
	case PartyCreated, PartyActive, PartyBlocked, PartyDeleted:
		return st, nil
	}
	return "", Errorf(ErrInvalidInput, "unknown party status %q", s)
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TaskRegistered, TaskInProgress, TaskOnCheck, TaskOnFix, TaskDone, TaskCanceled:
		return st, nil
	}
	return "", Errorf(ErrInvalidTaskStatus, "unknown task status %q", s)
}

func ParseContractStatus(s string) (ContractStatus, error) {
	switch st := ContractStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ContractPaid, ContractDone, ContractTerminated:
		return st, nil
	}
	return "", Errorf(ErrInvalidContractStatus, "unknown contract status %q", s)
}

func (r Role) String() string           { return string(r) }
func (s TaskStatus) String() string     { return string(s) }
func (s ContractStatus) String() string { return string(s) }
func (s PartyStatus) String() string    { return string(s) }

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
