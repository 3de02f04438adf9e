package server

import (
	"strings"

	"github.com/shopspring/decimal"

	"gigline/internal/domain"
)

// Request payloads. Money travels as decimal strings.

type CreatePartyRequest struct {
	ID     *string `json:"id,omitempty"`
	Name   string  `json:"name"`
	Role   string  `json:"role" enum:"ADMIN,CUSTOMER,EXECUTOR"`
	Status *string `json:"status,omitempty" enum:"CREATED,ACTIVE"`
}

type SetPartyStatusRequest struct {
	Status string `json:"status" enum:"CREATED,ACTIVE,BLOCKED,DELETED"`
}

type DepositRequest struct {
	Amount string `json:"amount" example:"100.00"`
}

type CreateTaskRequest struct {
	ID                 *string `json:"id,omitempty"`
	Title              string  `json:"title"`
	Description        *string `json:"description,omitempty"`
	Price              string  `json:"price" example:"250.00"`
	CompletionDeadline *string `json:"completion_deadline,omitempty" example:"2024-03-01T00:00:00Z"`
}

type UpdateTaskRequest struct {
	Status             *string `json:"status,omitempty" enum:"REGISTERED,IN_PROGRESS,ON_CHECK,ON_FIX,DONE,CANCELED"`
	Decision           *string `json:"decision,omitempty"`
	Title              *string `json:"title,omitempty"`
	Description        *string `json:"description,omitempty"`
	Price              *string `json:"price,omitempty"`
	CompletionDeadline *string `json:"completion_deadline,omitempty"`
	Version            *int64  `json:"version,omitempty"`
}

type CreateContractRequest struct {
	ID                     *string `json:"id,omitempty"`
	TaskID                 string  `json:"task_id"`
	ExecutorID             string  `json:"executor_id"`
	ConfirmationCode       string  `json:"confirmation_code"`
	RepeatConfirmationCode string  `json:"repeat_confirmation_code"`
}

type UpdateContractRequest struct {
	Status  string `json:"status" enum:"DONE,TERMINATED"`
	Version *int64 `json:"version,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	PartyID string `json:"party_id"`
}

// Responses

type PartyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Wallet    string `json:"wallet"`
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TaskResponse struct {
	ID                 string  `json:"id"`
	CustomerID         string  `json:"customer_id"`
	ExecutorID         *string `json:"executor_id,omitempty"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	Price              string  `json:"price"`
	Status             string  `json:"status"`
	CompletionDeadline *string `json:"completion_deadline,omitempty"`
	Decision           string  `json:"decision,omitempty"`
	Version            int64   `json:"version"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	CompletedAt        *string `json:"completed_at,omitempty"`
}

type ContractResponse struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	CustomerID string  `json:"customer_id"`
	ExecutorID string  `json:"executor_id"`
	Amount     string  `json:"amount"`
	Status     string  `json:"status"`
	Version    int64   `json:"version"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	ClosedAt   *string `json:"closed_at,omitempty"`
}

type TransferResponse struct {
	ID          string  `json:"id"`
	FromPartyID *string `json:"from_party_id,omitempty"`
	ToPartyID   *string `json:"to_party_id,omitempty"`
	ContractID  *string `json:"contract_id,omitempty"`
	Amount      string  `json:"amount"`
	Reason      string  `json:"reason"`
	CreatedAt   string  `json:"created_at"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	PartyID   string `json:"party_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only returned once, on creation.
	Key string `json:"key,omitempty"`
}

type TransitionsResponse struct {
	TaskID string   `json:"task_id"`
	Next   []string `json:"next"`
}

type StatusResponse struct {
	Tasks map[string]int `json:"tasks"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedParties struct {
	Items      []PartyResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type paginatedTasks struct {
	Items      []TaskResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedContracts struct {
	Items      []ContractResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type listTransfers struct {
	Items []TransferResponse `json:"items"`
}

type listAPIKeys struct {
	Items []APIKeyResponse `json:"items"`
}

func partyResponse(p domain.Party) PartyResponse {
	return PartyResponse{
		ID:        p.ID,
		Name:      p.Name,
		Role:      string(p.Role),
		Status:    string(p.Status),
		Wallet:    p.Wallet.StringFixed(2),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		CustomerID:         t.CustomerID,
		ExecutorID:         t.ExecutorID,
		Title:              t.Title,
		Description:        t.Description,
		Price:              t.Price.StringFixed(2),
		Status:             string(t.Status),
		CompletionDeadline: t.CompletionDeadline,
		Decision:           t.Decision,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}
}

func contractResponse(c domain.Contract) ContractResponse {
	return ContractResponse{
		ID:         c.ID,
		TaskID:     c.TaskID,
		CustomerID: c.CustomerID,
		ExecutorID: c.ExecutorID,
		Amount:     c.Amount.StringFixed(2),
		Status:     string(c.Status),
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		ClosedAt:   c.ClosedAt,
	}
}

func transferResponse(t domain.WalletTransfer) TransferResponse {
	return TransferResponse{
		ID:          t.ID,
		FromPartyID: t.FromPartyID,
		ToPartyID:   t.ToPartyID,
		ContractID:  t.ContractID,
		Amount:      t.Amount.StringFixed(2),
		Reason:      string(t.Reason),
		CreatedAt:   t.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		PartyID:   k.PartyID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func mapParties(items []domain.Party) []PartyResponse {
	out := make([]PartyResponse, 0, len(items))
	for _, p := range items {
		out = append(out, partyResponse(p))
	}
	return out
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func mapContracts(items []domain.Contract) []ContractResponse {
	out := make([]ContractResponse, 0, len(items))
	for _, c := range items {
		out = append(out, contractResponse(c))
	}
	return out
}

// parseMoney reads a decimal amount from a request field.
func parseMoney(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, domain.Errorf(domain.ErrInvalidInput, "%s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.Errorf(domain.ErrInvalidInput, "%s must be a decimal amount", field)
	}
	return d, nil
}
