package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func registerParties(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-party",
		Method:        http.MethodPost,
		Path:          "/parties",
		Summary:       "Register a party (admin)",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreatePartyRequest `json:"body"`
	}) (*struct {
		Body PartyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		role, err := domain.ParseRole(input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		opts := engine.PartyCreateOptions{
			ID:   domain.Deref(input.Body.ID),
			Name: input.Body.Name,
			Role: role,
		}
		if input.Body.Status != nil {
			status, err := domain.ParsePartyStatus(*input.Body.Status)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Status = status
		}
		p, err := e.CreateParty(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartyResponse `json:"body"`
		}{Body: partyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-parties",
		Method:      http.MethodGet,
		Path:        "/parties",
		Summary:     "List parties",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Role   string `query:"role" enum:"ADMIN,CUSTOMER,EXECUTOR"`
		Status string `query:"status" enum:"CREATED,ACTIVE,BLOCKED,DELETED"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedParties `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, badCursor(input.Cursor)
		}
		items, err := e.ListParties(ctx, repo.PartyFilters{
			Role:            input.Role,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedParties{}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapParties(items)
		return &struct {
			Body paginatedParties `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-party",
		Method:      http.MethodGet,
		Path:        "/parties/{id}",
		Summary:     "Get party",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body PartyResponse `json:"body"`
	}, error) {
		p, err := e.GetParty(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartyResponse `json:"body"`
		}{Body: partyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-party-status",
		Method:      http.MethodPost,
		Path:        "/parties/{id}/status",
		Summary:     "Activate, block or delete a party (admin)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body SetPartyStatusRequest `json:"body"`
	}) (*struct {
		Body PartyResponse `json:"body"`
	}, error) {
		status, err := domain.ParsePartyStatus(input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.SetPartyStatus(ctx, input.ID, status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartyResponse `json:"body"`
		}{Body: partyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deposit",
		Method:      http.MethodPost,
		Path:        "/parties/{id}/deposit",
		Summary:     "Credit a party's wallet (admin)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body DepositRequest `json:"body"`
	}) (*struct {
		Body PartyResponse `json:"body"`
	}, error) {
		amount, err := parseMoney("amount", input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.Deposit(ctx, input.ID, amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartyResponse `json:"body"`
		}{Body: partyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-party-transfers",
		Method:      http.MethodGet,
		Path:        "/parties/{id}/transfers",
		Summary:     "Wallet transfers touching a party",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body listTransfers `json:"body"`
	}, error) {
		if _, err := e.GetParty(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTransfers(ctx, repo.TransferFilters{PartyID: input.ID, Limit: normalizeLimit(input.Limit)})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body listTransfers `json:"body"`
		}{Body: mapTransfers(items)}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/parties/{id}/api-keys",
		Summary:       "Issue an API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		key, raw, err := e.CreateAPIKey(ctx, input.ID, strings.TrimSpace(input.Body.Name))
		if err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = raw
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/parties/{id}/api-keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body listAPIKeys `json:"body"`
	}, error) {
		keys, err := e.ListAPIKeys(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := listAPIKeys{Items: []APIKeyResponse{}}
		for _, k := range keys {
			resp.Items = append(resp.Items, apiKeyResponse(k))
		}
		return &struct {
			Body listAPIKeys `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/parties/{id}/api-keys/{key_id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if err := e.RevokeAPIKey(ctx, input.ID, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func mapTransfers(items []domain.WalletTransfer) listTransfers {
	out := listTransfers{Items: make([]TransferResponse, 0, len(items))}
	for _, t := range items {
		out.Items = append(out.Items, transferResponse(t))
	}
	return out
}
