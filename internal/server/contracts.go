package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func registerContracts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contract",
		Method:        http.MethodPost,
		Path:          "/contracts",
		Summary:       "Accept a task and escrow its price",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusPaymentRequired,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateContractRequest `json:"body"`
	}) (*struct {
		Body ContractResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.CreateContract(ctx, engine.ContractCreateOptions{
			ID:                     domain.Deref(input.Body.ID),
			TaskID:                 input.Body.TaskID,
			ExecutorID:             input.Body.ExecutorID,
			ConfirmationCode:       input.Body.ConfirmationCode,
			RepeatConfirmationCode: input.Body.RepeatConfirmationCode,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContractResponse `json:"body"`
		}{Body: contractResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contracts",
		Method:      http.MethodGet,
		Path:        "/contracts",
		Summary:     "List contracts",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:"PAID,DONE,TERMINATED"`
		TaskID     string `query:"task_id"`
		CustomerID string `query:"customer_id"`
		ExecutorID string `query:"executor_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedContracts `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, badCursor(input.Cursor)
		}
		items, err := e.ListContracts(ctx, repo.ContractFilters{
			Status:          input.Status,
			TaskID:          input.TaskID,
			CustomerID:      input.CustomerID,
			ExecutorID:      input.ExecutorID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedContracts{}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapContracts(items)
		return &struct {
			Body paginatedContracts `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}",
		Summary:     "Get contract",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ContractResponse `json:"body"`
	}, error) {
		c, err := e.GetContract(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContractResponse `json:"body"`
		}{Body: contractResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-contract",
		Method:      http.MethodPatch,
		Path:        "/contracts/{id}",
		Summary:     "Settle a contract: DONE pays the executor, TERMINATED refunds the customer",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateContractRequest `json:"body"`
	}) (*struct {
		Body ContractResponse `json:"body"`
	}, error) {
		status, err := domain.ParseContractStatus(input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.UpdateContract(ctx, engine.ContractUpdateOptions{
			ID:              input.ID,
			Status:          status,
			ExpectedVersion: expectedVersion(input.Body.Version),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContractResponse `json:"body"`
		}{Body: contractResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-contract",
		Method:        http.MethodDelete,
		Path:          "/contracts/{id}",
		Summary:       "Delete a settled contract",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteContract(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contract-transfers",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/transfers",
		Summary:     "Escrow movements of a contract",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body listTransfers `json:"body"`
	}, error) {
		if _, err := e.GetContract(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTransfers(ctx, repo.TransferFilters{ContractID: input.ID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body listTransfers `json:"body"`
		}{Body: mapTransfers(items)}, nil
	})
}
