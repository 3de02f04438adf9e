package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Register a task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		price, err := parseMoney("price", input.Body.Price)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:                 domain.Deref(input.Body.ID),
			Title:              input.Body.Title,
			Description:        domain.Deref(input.Body.Description),
			Price:              price,
			CompletionDeadline: domain.Deref(input.Body.CompletionDeadline),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:"REGISTERED,IN_PROGRESS,ON_CHECK,ON_FIX,DONE,CANCELED"`
		CustomerID string `query:"customer_id"`
		ExecutorID string `query:"executor_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedTasks `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, badCursor(input.Cursor)
		}
		tasks, err := e.ListTasks(ctx, repo.TaskFilters{
			Status:          input.Status,
			CustomerID:      input.CustomerID,
			ExecutorID:      input.ExecutorID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedTasks{}
		if len(tasks) > limit {
			tasks = tasks[:limit]
			last := tasks[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapTasks(tasks)
		return &struct {
			Body paginatedTasks `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit, review or submit a task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.TaskUpdateOptions{
			ID:                 input.ID,
			Decision:           input.Body.Decision,
			Title:              input.Body.Title,
			Description:        input.Body.Description,
			CompletionDeadline: input.Body.CompletionDeadline,
			ExpectedVersion:    expectedVersion(input.Body.Version),
		}
		if input.Body.Status != nil {
			status, err := domain.ParseTaskStatus(*input.Body.Status)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Status = &status
		}
		if input.Body.Price != nil {
			price, err := parseMoney("price", *input.Body.Price)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Price = &price
		}
		t, err := e.UpdateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete a finished task and its settled contract",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-transitions",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/transitions",
		Summary:     "Statuses the caller may move the task to",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TransitionsResponse `json:"body"`
	}, error) {
		next, err := e.TaskTransitions(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := TransitionsResponse{TaskID: input.ID, Next: []string{}}
		for _, s := range next {
			resp.Next = append(resp.Next, string(s))
		}
		return &struct {
			Body TransitionsResponse `json:"body"`
		}{Body: resp}, nil
	})
}
