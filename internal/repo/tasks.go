package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const taskColumns = `id,customer_id,executor_id,title,COALESCE(description,''),price,status,completion_deadline,COALESCE(decision,''),version,created_at,updated_at,completed_at`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var executor, deadline, completed sql.NullString
	err := s.Scan(&t.ID, &t.CustomerID, &executor, &t.Title, &t.Description, &t.Price, &t.Status,
		&deadline, &t.Decision, &t.Version, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err != nil {
		return t, err
	}
	t.ExecutorID = stringPtr(executor)
	t.CompletionDeadline = stringPtr(deadline)
	t.CompletedAt = stringPtr(completed)
	return t, nil
}

func getTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return t, notFound("task", id)
	}
	return t, err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,customer_id,executor_id,title,description,price,status,completion_deadline,decision,version,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CustomerID, nullableStringPtr(t.ExecutorID), t.Title, nullable(t.Description), t.Price, t.Status,
		nullableStringPtr(t.CompletionDeadline), nullable(t.Decision), t.Version, t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

// UpdateTaskTx saves t guarded by its version and bumps the version on success.
func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t *domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET executor_id=?, title=?, description=?, price=?, status=?, completion_deadline=?, decision=?,
version=version+1, updated_at=?, completed_at=? WHERE id=? AND version=?`,
		nullableStringPtr(t.ExecutorID), t.Title, nullable(t.Description), t.Price, t.Status, nullableStringPtr(t.CompletionDeadline),
		nullable(t.Decision), t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID, t.Version)
	if err != nil {
		return err
	}
	if err := conflictOnStale(res, "task", t.ID); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireDeleted(res, "task", id)
}

type TaskFilters struct {
	Status          string
	CustomerID      string
	ExecutorID      string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CustomerID != "" {
		clauses = append(clauses, "customer_id=?")
		args = append(args, f.CustomerID)
	}
	if f.ExecutorID != "" {
		clauses = append(clauses, "executor_id=?")
		args = append(args, f.ExecutorID)
	}
	clauses, args = cursorClause(clauses, args, f.CursorCreatedAt, f.CursorID)
	query := `SELECT ` + taskColumns + ` FROM tasks ` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasksByStatus returns the number of tasks per status, omitting empty ones.
func (r Repo) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[domain.TaskStatus]int{}
	for rows.Next() {
		var s domain.TaskStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
