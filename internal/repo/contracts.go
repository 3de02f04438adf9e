package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const contractColumns = `id,task_id,customer_id,executor_id,amount,status,version,created_at,updated_at,closed_at`

func scanContract(s scanner) (domain.Contract, error) {
	var c domain.Contract
	var closed sql.NullString
	err := s.Scan(&c.ID, &c.TaskID, &c.CustomerID, &c.ExecutorID, &c.Amount, &c.Status, &c.Version, &c.CreatedAt, &c.UpdatedAt, &closed)
	if err != nil {
		return c, err
	}
	c.ClosedAt = stringPtr(closed)
	return c, nil
}

func getContract(ctx context.Context, q querier, where string, arg string) (domain.Contract, error) {
	c, err := scanContract(q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE `+where+`=?`, arg))
	if err == sql.ErrNoRows {
		return c, notFound("contract", arg)
	}
	return c, err
}

func (r Repo) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	return getContract(ctx, r.DB, "id", id)
}

func (r Repo) GetContractTx(ctx context.Context, tx *sql.Tx, id string) (domain.Contract, error) {
	return getContract(ctx, tx, "id", id)
}

// GetContractByTaskTx returns the contract bound to taskID, if any.
func (r Repo) GetContractByTaskTx(ctx context.Context, tx *sql.Tx, taskID string) (domain.Contract, error) {
	return getContract(ctx, tx, "task_id", taskID)
}

func (r Repo) InsertContract(ctx context.Context, tx *sql.Tx, c domain.Contract) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO contracts(`+contractColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.TaskID, c.CustomerID, c.ExecutorID, c.Amount, c.Status, c.Version, c.CreatedAt, c.UpdatedAt, nullableStringPtr(c.ClosedAt))
	return err
}

func (r Repo) UpdateContractTx(ctx context.Context, tx *sql.Tx, c *domain.Contract) error {
	res, err := tx.ExecContext(ctx, `UPDATE contracts SET status=?, amount=?, version=version+1, updated_at=?, closed_at=? WHERE id=? AND version=?`,
		c.Status, c.Amount, c.UpdatedAt, nullableStringPtr(c.ClosedAt), c.ID, c.Version)
	if err != nil {
		return err
	}
	if err := conflictOnStale(res, "contract", c.ID); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (r Repo) DeleteContractTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireDeleted(res, "contract", id)
}

type ContractFilters struct {
	Status          string
	TaskID          string
	CustomerID      string
	ExecutorID      string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListContracts(ctx context.Context, f ContractFilters) ([]domain.Contract, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
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
	query := `SELECT ` + contractColumns + ` FROM contracts ` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
