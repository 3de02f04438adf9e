package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const partyColumns = `id,name,role,status,wallet,version,created_at,updated_at`

func scanParty(s scanner) (domain.Party, error) {
	var p domain.Party
	err := s.Scan(&p.ID, &p.Name, &p.Role, &p.Status, &p.Wallet, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func getParty(ctx context.Context, q querier, id string) (domain.Party, error) {
	p, err := scanParty(q.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM parties WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return p, notFound("party", id)
	}
	return p, err
}

func (r Repo) GetParty(ctx context.Context, id string) (domain.Party, error) {
	return getParty(ctx, r.DB, id)
}

func (r Repo) GetPartyTx(ctx context.Context, tx *sql.Tx, id string) (domain.Party, error) {
	return getParty(ctx, tx, id)
}

func (r Repo) InsertParty(ctx context.Context, tx *sql.Tx, p domain.Party) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO parties(`+partyColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Role, p.Status, p.Wallet, p.Version, p.CreatedAt, p.UpdatedAt)
	return err
}

// UpdatePartyTx saves p if nobody changed it since it was read and bumps its version.
func (r Repo) UpdatePartyTx(ctx context.Context, tx *sql.Tx, p *domain.Party) error {
	res, err := tx.ExecContext(ctx, `UPDATE parties SET name=?, role=?, status=?, wallet=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		p.Name, p.Role, p.Status, p.Wallet, p.UpdatedAt, p.ID, p.Version)
	if err != nil {
		return err
	}
	if err := conflictOnStale(res, "party", p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

// CountOpenReferencesTx counts non-terminal tasks and contracts that reference partyID.
func (r Repo) CountOpenReferencesTx(ctx context.Context, tx *sql.Tx, partyID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
SELECT
  (SELECT count(*) FROM tasks WHERE (customer_id=? OR executor_id=?) AND status NOT IN ('DONE','CANCELED')) +
  (SELECT count(*) FROM contracts WHERE (customer_id=? OR executor_id=?) AND status='PAID')`,
		partyID, partyID, partyID, partyID).Scan(&n)
	return n, err
}

type PartyFilters struct {
	Role            string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListParties(ctx context.Context, f PartyFilters) ([]domain.Party, error) {
	var clauses []string
	var args []any
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	clauses, args = cursorClause(clauses, args, f.CursorCreatedAt, f.CursorID)
	query := `SELECT ` + partyColumns + ` FROM parties ` + whereClause(clauses) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
