package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

func (r Repo) InsertTransfer(ctx context.Context, tx *sql.Tx, t domain.WalletTransfer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO wallet_transfers(id,from_party_id,to_party_id,contract_id,amount,reason,created_at) VALUES (?,?,?,?,?,?,?)`,
		t.ID, nullableStringPtr(t.FromPartyID), nullableStringPtr(t.ToPartyID), nullableStringPtr(t.ContractID), t.Amount, t.Reason, t.CreatedAt)
	return err
}

type TransferFilters struct {
	PartyID    string
	ContractID string
	Limit      int
}

// ListTransfers returns transfers touching a party or a contract, newest first.
func (r Repo) ListTransfers(ctx context.Context, f TransferFilters) ([]domain.WalletTransfer, error) {
	var clauses []string
	var args []any
	if f.PartyID != "" {
		clauses = append(clauses, "(from_party_id=? OR to_party_id=?)")
		args = append(args, f.PartyID, f.PartyID)
	}
	if f.ContractID != "" {
		clauses = append(clauses, "contract_id=?")
		args = append(args, f.ContractID)
	}
	query := `SELECT id,from_party_id,to_party_id,contract_id,amount,reason,created_at FROM wallet_transfers ` +
		whereClause(clauses) + ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WalletTransfer
	for rows.Next() {
		var t domain.WalletTransfer
		var from, to, contract sql.NullString
		if err := rows.Scan(&t.ID, &from, &to, &contract, &t.Amount, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.FromPartyID = stringPtr(from)
		t.ToPartyID = stringPtr(to)
		t.ContractID = stringPtr(contract)
		res = append(res, t)
	}
	return res, rows.Err()
}
