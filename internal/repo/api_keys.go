package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gigline/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.PartyID == "" {
		return errors.New("party_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	var q querier = r.DB
	if tx != nil {
		q = tx
	}
	if key.CreatedAt == "" {
		key.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO api_keys(id, party_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.PartyID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

// GetAPIKeyByHash returns an API key by its hashed value.
func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	key, err := scanAPIKey(r.DB.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=? LIMIT 1`, hash))
	if err == sql.ErrNoRows {
		return domain.APIKey{}, notFound("api key", "")
	}
	return key, err
}

// ListAPIKeys returns API keys, optionally restricted to one party.
func (r Repo) ListAPIKeys(ctx context.Context, q querier, partyID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if partyID != "" {
		query += ` WHERE party_id=?`
		args = append(args, partyID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteAPIKey revokes one of partyID's keys.
func (r Repo) DeleteAPIKey(ctx context.Context, tx *sql.Tx, partyID, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Errorf(domain.ErrInvalidInput, "api key id required")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM api_keys WHERE id=? AND party_id=?`, id, partyID)
	if err != nil {
		return err
	}
	return requireDeleted(res, "api key", id)
}

const apiKeyColumns = `id, party_id, COALESCE(name,''), key_hash, created_at`

func scanAPIKey(s scanner) (domain.APIKey, error) {
	var key domain.APIKey
	err := s.Scan(&key.ID, &key.PartyID, &key.Name, &key.KeyHash, &key.CreatedAt)
	return key, err
}
