package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/ledger"
	"gigline/internal/repo"
)

const systemActor = "system"

// PartyCreateOptions are parameters for registering a party.
type PartyCreateOptions struct {
	ID     string
	Name   string
	Role   domain.Role
	Status domain.PartyStatus
}

// Bootstrap creates the admin party if it does not exist yet. It needs no caller.
func (e Engine) Bootstrap(ctx context.Context, id, name string) (domain.Party, error) {
	if p, err := e.Repo.GetParty(ctx, id); err == nil {
		return p, nil
	} else if !isNotFound(err) {
		return p, err
	}
	var p domain.Party
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = e.insertParty(ctx, tx, systemActor, PartyCreateOptions{ID: id, Name: name, Role: domain.RoleAdmin, Status: domain.PartyActive})
		return err
	})
	return p, err
}

// CreateParty registers a party. Only admins manage accounts.
func (e Engine) CreateParty(ctx context.Context, opts PartyCreateOptions) (domain.Party, error) {
	var p domain.Party
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		admin, err := e.admin(ctx, tx)
		if err != nil {
			return err
		}
		p, err = e.insertParty(ctx, tx, admin.ID, opts)
		return err
	})
	return p, err
}

func (e Engine) insertParty(ctx context.Context, tx *sql.Tx, actorID string, opts PartyCreateOptions) (domain.Party, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Party{}, domain.Errorf(domain.ErrInvalidInput, "name is required")
	}
	role, err := domain.ParseRole(string(opts.Role))
	if err != nil {
		return domain.Party{}, err
	}
	status := domain.PartyCreated
	if opts.Status != "" {
		if status, err = domain.ParsePartyStatus(string(opts.Status)); err != nil {
			return domain.Party{}, err
		}
	}
	now := e.stamp()
	p := domain.Party{
		ID:        newID(strings.TrimSpace(opts.ID)),
		Name:      strings.TrimSpace(opts.Name),
		Role:      role,
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	initial, err := e.Config.InitialWallet()
	if err != nil {
		return domain.Party{}, domain.Wrap(domain.ErrInternal, "initial wallet", err)
	}
	var grant *domain.WalletTransfer
	if initial.IsPositive() {
		wt, err := ledger.Deposit(&p, initial)
		if err != nil {
			return domain.Party{}, err
		}
		grant = &wt
	}
	if err := e.Repo.InsertParty(ctx, tx, p); err != nil {
		return domain.Party{}, uniqueAs(err, domain.ErrInvalidInput, "party %s already exists", p.ID)
	}
	if grant != nil {
		if _, err := e.saveTransfer(ctx, tx, *grant, now); err != nil {
			return domain.Party{}, err
		}
	}
	err = e.events().Append(ctx, tx, "party.created", "party", p.ID, actorID, events.EventPayload{
		"role":   p.Role,
		"status": p.Status,
		"wallet": p.Wallet.String(),
	})
	return p, err
}

// SetPartyStatus changes a party's account status. A party still referenced by
// an open task or contract cannot be deleted.
func (e Engine) SetPartyStatus(ctx context.Context, partyID string, status domain.PartyStatus) (domain.Party, error) {
	var p domain.Party
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		admin, err := e.admin(ctx, tx)
		if err != nil {
			return err
		}
		target, err := domain.ParsePartyStatus(string(status))
		if err != nil {
			return err
		}
		p, err = e.Repo.GetPartyTx(ctx, tx, partyID)
		if err != nil {
			return err
		}
		if p.ID == admin.ID && target != domain.PartyActive {
			return domain.Errorf(domain.ErrInvalidClientStatus, "admins cannot deactivate themselves")
		}
		if target == domain.PartyDeleted {
			open, err := e.Repo.CountOpenReferencesTx(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if open > 0 {
				return domain.Errorf(domain.ErrInvalidClientStatus, "party %s is referenced by %d open tasks or contracts", p.ID, open)
			}
		}
		from := p.Status
		p.Status = target
		p.UpdatedAt = e.stamp()
		if err := e.Repo.UpdatePartyTx(ctx, tx, &p); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "party.status", "party", p.ID, admin.ID, events.EventPayload{"from": from, "to": p.Status})
	})
	return p, err
}

// Deposit credits funds to a party from outside the marketplace.
func (e Engine) Deposit(ctx context.Context, partyID string, amount decimal.Decimal) (domain.Party, error) {
	var p domain.Party
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		admin, err := e.admin(ctx, tx)
		if err != nil {
			return err
		}
		p, err = e.Repo.GetPartyTx(ctx, tx, partyID)
		if err != nil {
			return err
		}
		if p.Status == domain.PartyDeleted {
			return domain.Errorf(domain.ErrInvalidClientStatus, "party %s is %s", p.ID, p.Status)
		}
		wt, err := ledger.Deposit(&p, amount)
		if err != nil {
			return err
		}
		now := e.stamp()
		p.UpdatedAt = now
		if err := e.Repo.UpdatePartyTx(ctx, tx, &p); err != nil {
			return err
		}
		wt, err = e.saveTransfer(ctx, tx, wt, now)
		if err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "party.deposit", "party", p.ID, admin.ID, events.EventPayload{
			"amount":      amount.String(),
			"wallet":      p.Wallet.String(),
			"transfer_id": wt.ID,
		})
	})
	return p, err
}

// Me returns the calling party.
func (e Engine) Me(ctx context.Context) (domain.Party, error) {
	c, err := e.Auth.CurrentParty(ctx)
	if err != nil {
		return domain.Party{}, domain.Wrap(domain.ErrUnauthenticated, "", err)
	}
	return e.Repo.GetParty(ctx, c.PartyID)
}

func (e Engine) GetParty(ctx context.Context, id string) (domain.Party, error) {
	return e.Repo.GetParty(ctx, id)
}

func (e Engine) ListParties(ctx context.Context, f repo.PartyFilters) ([]domain.Party, error) {
	return e.Repo.ListParties(ctx, f)
}

func (e Engine) ListTransfers(ctx context.Context, f repo.TransferFilters) ([]domain.WalletTransfer, error) {
	return e.Repo.ListTransfers(ctx, f)
}

// LatestEvents returns audit events after the given id, oldest first.
func (e Engine) LatestEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, f)
}

// CreateAPIKey issues a key for partyID and returns it in clear text once.
// Parties manage their own keys; admins manage anyone's.
func (e Engine) CreateAPIKey(ctx context.Context, partyID, name string) (domain.APIKey, string, error) {
	var key domain.APIKey
	raw, err := generateKey()
	if err != nil {
		return key, "", domain.Wrap(domain.ErrInternal, "generate api key", err)
	}
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		caller, err := e.keyManager(ctx, tx, &partyID)
		if err != nil {
			return err
		}
		key = domain.APIKey{
			ID:        newID(""),
			PartyID:   partyID,
			Name:      strings.TrimSpace(name),
			KeyHash:   repo.HashAPIKey(raw),
			CreatedAt: e.stamp(),
		}
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "apikey.created", "party", partyID, caller.ID, events.EventPayload{"key_id": key.ID, "name": key.Name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, partyID string) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.keyManager(ctx, tx, &partyID); err != nil {
			return err
		}
		var err error
		keys, err = e.Repo.ListAPIKeys(ctx, tx, partyID)
		return err
	})
	return keys, err
}

// RevokeAPIKey deletes one of partyID's keys.
func (e Engine) RevokeAPIKey(ctx context.Context, partyID, keyID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		caller, err := e.keyManager(ctx, tx, &partyID)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteAPIKey(ctx, tx, partyID, keyID); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "apikey.revoked", "party", partyID, caller.ID, events.EventPayload{"key_id": keyID})
	})
}

// keyManager returns the active caller if it may manage partyID's keys.
// An empty partyID means the caller's own.
func (e Engine) keyManager(ctx context.Context, tx *sql.Tx, partyID *string) (domain.Party, error) {
	caller, err := e.activeCaller(ctx, tx)
	if err != nil {
		return caller, err
	}
	if *partyID == "" {
		*partyID = caller.ID
	}
	if caller.ID != *partyID && caller.Role != domain.RoleAdmin {
		return caller, domain.Errorf(domain.ErrUnavailableRoleOperation, "party %s cannot manage keys of %s", caller.ID, *partyID)
	}
	if _, err := e.Repo.GetPartyTx(ctx, tx, *partyID); err != nil {
		return caller, err
	}
	return caller, nil
}

func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "gk_" + hex.EncodeToString(b), nil
}
