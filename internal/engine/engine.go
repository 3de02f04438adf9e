package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gigline/internal/auth"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/notify"
	"gigline/internal/repo"
)

// Engine is the lifecycle orchestrator. Every mutating operation resolves the
// caller, runs in one serializable transaction and either commits all of its
// task, contract, wallet and event rows or none of them.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Authenticator
	Notifier notify.Notifier
	Config   *config.Config
	Logger   *log.Logger
	Now      func() time.Time
}

func New(conn *sql.DB, cfg *config.Config, a auth.Authenticator, n notify.Notifier) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if a == nil {
		a = auth.ContextAuthenticator{}
	}
	if n == nil {
		n = notify.Nop{}
	}
	return Engine{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Events:   events.Writer{},
		Auth:     a,
		Notifier: n,
		Config:   cfg,
		Logger:   log.Default(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// inTx runs fn in a write transaction and classifies whatever fails.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, db.WriteTx())
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsDomain(err):
		return err
	case db.IsConflict(err):
		return domain.Wrap(domain.ErrConcurrentModification, "write conflict", err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.ErrConcurrentModification, "transaction timed out", err)
	default:
		return domain.Wrap(domain.ErrInternal, "", err)
	}
}

// caller loads the acting party inside tx. The stored row decides role and
// status, whatever the credential claims.
func (e Engine) caller(ctx context.Context, tx *sql.Tx) (domain.Party, error) {
	if e.Auth == nil {
		return domain.Party{}, domain.Errorf(domain.ErrUnauthenticated, "no authenticator configured")
	}
	c, err := e.Auth.CurrentParty(ctx)
	if err != nil {
		return domain.Party{}, domain.Wrap(domain.ErrUnauthenticated, "", err)
	}
	p, err := e.Repo.GetPartyTx(ctx, tx, c.PartyID)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return domain.Party{}, domain.Errorf(domain.ErrUnauthenticated, "unknown party %s", c.PartyID)
	}
	if err != nil {
		return domain.Party{}, err
	}
	if p.Status == domain.PartyDeleted {
		return domain.Party{}, domain.Errorf(domain.ErrInvalidClientStatus, "party %s is %s", p.ID, p.Status)
	}
	return p, nil
}

// activeCaller is caller plus the blanket rule that blocked parties cannot mutate anything.
func (e Engine) activeCaller(ctx context.Context, tx *sql.Tx) (domain.Party, error) {
	p, err := e.caller(ctx, tx)
	if err != nil {
		return p, err
	}
	if p.Blocked() {
		return p, domain.Errorf(domain.ErrInvalidClientStatus, "party %s is %s", p.ID, p.Status)
	}
	return p, nil
}

// admin requires an active ADMIN caller.
func (e Engine) admin(ctx context.Context, tx *sql.Tx) (domain.Party, error) {
	p, err := e.activeCaller(ctx, tx)
	if err != nil {
		return p, err
	}
	if p.Role != domain.RoleAdmin {
		return p, domain.Errorf(domain.ErrUnavailableRoleOperation, "%s cannot administer parties", p.Role)
	}
	return p, nil
}

func (e Engine) saveTransfer(ctx context.Context, tx *sql.Tx, wt domain.WalletTransfer, now string) (domain.WalletTransfer, error) {
	wt.ID = uuid.NewString()
	wt.CreatedAt = now
	return wt, e.Repo.InsertTransfer(ctx, tx, wt)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func checkVersion(kind, id string, expected, actual int64) error {
	if expected > 0 && expected != actual {
		return domain.Errorf(domain.ErrConcurrentModification, "%s %s is at version %d, not %d", kind, id, actual, expected)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrEntityNotFound)
}

// uniqueAs reclassifies a unique-constraint failure; other errors pass through.
func uniqueAs(err error, kind error, format string, args ...any) error {
	if db.IsUniqueViolation(err) {
		return domain.Wrap(kind, fmt.Sprintf(format, args...), err)
	}
	return err
}
