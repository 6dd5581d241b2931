package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateUserSQL flips the active flag once, the WHERE clause keeps the
// update idempotent when two activations race.
var ActivateUserSQL = `UPDATE "users"
SET
	"is_active" = TRUE,
	"updated_at" = ?
WHERE
	"id" = ?
AND "is_active" = FALSE;`

var TrackLoginSQL = `UPDATE "users"
SET
	"last_login_at" = ?,
	"updated_at" = ?
WHERE
	"id" = ?;`

type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UsernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	Activate(ctx context.Context, user *User) (bool, error)
	ActivateTx(ctx context.Context, tx bun.IDB, user *User) (bool, error)

	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	user, err := a.Repository.GetTx(ctx, tx, repository.SelectBy("username", "=", strings.TrimSpace(username)))
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return nil, persistence.NewRecordNotFound().WithMetadata(map[string]any{
				"username": username,
			})
		}
		return nil, err
	}
	return user, nil
}

func (a *users) UsernameExists(ctx context.Context, username string) (bool, error) {
	return a.UsernameExistsTx(ctx, a.db, username)
}

func (a *users) UsernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return a.existsTx(ctx, tx, repository.SelectBy("username", "=", username))
}

func (a *users) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.EmailExistsTx(ctx, a.db, email)
}

func (a *users) EmailExistsTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return a.existsTx(ctx, tx, repository.SelectBy("email", "=", email))
}

func (a *users) existsTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (bool, error) {
	criteria = append(criteria, repository.SelectColumns("id"))
	_, err := a.Repository.GetTx(ctx, tx, criteria...)
	switch {
	case err == nil:
		return true, nil
	case persistence.IsRecordNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx stores a new account. Unique violations raised by the store are
// translated to the same errors the up front checks produce.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err == nil {
		return record, nil
	}

	if persistence.IsDuplicateRecord(err) {
		constraint := persistence.ViolatedConstraint(err)
		switch {
		case strings.Contains(constraint, "email"):
			return nil, ErrEmailTaken
		default:
			return nil, ErrUsernameTaken
		}
	}

	return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store user")
}

func (a *users) Activate(ctx context.Context, user *User) (bool, error) {
	return a.ActivateTx(ctx, a.db, user)
}

// ActivateTx returns true when this call changed the flag
func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, user *User) (bool, error) {
	now := time.Now().UTC()
	res, err := tx.NewRaw(ActivateUserSQL, now, user.ID).Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if n > 0 {
		user.IsActive = true
		user.UpdatedAt = &now
	}

	return n > 0, nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := time.Now().UTC()
	if _, err := tx.NewRaw(TrackLoginSQL, loggedInAt, loggedInAt, user.ID).Exec(ctx); err != nil {
		return err
	}
	user.LastLoginAt = &loggedInAt
	return nil
}
