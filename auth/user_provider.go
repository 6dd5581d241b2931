package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// UserProvider handles users
type UserProvider struct {
	store    UserTracker
	hasher   PasswordAuthenticator
	logger   Logger
	activity ActivitySink
}

var _ CredentialsVerifier = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:    store,
		hasher:   BcryptHasher{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

func (u *UserProvider) WithHasher(h PasswordAuthenticator) *UserProvider {
	if h != nil {
		u.hasher = h
	}
	return u
}

func (u *UserProvider) WithActivitySink(s ActivitySink) *UserProvider {
	u.activity = normalizeActivitySink(s)
	return u
}

// VerifyCredentials resolves the account for a login attempt. Unknown
// usernames and wrong passwords produce the same error. Inactive accounts
// are rejected before the password is looked at.
func (u *UserProvider) VerifyCredentials(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := u.store.GetByUsername(ctx, username)
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			u.recordFailure(ctx, uuid.Nil, username, "unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if !user.IsActive {
		u.recordFailure(ctx, user.ID, username, "inactive")
		return nil, ErrAccountInactive
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrInvalidCredentials) {
			u.recordFailure(ctx, user.ID, username, "bad_password")
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login", "user_id", user.ID, "error", err)
	}

	recordActivity(ctx, u.activity, u.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID,
		Username:  user.Username,
	})

	return user, nil
}

// FindActiveUser loads the account bound to a session
func (u *UserProvider) FindActiveUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := u.store.GetByID(ctx, id.String())
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session user")
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	return user, nil
}

func (u *UserProvider) recordFailure(ctx context.Context, id uuid.UUID, username, reason string) {
	recordActivity(ctx, u.activity, u.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    id,
		Username:  username,
		Metadata:  map[string]any{"reason": reason},
	})
}
