package auth_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testUserID returns a stable id so fixtures can refer to users by number
func testUserID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
}

type testConfig struct {
	baseURL string
	minLen  int
	ttl     time.Duration
}

func (c testConfig) GetSecretKey() string                 { return testSecret }
func (c testConfig) GetBaseURL() string                   { return c.baseURL }
func (c testConfig) GetIssuer() string                    { return "expense-tracker-test" }
func (c testConfig) GetActivationTokenTTL() time.Duration { return c.ttl }
func (c testConfig) GetPasswordMinLength() int            { return c.minLen }
func (c testConfig) GetBcryptCost() int                   { return 4 }
func (c testConfig) GetRejectedRouteKey() string          { return "login_redirect" }
func (c testConfig) GetRejectedRouteDefault() string      { return "/login" }
func (c testConfig) GetLoginRedirectDefault() string      { return "/expenses" }
func (c testConfig) GetCookieSecure() bool                { return false }
func (c testConfig) GetSessionExpiration() time.Duration  { return time.Hour }
func (c testConfig) GetSessionCookieName() string         { return "session_id" }

func defaultConfig() testConfig {
	return testConfig{
		baseURL: "https://expenses.example.com",
		minLen:  6,
		ttl:     time.Hour,
	}
}

type dbConfig struct {
	dsn string
}

func (c dbConfig) GetDatabaseDriver() string { return persistence.DriverSQLite }
func (c dbConfig) GetDatabaseDSN() string    { return c.dsn }
func (c dbConfig) GetDatabaseDebug() bool    { return false }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, dbConfig{dsn: "file:" + filepath.Join(t.TempDir(), "auth.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = persistence.Migrate(ctx, db)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()
	repo := auth.NewRepositoryManager(newTestDB(t))
	repo.MustValidate()
	return repo
}

func newTestTokens(t *testing.T, opts ...auth.ActivationTokensOption) *auth.ActivationTokens {
	t.Helper()
	tokens, err := auth.NewActivationTokens(testSecret, append([]auth.ActivationTokensOption{
		auth.WithTokenIssuer("expense-tracker-test"),
	}, opts...)...)
	require.NoError(t, err)
	return tokens
}

type outbox struct {
	mu   sync.Mutex
	msgs []auth.ActivationMessage
	err  error
}

func (o *outbox) SendActivation(_ context.Context, msg auth.ActivationMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) sent() []auth.ActivationMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]auth.ActivationMessage(nil), o.msgs...)
}

type capturedEvents struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturedEvents) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturedEvents) types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.NewBcryptHasher(4).HashPassword(password)
	require.NoError(t, err)
	return hash
}
