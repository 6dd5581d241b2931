package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the logging surface used across the package, glog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSecretKey() string
	GetBaseURL() string
	GetIssuer() string
	GetActivationTokenTTL() time.Duration
	GetPasswordMinLength() int
	GetBcryptCost() int
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetLoginRedirectDefault() string
	GetCookieSecure() bool
}

// HTTPAuthenticator manages the session bound identity for a request
type HTTPAuthenticator interface {
	Login(c *fiber.Ctx, user *User) error
	Logout(c *fiber.Ctx) error
	CurrentUser(c *fiber.Ctx) (*User, error)
	ProtectedRoute() fiber.Handler
	SetRedirect(c *fiber.Ctx)
	GetRedirect(c *fiber.Ctx, def ...string) string
	Sessions() *SessionManager
}

// CredentialsVerifier checks username and password pairs
type CredentialsVerifier interface {
	VerifyCredentials(ctx context.Context, username, password string) (*User, error)
}

// TokenGenerator issues and checks account activation tokens
type TokenGenerator interface {
	Issue(user *User) (string, error)
	Validate(user *User, token string) bool
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// ActivationMessage is the mail handed to the Mailer on registration
type ActivationMessage struct {
	To       string
	Username string
	Subject  string
	Body     string
	Link     string
}

// Mailer delivers activation messages
type Mailer interface {
	SendActivation(ctx context.Context, msg ActivationMessage) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
