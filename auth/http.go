package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionUserLoader resolves the account bound to a session
type SessionUserLoader interface {
	FindActiveUser(ctx context.Context, id uuid.UUID) (*User, error)
}

type RouteAuthenticator struct {
	sessions         *SessionManager
	users            SessionUserLoader
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c *fiber.Ctx, err error) error
	ErrorHandler     func(c *fiber.Ctx, err error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func NewHTTPAuthenticator(sessions *SessionManager, users SessionUserLoader, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		Logger:   defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(l)
	return a
}

// Sessions exposes the session manager
func (a *RouteAuthenticator) Sessions() *SessionManager {
	return a.sessions
}

// Login binds user to a freshly rotated session
func (a *RouteAuthenticator) Login(c *fiber.Ctx, user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}

	if err := a.sessions.Bind(c, user.ID); err != nil {
		a.Logger.Error("Login error", "error", err)
		return err
	}

	setRequestUser(c, user)
	return nil
}

// Logout drops the session unconditionally
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) error {
	c.Locals(LocalsUserKey, nil)
	return a.sessions.Destroy(c, map[string]string{
		FlashSuccess: "You have been logged out",
	})
}

// CurrentUser returns the active user bound to the request session
func (a *RouteAuthenticator) CurrentUser(c *fiber.Ctx) (*User, error) {
	if user, ok := UserFromLocals(c); ok {
		return user, nil
	}

	id, err := a.sessions.UserID(c)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindActiveUser(c.UserContext(), id)
	if err != nil {
		return nil, err
	}

	setRequestUser(c, user)
	return user, nil
}

// OptionalUser loads the session user when there is one, it never fails
func (a *RouteAuthenticator) OptionalUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := a.CurrentUser(c); err != nil && !goerrors.IsCategory(err, goerrors.CategoryAuth) && !goerrors.IsNotFound(err) {
			a.Logger.Warn("failed to resolve optional session user", "error", err)
		}
		return c.Next()
	}
}

// ProtectedRoute rejects requests without an active session user
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := a.CurrentUser(c); err != nil {
			return a.ErrorHandler(c, err)
		}
		return c.Next()
	}
}

// GetRedirect returns and clears the stored post login target
func (a *RouteAuthenticator) GetRedirect(c *fiber.Ctx, def ...string) string {
	fallback := a.cfg.GetLoginRedirectDefault()
	if len(def) > 0 && def[0] != "" {
		fallback = def[0]
	}

	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" {
		return fallback
	}

	a.cookieDel(c, rejectedRoute)

	if !isLocalPath(r) {
		return fallback
	}

	return r
}

// SetRedirect remembers the current URL so login can return to it
func (a *RouteAuthenticator) SetRedirect(c *fiber.Ctx) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&fiber.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "An unexpected authentication error").
			WithCode(goerrors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	if c.Method() == fiber.MethodGet {
		a.SetRedirect(c)
	}

	statusCode := http.StatusSeeOther
	if c.Method() == fiber.MethodGet {
		statusCode = http.StatusFound
	}
	return c.Redirect(a.cfg.GetRejectedRouteDefault(), statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryNotFound:
		return a.AuthErrorHandler(c, richErr)
	}

	a.Logger.Error(
		"Middleware error handler",
		"error", richErr,
		"path", c.OriginalURL(),
	)

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	return c.Status(code).Render("errors/500", fiber.Map{
		"error":   richErr,
		"message": richErr.Message,
	})
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
