package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-expense-tracker/app"
	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/config"
	"github.com/goliatone/go-expense-tracker/logging"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mailbox struct {
	mu   sync.Mutex
	msgs []auth.ActivationMessage
	fail error
}

func (m *mailbox) SendActivation(_ context.Context, msg auth.ActivationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailbox) last(t *testing.T) auth.ActivationMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.msgs, "no activation message was sent")
	return m.msgs[len(m.msgs)-1]
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Addr:               ":0",
		AppName:            "ExpenseTracker",
		SecretKey:          testSecret,
		Issuer:             "expense-tracker-test",
		Env:                "test",
		LogLevel:           "error",
		LogFormat:          "json",
		DatabaseDriver:     "sqlite",
		DatabaseDSN:        "file:" + filepath.Join(t.TempDir(), "app.db"),
		SessionCookieName:  "session_id",
		SessionExpiration:  time.Hour,
		ActivationTokenTTL: time.Hour,
		PasswordMinLength:  6,
		BcryptCost:         4,
		RejectedRouteKey:   "login_redirect",
		LoginPath:          "/login",
		LoginRedirectPath:  "/expenses",
		ShutdownTimeout:    time.Second,
		MailDriver:         "log",
		MailFrom:           "noreply@example.com",
	}
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) (*app.App, *mailbox) {
	t.Helper()

	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}

	box := &mailbox{}
	logger := logging.Discard()

	a, err := app.New(context.Background(), cfg, logger, app.WithMailer(box))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})

	return a, box
}

// client is a browser stand in that keeps cookies between requests
type client struct {
	t       *testing.T
	srv     *fiber.App
	cookies map[string]string
}

func newClient(t *testing.T, a *app.App) *client {
	return &client{t: t, srv: a.Server(), cookies: map[string]string{}}
}

type response struct {
	Status   int
	Location string
	Body     string
	Cookies  []*http.Cookie
}

func (c *client) do(method, path string, form url.Values) response {
	c.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	res, err := c.srv.Test(req, -1)
	require.NoError(c.t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)

	for _, ck := range res.Cookies() {
		expired := !ck.Expires.IsZero() && ck.Expires.Before(time.Now())
		if ck.Value == "" || ck.MaxAge < 0 || expired {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}

	return response{
		Status:   res.StatusCode,
		Location: res.Header.Get(fiber.HeaderLocation),
		Body:     string(raw),
		Cookies:  res.Cookies(),
	}
}

func (c *client) get(path string) response {
	c.t.Helper()
	return c.do(fiber.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) response {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if token, ok := c.cookies[app.CSRFCookieName]; ok && form.Get(auth.CSRFFormField) == "" {
		form.Set(auth.CSRFFormField, token)
	}
	return c.do(fiber.MethodPost, path, form)
}

func (c *client) register(username, email, password string) response {
	c.t.Helper()
	return c.post("/register", url.Values{
		"username": {username},
		"email":    {email},
		"password": {password},
	})
}

func (c *client) login(username, password string) response {
	c.t.Helper()
	return c.post("/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

// activationPath strips scheme and host from an activation link
func activationPath(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Path
}

// activeUser stores an already activated account
func activeUser(t *testing.T, a *app.App, username, password string) *auth.User {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.NewBcryptHasher(4).HashPassword(password)
	require.NoError(t, err)

	user, err := a.Repository().Users().Register(ctx, auth.NewPendingUser(username, username+"@example.com", hash))
	require.NoError(t, err)

	changed, err := a.Repository().Users().Activate(ctx, user)
	require.NoError(t, err)
	require.True(t, changed)

	return user
}

func loggedIn(t *testing.T, a *app.App, username, password string) *client {
	t.Helper()
	c := newClient(t, a)
	res := c.login(username, password)
	require.Equal(t, fiber.StatusFound, res.Status, res.Body)
	return c
}
