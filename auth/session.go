package auth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

const (
	// SessionUserKey holds the authenticated user id inside the session
	SessionUserKey = "auth.user_id"

	// FlashCookieName is the cookie carrying flash messages to the next page
	FlashCookieName = "expense_flash"

	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"

	flashPendingKey  = "auth.flash.pending"
	flashConsumedKey = "auth.flash.consumed"
)

var flashKinds = []string{FlashSuccess, FlashInfo, FlashError}

// SessionConfig holds the cookie and lifetime options of the session store
type SessionConfig interface {
	GetSessionExpiration() time.Duration
	GetSessionCookieName() string
	GetCookieSecure() bool
}

// NewSessionStore builds the fiber session store. A nil storage keeps
// sessions in process memory.
func NewSessionStore(cfg SessionConfig, storage fiber.Storage) *session.Store {
	name := cfg.GetSessionCookieName()
	if name == "" {
		name = "session_id"
	}

	return session.New(session.Config{
		Expiration:     cfg.GetSessionExpiration(),
		Storage:        storage,
		KeyLookup:      "cookie:" + name,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.GetCookieSecure(),
		CookieSameSite: "Lax",
		KeyGenerator:   uuid.NewString,
	})
}

// SessionManager keeps the authenticated identity in a server side session
// and flash messages in a short lived cookie. Every mutating call saves the
// session, callers must not hold on to a session across calls.
type SessionManager struct {
	store *session.Store
	flash flash.Config
}

func NewSessionManager(store *session.Store) *SessionManager {
	return &SessionManager{
		store: store,
		flash: flash.Config{
			Name:     FlashCookieName,
			Path:     "/",
			HTTPOnly: true,
			SameSite: router.CookieSameSiteLaxMode,
		},
	}
}

// Store exposes the underlying fiber store
func (m *SessionManager) Store() *session.Store {
	return m.store
}

// Bind rotates the session id and attaches userID to it
func (m *SessionManager) Bind(c *fiber.Ctx, userID uuid.UUID) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return wrapSessionErr(err, "failed to load session")
	}

	if err := sess.Regenerate(); err != nil {
		return wrapSessionErr(err, "failed to regenerate session")
	}

	sess.Set(SessionUserKey, userID.String())

	if err := sess.Save(); err != nil {
		return wrapSessionErr(err, "failed to save session")
	}

	return nil
}

// UserID returns the id bound to the session, if any
func (m *SessionManager) UserID(c *fiber.Ctx) (uuid.UUID, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return uuid.Nil, wrapSessionErr(err, "failed to load session")
	}

	raw, _ := sess.Get(SessionUserKey).(string)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrUnableToFindSession
	}

	return id, nil
}

// Destroy clears all session data and issues a fresh id. Flashes passed in
// survive the reset.
func (m *SessionManager) Destroy(c *fiber.Ctx, flashes map[string]string) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return wrapSessionErr(err, "failed to load session")
	}

	if err := sess.Reset(); err != nil {
		return wrapSessionErr(err, "failed to reset session")
	}

	for _, kind := range flashKinds {
		if msg, ok := flashes[kind]; ok {
			if err := m.AddFlash(c, kind, msg); err != nil {
				return err
			}
		}
	}

	return nil
}

// AddFlash queues a message for the next rendered page
func (m *SessionManager) AddFlash(c *fiber.Ctx, kind, msg string) error {
	if strings.ContainsRune(msg, 0) {
		return goerrors.New("flash message contains a NUL byte", goerrors.CategoryBadInput).
			WithTextCode("FLASH_INVALID")
	}

	pending := m.pendingFlashes(c)
	pending[fmt.Sprintf("%s.%d", kind, len(pending))] = msg
	c.Locals(flashPendingKey, pending)

	flash.New(m.flash).WithData(router.NewFiberContext(c), pending)
	return nil
}

// ConsumeFlashes returns pending flash messages grouped by kind, in the
// order they were added, and expires the flash cookie.
func (m *SessionManager) ConsumeFlashes(c *fiber.Ctx) (map[string][]string, error) {
	pending := m.pendingFlashes(c)
	c.Locals(flashConsumedKey, true)
	c.Locals(flashPendingKey, router.ViewContext{})

	out := map[string][]string{}
	if len(pending) == 0 {
		return out, nil
	}

	type entry struct {
		idx int
		msg string
	}
	grouped := map[string][]entry{}
	for key, val := range pending {
		kind, n, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		grouped[kind] = append(grouped[kind], entry{idx: idx, msg: fmt.Sprint(val)})
	}

	for _, kind := range flashKinds {
		entries := grouped[kind]
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
		for _, e := range entries {
			out[kind] = append(out[kind], e.msg)
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     m.flash.Name,
		Value:    "",
		Path:     m.flash.Path,
		Expires:  time.Unix(0, 0),
		HTTPOnly: m.flash.HTTPOnly,
		SameSite: m.flash.SameSite,
	})

	return out, nil
}

// pendingFlashes holds messages added during this request. It starts from
// the incoming flash cookie until the messages are consumed.
func (m *SessionManager) pendingFlashes(c *fiber.Ctx) router.ViewContext {
	if pending, ok := c.Locals(flashPendingKey).(router.ViewContext); ok {
		return pending
	}

	pending := router.ViewContext{}
	if consumed, _ := c.Locals(flashConsumedKey).(bool); !consumed && c.Cookies(m.flash.Name) != "" {
		for key, val := range flash.New(m.flash).Get(router.NewFiberContext(c)) {
			pending[key] = val
		}
	}
	return pending
}

func wrapSessionErr(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode("SESSION_STORE_ERROR")
}
