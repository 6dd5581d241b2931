package app

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/goliatone/go-expense-tracker/views"
	"github.com/goliatone/go-logger/glog"
)

// CSRFCookieName holds the token the CSRF middleware compares form posts to
const CSRFCookieName = "csrf_"

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config

	engine := views.NewEngine(cfg.ViewsDir)
	engine.Debug(cfg.Debug)

	srv := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		UnescapePath:          true,
		StrictRouting:         false,
		PassLocalsToViews:     true,
		DisableStartupMessage: true,
		Views:                 engine,
		ViewsLayout:           views.Layout,
		ErrorHandler:          app.renderError,
	})

	srv.Use(recover.New(recover.Config{EnableStackTrace: cfg.Debug}))
	srv.Use(requestid.New())
	srv.Use(requestLogger(app.GetLogger("http")))

	srv.Get("/healthz", func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := app.db.PingContext(pingCtx); err != nil {
			app.logger.Error("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).SendString("unavailable")
		}
		return c.SendString("ok")
	}).Name("healthz")

	if cfg.CSRFEnabled {
		srv.Use(csrf.New(csrf.Config{
			KeyLookup:      "form:" + auth.CSRFFormField,
			CookieName:     CSRFCookieName,
			CookieSameSite: "Lax",
			CookieSecure:   cfg.CookieSecure,
			CookieHTTPOnly: true,
			Expiration:     time.Hour,
			ContextKey:     auth.CSRFContextKey,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				app.GetLogger("http").Warn("csrf check failed", "path", c.Path(), "error", err)
				return app.renderError(c, fiber.NewError(fiber.StatusForbidden, "Invalid or missing CSRF token"))
			},
		}))
	}

	srv.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(cfg.LoginRedirectPath, fiber.StatusFound)
	}).Name("home")

	app.srv = srv

	return nil
}

// renderError is the fallback error page for every handler
func (a *App) renderError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An unexpected server error occurred"

	var fiberErr *fiber.Error
	var richErr *goerrors.Error

	switch {
	case goerrors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case goerrors.As(err, &richErr):
		if richErr.Code != 0 {
			code = richErr.Code
		}
		if code < fiber.StatusInternalServerError {
			message = richErr.Message
		}
	}

	if code >= fiber.StatusInternalServerError {
		a.GetLogger("http").Error("request failed", "error", err, "path", c.OriginalURL())
	}

	var sessions *auth.SessionManager
	if a.auther != nil {
		sessions = a.auther.Sessions()
	}

	return c.Status(code).Render("errors/500", auth.MergeTemplateData(c, sessions, fiber.Map{
		"title":   "Error",
		"status":  code,
		"message": message,
	}))
}

func requestLogger(logger glog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", attrs...)
		default:
			logger.Debug("request", attrs...)
		}

		return nil
	}
}
