package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
)

func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).Name("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")

	app.Post(controller.Routes.Logout, controller.LogOut).Name("sign-out.post")

	app.Get(controller.Routes.Register, controller.RegistrationShow).Name("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")

	app.Get(fmt.Sprintf("%s/:uid/:token", controller.Routes.Activate), controller.Activate).
		Name("activate.get")

	return controller
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	Register string
	Activate string
}

type AuthControllerViews struct {
	Login    string
	Register string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	Auther       HTTPAuthenticator
	Credentials  CredentialsVerifier
	Tokens       TokenGenerator
	Mailer       Mailer
	Config       Config
	Activity     ActivitySink
	Runner       *runner.Handler
	ErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerRepository(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerCredentials(v CredentialsVerifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Credentials = v
		return c
	}
}

func WithControllerTokens(t TokenGenerator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = t
		return c
	}
}

func WithControllerMailer(m Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = m
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithControllerActivitySink(s ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(s)
		return c
	}
}

// WithControllerRunner sets the runner the register and activate commands
// are executed with
func WithControllerRunner(r *runner.Handler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Runner = r
		return c
	}
}

func WithControllerErrorHandler(h fiber.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		Activity:     noopActivitySink{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Logout:   "/logout",
			Register: "/register",
			Activate: "/activate",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Credentials == nil {
		panic("Missing CredentialsVerifier in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenGenerator in auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Runner == nil {
		c.Runner = NewCommandRunner(c.Logger)
	}

	return c
}

// NewCommandRunner returns the runner used for the controller commands.
// Failures are returned to the caller, the runner only traces them.
func NewCommandRunner(logger Logger) *runner.Handler {
	logger = normalizeLogger(logger)
	return runner.NewHandler(
		runner.WithTimeout(10*time.Second),
		runner.WithErrorHandler(func(err error) {
			logger.Debug("command failed", "error", err)
		}),
		runner.WithDoneHandler(nil),
	)
}

func (a *AuthController) render(ctx *fiber.Ctx, view string, data fiber.Map) error {
	return ctx.Render(view, MergeTemplateData(ctx, a.Auther.Sessions(), data))
}

func (a *AuthController) LoginShow(ctx *fiber.Ctx) error {
	return a.render(ctx, a.Views.Login, fiber.Map{
		"errors": nil,
		"record": LoginRequest{},
	})
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := ctx.BodyParser(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse login form").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.loginRejected(ctx, payload, ErrMissingCredentials)
	}

	user, err := a.Credentials.VerifyCredentials(ctx.UserContext(), payload.Username, payload.Password)
	if err != nil {
		if goerrors.IsValidation(err) || goerrors.IsAuth(err) {
			return a.loginRejected(ctx, payload, err)
		}
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Auther.Login(ctx, user); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	redirect := a.Auther.GetRedirect(ctx)

	a.Logger.Debug("login redirect", "user_id", user.ID, "to", redirect)

	return ctx.Redirect(redirect, fiber.StatusFound)
}

func (a *AuthController) loginRejected(ctx *fiber.Ctx, payload *LoginRequest, err error) error {
	message := ErrInvalidCredentials.Message
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		message = richErr.Message
	}

	a.Logger.Info("login rejected", "username", payload.Username, "error", err)

	return a.render(ctx, a.Views.Login, fiber.Map{
		"errors": map[string]string{"authentication": message},
		"record": LoginRequest{Username: payload.Username},
	})
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	user, _ := a.Auther.CurrentUser(ctx)
	if err := a.Auther.Logout(ctx); err != nil {
		a.Logger.Error("logout failed", "error", err)
	}

	evt := ActivityEvent{EventType: ActivityEventLogout}
	if user != nil {
		evt.UserID = user.ID
		evt.Username = user.Username
	}
	recordActivity(ctx.UserContext(), a.Activity, a.Logger, evt)

	return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
}

func (a *AuthController) RegistrationShow(ctx *fiber.Ctx) error {
	return a.render(ctx, a.Views.Register, fiber.Map{
		"errors": map[string]string{},
		"record": RegistrationCreatePayload{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *AuthController) RegistrationCreate(ctx *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Register, MergeTemplateData(ctx, a.Auther.Sessions(), fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		}))
	}

	var res *RegisterUserResponse
	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		BaseURL:  ctx.BaseURL(),
		OnResponse: func(r *RegisterUserResponse) {
			res = r
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens, a.Mailer, a.Config).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := runner.RunCommand(ctx.UserContext(), a.Runner, registerUser, req); err != nil {
		if !goerrors.IsValidation(err) {
			return a.ErrorHandler(ctx, err)
		}

		data := fiber.Map{
			"record": RegistrationCreatePayload{Username: payload.Username, Email: payload.Email},
			"errors": map[string]string{},
		}

		var richErr *goerrors.Error
		message := err.Error()
		if goerrors.As(err, &richErr) {
			message = richErr.Message
			if fields := richErr.ValidationMap(); len(fields) > 0 {
				a.Logger.Info("register user invalid fields", "error", err)
				data["validation"] = fields
				return a.render(ctx, a.Views.Register, data)
			}
		}

		data["errors"] = map[string]string{"registration": message}
		return a.render(ctx, a.Views.Register, data)
	}

	data := fiber.Map{
		"record":     RegistrationCreatePayload{},
		"errors":     map[string]string{},
		"registered": true,
		"message":    "Account successfully created, check your email to activate it",
	}

	if res != nil && res.DeliveryErr != nil {
		data["delivery_warning"] = "We could not send the activation email, please try again later"
	}

	if a.Debug && res != nil {
		a.Logger.Debug("activation link", "link", res.ActivationLink)
	}

	return a.render(ctx, a.Views.Register, data)
}

func (a *AuthController) Activate(ctx *fiber.Ctx) error {
	var res *ActivateUserResponse
	req := ActivateUserMessage{
		UID:   ctx.Params("uid"),
		Token: ctx.Params("token"),
		OnResponse: func(r *ActivateUserResponse) {
			res = r
		},
	}

	activate := NewActivateUserHandler(a.Repo, a.Tokens).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity)

	if err := runner.RunCommand(ctx.UserContext(), a.Runner, activate, req); err != nil {
		a.Logger.Error("account activation failed", "error", err)
		return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
	}

	if res != nil {
		if kind, msg := activationFlash(res.Result); msg != "" {
			if err := a.Auther.Sessions().AddFlash(ctx, kind, msg); err != nil {
				a.Logger.Warn("failed to store activation flash", "error", err)
			}
		}
	}

	return ctx.Redirect(a.Routes.Login, fiber.StatusFound)
}

func activationFlash(result ActivationResult) (string, string) {
	switch result {
	case ActivationOK:
		return FlashSuccess, "Account activated successfully"
	case ActivationAlreadyActive:
		return FlashInfo, "User already activated"
	case ActivationInvalidToken:
		return FlashError, "Activation link is invalid or has already been used"
	default:
		return "", ""
	}
}

// FormatValidationErrorToMap flattens ozzo errors to field => message
func FormatValidationErrorToMap(err error) map[string]string {
	if err == nil {
		return map[string]string{}
	}
	return goerrors.FromOzzoValidation(err, "invalid form").ValidationMap()
}

func defaultErrHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		code = richErr.Code
	}
	return c.Status(code).Render("errors/500", fiber.Map{
		"message": err.Error(),
	})
}
