package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivationSubject is the subject line of the activation mail
const ActivationSubject = "Activate your ExpenseTracker account"

// DefaultPasswordMinLength is used when the configuration does not set one
const DefaultPasswordMinLength = 6

type RegisterUserMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// BaseURL is the scheme and host of the incoming request, used when
	// no base URL has been configured.
	BaseURL    string                        `json:"-"`
	OnResponse func(*RegisterUserResponse) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the shape of the identity fields. The password length has
// its own error and is checked by the handler.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(1, 150)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
	)
}

type RegisterUserResponse struct {
	User           *User
	ActivationLink string
	// DeliveryErr is set when the account was stored but the activation
	// link could not be handed to the mailer.
	DeliveryErr error
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

type RegisterUserHandler struct {
	repo     RepositoryManager
	tokens   TokenGenerator
	hasher   PasswordAuthenticator
	mailer   Mailer
	cfg      Config
	logger   Logger
	activity ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager, tokens TokenGenerator, mailer Mailer, cfg Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		hasher:   NewBcryptHasher(cfg.GetBcryptCost()),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(l)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(s ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(s)
	return h
}

func (h *RegisterUserHandler) WithHasher(p PasswordAuthenticator) *RegisterUserHandler {
	if p != nil {
		h.hasher = p
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	var user *User
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	username := strings.TrimSpace(event.Username)
	email := strings.TrimSpace(event.Email)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Users().UsernameExistsTx(ctx, tx, username)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
		}
		if taken {
			return ErrUsernameTaken
		}

		taken, err = h.repo.Users().EmailExistsTx(ctx, tx, email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
		}
		if taken {
			return ErrEmailTaken
		}

		if utf8.RuneCountInString(event.Password) < h.minPasswordLength() {
			return ErrPasswordTooShort
		}

		event.Username, event.Email = username, email
		if err := event.Validate(); err != nil {
			return goerrors.FromOzzoValidation(err, "invalid registration")
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user, err = h.repo.Users().RegisterTx(ctx, tx, NewPendingUser(username, email, hash))
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.ID,
		Username:  user.Username,
	})

	resp := &RegisterUserResponse{User: user}
	resp.ActivationLink, resp.DeliveryErr = h.sendActivation(ctx, user, event.BaseURL)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) sendActivation(ctx context.Context, user *User, requestBaseURL string) (string, error) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue activation token", "user_id", user.ID, "error", err)
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue activation token").
			WithTextCode(TextCodeMailDelivery)
	}

	link := ActivationLink(h.baseURL(requestBaseURL), user.ID, token)

	msg := ActivationMessage{
		To:       user.Email,
		Username: user.Username,
		Subject:  ActivationSubject,
		Body:     fmt.Sprintf("Hi %s Please use this link to verify your account\n%s", user.Username, link),
		Link:     link,
	}

	if err := h.mailer.SendActivation(ctx, msg); err != nil {
		h.logger.Error("activation mail delivery failed", "user_id", user.ID, "email", user.Email, "error", err)
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventActivationFailed,
			UserID:    user.ID,
			Username:  user.Username,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return link, goerrors.Wrap(err, goerrors.CategoryExternal, "activation mail delivery failed").
			WithTextCode(TextCodeMailDelivery)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventActivationMailSent,
		UserID:    user.ID,
		Username:  user.Username,
	})

	return link, nil
}

func (h *RegisterUserHandler) minPasswordLength() int {
	if n := h.cfg.GetPasswordMinLength(); n > 0 {
		return n
	}
	return DefaultPasswordMinLength
}

func (h *RegisterUserHandler) baseURL(requestBaseURL string) string {
	if base := h.cfg.GetBaseURL(); base != "" {
		return base
	}
	return requestBaseURL
}

// ActivationLink builds <base>/activate/<uid>/<token>
func ActivationLink(baseURL string, id uuid.UUID, token string) string {
	return fmt.Sprintf("%s/activate/%s/%s", strings.TrimRight(baseURL, "/"), EncodeUID(id), token)
}
