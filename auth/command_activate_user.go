package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-expense-tracker/persistence"
	"github.com/uptrace/bun"
)

// ActivationResult is the outcome of following an activation link
type ActivationResult int

const (
	// ActivationNotFound the encoded identity does not decode to a known account
	ActivationNotFound ActivationResult = iota
	// ActivationInvalidToken the token is forged, expired or already used
	ActivationInvalidToken
	// ActivationAlreadyActive the account was active before this request
	ActivationAlreadyActive
	// ActivationOK the account was activated by this request
	ActivationOK
)

func (r ActivationResult) String() string {
	switch r {
	case ActivationOK:
		return "ok"
	case ActivationAlreadyActive:
		return "already_active"
	case ActivationInvalidToken:
		return "invalid_token"
	default:
		return "not_found"
	}
}

type ActivateUserMessage struct {
	UID        string `json:"uid"`
	Token      string `json:"token"`
	OnResponse func(*ActivateUserResponse)
}

func (e ActivateUserMessage) Type() string { return "user.activate" }

func (e ActivateUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UID, validation.Required),
		validation.Field(&e.Token, validation.Required),
	)
}

type ActivateUserResponse struct {
	Result ActivationResult
	User   *User
}

var _ command.Commander[ActivateUserMessage] = (*ActivateUserHandler)(nil)

type ActivateUserHandler struct {
	repo     RepositoryManager
	tokens   TokenGenerator
	logger   Logger
	activity ActivitySink
}

func NewActivateUserHandler(repo RepositoryManager, tokens TokenGenerator) *ActivateUserHandler {
	return &ActivateUserHandler{
		repo:     repo,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *ActivateUserHandler) WithLogger(l Logger) *ActivateUserHandler {
	h.logger = normalizeLogger(l)
	return h
}

func (h *ActivateUserHandler) WithActivitySink(s ActivitySink) *ActivateUserHandler {
	h.activity = normalizeActivitySink(s)
	return h
}

// Execute never activates on ambiguous input. Decode failures and unknown
// accounts end in ActivationNotFound, storage failures are returned as errors.
func (h *ActivateUserHandler) Execute(ctx context.Context, event ActivateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateUserHandler) execute(ctx context.Context, event ActivateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ActivateUserResponse{Result: ActivationNotFound}
	respond := func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}

	if err := event.Validate(); err != nil {
		h.logger.Debug("incomplete activation link", "error", err)
		respond()
		return nil
	}

	id, err := DecodeUID(event.UID)
	if err != nil {
		h.logger.Debug("activation link with undecodable uid", "uid", event.UID)
		respond()
		return nil
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIDTx(ctx, tx, id.String())
		if err != nil {
			if persistence.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for activation")
		}
		resp.User = user

		if !h.tokens.Validate(user, event.Token) {
			resp.Result = ActivationInvalidToken
			return nil
		}

		if user.IsActive {
			resp.Result = ActivationAlreadyActive
			return nil
		}

		changed, err := h.repo.Users().ActivateTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
		}

		if changed {
			resp.Result = ActivationOK
		} else {
			resp.Result = ActivationAlreadyActive
		}

		return nil
	})

	if err != nil {
		resp.Result = ActivationNotFound
		resp.User = nil
		return err
	}

	evt := ActivityEvent{
		EventType: ActivityEventUserActivated,
		UserID:    id,
		Metadata:  map[string]any{"result": resp.Result.String()},
	}
	if resp.Result != ActivationOK {
		evt.EventType = ActivityEventActivationFailed
	}
	if resp.User != nil {
		evt.Username = resp.User.Username
	}
	recordActivity(ctx, h.activity, h.logger, evt)

	respond()
	return nil
}
