package mailer

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-expense-tracker/auth"
	"github.com/wneessen/go-mail"
)

// Config holds the outbound mail options
type Config interface {
	GetMailFrom() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPTLS() string
	GetSMTPTimeout() time.Duration
}

// Sender delivers a prepared message, *mail.Client satisfies it
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends activation mails through an SMTP relay
type SMTPMailer struct {
	from   string
	sender Sender
	logger auth.Logger
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds the go-mail client from cfg
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithTLSPortPolicy(tlsPolicy(cfg.GetSMTPTLS())),
	}

	if timeout := cfg.GetSMTPTimeout(); timeout > 0 {
		opts = append(opts, mail.WithTimeout(timeout))
	}

	if cfg.GetSMTPUsername() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
			mail.WithUsername(cfg.GetSMTPUsername()),
			mail.WithPassword(cfg.GetSMTPPassword()),
		)
	}

	client, err := mail.NewClient(cfg.GetSMTPHost(), opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid SMTP configuration")
	}

	return NewSMTPMailerWithSender(cfg.GetMailFrom(), client), nil
}

// NewSMTPMailerWithSender uses an already configured sender
func NewSMTPMailerWithSender(from string, sender Sender) *SMTPMailer {
	return &SMTPMailer{
		from:   from,
		sender: sender,
	}
}

func (m *SMTPMailer) WithLogger(l auth.Logger) *SMTPMailer {
	m.logger = l
	return m
}

// SendActivation implements auth.Mailer
func (m *SMTPMailer) SendActivation(ctx context.Context, msg auth.ActivationMessage) error {
	message, err := BuildMessage(m.from, msg)
	if err != nil {
		return err
	}

	if err := m.sender.DialAndSendWithContext(ctx, message); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "smtp delivery failed").
			WithTextCode(auth.TextCodeMailDelivery).
			WithMetadata(map[string]any{"to": msg.To})
	}

	if m.logger != nil {
		m.logger.Debug("activation mail sent", "to", msg.To)
	}

	return nil
}

// BuildMessage renders an activation message as a plain text mail
func BuildMessage(from string, msg auth.ActivationMessage) (*mail.Msg, error) {
	message := mail.NewMsg()

	if err := message.From(from); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sender address").
			WithTextCode("INVALID_SENDER")
	}

	if err := message.To(msg.To); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient address").
			WithTextCode("INVALID_RECIPIENT")
	}

	message.Subject(msg.Subject)
	message.SetDate()
	message.SetMessageID()
	message.SetBodyString(mail.TypeTextPlain, msg.Body)

	return message, nil
}

func tlsPolicy(v string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "mandatory", "required", "starttls":
		return mail.TLSMandatory
	case "none", "off", "disabled":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}
