package mailer

import (
	"context"

	"github.com/goliatone/go-expense-tracker/auth"
)

// LogMailer writes activation mails to the logger instead of sending them.
// Used in development where no SMTP relay is around.
type LogMailer struct {
	logger auth.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

func NewLogMailer(logger auth.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendActivation implements auth.Mailer
func (m *LogMailer) SendActivation(_ context.Context, msg auth.ActivationMessage) error {
	m.logger.Info("activation mail",
		"to", msg.To,
		"subject", msg.Subject,
		"link", msg.Link,
	)
	return nil
}
