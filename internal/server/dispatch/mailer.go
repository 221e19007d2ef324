package dispatch

import (
	"context"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

// Message is one outgoing email.
type Message struct {
	To             string
	Kind           models.NotificationKind
	Subject        string
	Body           string
	TargetURL      string
	UnsubscribeURL string
}

// Mailer delivers messages. Send may be retried, so it should tolerate
// duplicate delivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info(ctx, "email",
		"to", msg.To,
		"kind", string(msg.Kind),
		"subject", msg.Subject,
		"target", msg.TargetURL,
		"unsubscribe", msg.UnsubscribeURL,
	)
	return nil
}
