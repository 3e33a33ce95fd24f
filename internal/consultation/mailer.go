package consultation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Email is the rendered notification handed to the delivery collaborator.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers consultation notifications. Delivery itself is an external
// collaborator; implementations return a provider message id.
type Mailer interface {
	Send(ctx context.Context, email *Email) (string, error)
}

// LogMailer logs the email instead of delivering it. Used in development and
// wherever no delivery provider is configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, email *Email) (string, error) {
	id := uuid.New().String()
	m.log.Infow("consultation email (log delivery)",
		"email_id", id,
		"to", email.To,
		"subject", email.Subject,
		"bytes", len(email.HTML),
	)
	return id, nil
}
