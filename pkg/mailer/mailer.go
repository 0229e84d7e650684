// Package mailer sends transactional email through SendGrid, or logs it
// when running locally.
package mailer

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

// Message is a rendered email ready to send.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
	// Category tags the message in the provider dashboard.
	Category string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrInvalidRecipient = errors.New("invalid recipient")

func validate(msg Message) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(msg.To)); err != nil {
		return ErrInvalidRecipient
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}
	if msg.HTML == "" && msg.Text == "" {
		return errors.New("message body is required")
	}
	return nil
}

// New picks the SendGrid sender when an API key is configured and the log
// mailer flag is off.
func New(cfg config.MailConfig, flags config.FeatureFlagsConfig, logg *logger.Logger) Sender {
	if flags.LogMailer || strings.TrimSpace(cfg.APIKey) == "" {
		return NewLogSender(logg)
	}
	return NewSendGrid(cfg, nil)
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":       msg.To,
		"subject":  msg.Subject,
		"category": msg.Category,
		"text":     msg.Text,
	}), "email logged")
	return nil
}
