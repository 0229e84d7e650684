package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lastcall-app/lastcall-backend/pkg/config"
)

const sendPath = "/v3/mail/send"

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// SendGrid posts to the v3 mail send endpoint.
type SendGrid struct {
	cfg    config.MailConfig
	client HTTPDoer
}

func NewSendGrid(cfg config.MailConfig, client HTTPDoer) *SendGrid {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SendGrid{cfg: cfg, client: client}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	Categories       []string            `json:"categories,omitempty"`
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	body := sgRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             sgAddress{Email: s.cfg.DefaultFrom, Name: s.cfg.FromName},
		Subject:          msg.Subject,
	}
	// text/plain must precede text/html.
	if msg.Text != "" {
		body.Content = append(body.Content, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		body.Content = append(body.Content, sgContent{Type: "text/html", Value: msg.HTML})
	}
	if msg.Category != "" {
		body.Categories = []string{msg.Category}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal sendgrid request: %w", err)
	}
	url := strings.TrimRight(s.cfg.BaseURL, "/") + sendPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
