// internal/channel/email.go
package channel

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/unclebandit/bulk-messaging/internal/config"
)

const sendGridBaseURL = "https://api.sendgrid.com"

// SendGridChannel delivers email through the SendGrid v3 mail send API.
type SendGridChannel struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
	Client    *http.Client
}

func NewSendGrid(cfg config.EmailConfig) *SendGridChannel {
	return &SendGridChannel{
		APIKey:    cfg.APIKey,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
		BaseURL:   sendGridBaseURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgMail struct {
	Personalizations []struct {
		To []sgAddress `json:"to"`
	} `json:"personalizations"`
	From    sgAddress `json:"from"`
	Subject string    `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func (c *SendGridChannel) Send(to, subject, body string, meta map[string]string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("sendgrid: API key is missing")
	}

	mail := sgMail{
		From:    sgAddress{Email: c.FromEmail, Name: c.FromName},
		Subject: subject,
	}
	mail.Personalizations = append(mail.Personalizations, struct {
		To []sgAddress `json:"to"`
	}{To: []sgAddress{{Email: to}}})

	content := body
	if html, ok := meta["html"]; ok && html != "" {
		content = html
	}
	mail.Content = append(mail.Content, struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{Type: "text/plain", Value: content})

	payload, err := json.Marshal(mail)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, detail)
	}

	if id := resp.Header.Get("X-Message-Id"); id != "" {
		return id, nil
	}
	return uuid.NewString(), nil
}
