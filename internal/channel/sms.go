// internal/channel/sms.go
package channel

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/unclebandit/bulk-messaging/internal/config"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioSMSChannel delivers SMS through the Twilio messages API.
type TwilioSMSChannel struct {
	AccountSID string
	AuthToken  string
	SenderID   string
	BaseURL    string
	Client     *http.Client
}

func NewTwilio(cfg config.SMSConfig) *TwilioSMSChannel {
	return &TwilioSMSChannel{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		SenderID:   cfg.SenderID,
		BaseURL:    twilioBaseURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TwilioSMSChannel) Send(to, subject, body string, meta map[string]string) (string, error) {
	if c.AccountSID == "" || c.AuthToken == "" {
		return "", fmt.Errorf("twilio: credentials are missing")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.SenderID)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, c.AccountSID)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("twilio: status %d: %s", resp.StatusCode, detail)
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("twilio: decode response: %w", err)
	}
	return result.SID, nil
}
