// internal/channel/channel.go
package channel

import (
	"github.com/unclebandit/bulk-messaging/internal/config"
	appErrors "github.com/unclebandit/bulk-messaging/internal/errors"
	"github.com/unclebandit/bulk-messaging/internal/model"
)

// Channel is the delivery-provider contract. Send returns the provider's
// message id on acceptance and an error on rejection.
type Channel interface {
	Send(to, subject, body string, meta map[string]string) (string, error)
}

// Channels is the closed set of delivery channels, one slot per notification
// kind, selected by configuration at startup. A nil slot means the kind is
// not deliverable in this deployment.
type Channels struct {
	Email Channel
	SMS   Channel
	Push  Channel
}

func (c Channels) ForKind(kind model.Kind) (Channel, error) {
	var ch Channel
	switch kind {
	case model.KindEmail:
		ch = c.Email
	case model.KindSMS:
		ch = c.SMS
	case model.KindPush:
		ch = c.Push
	}
	if ch == nil {
		return nil, appErrors.NewUnsupportedKind(string(kind))
	}
	return ch, nil
}

// FromConfig wires the provider implementations. "mock" selects the loopback
// provider for local development and tests.
func FromConfig(email config.EmailConfig, sms config.SMSConfig, push config.PushConfig) Channels {
	var channels Channels

	switch email.Provider {
	case "mock":
		channels.Email = NewMock("email")
	default:
		channels.Email = NewSendGrid(email)
	}

	switch sms.Provider {
	case "mock":
		channels.SMS = NewMock("sms")
	default:
		channels.SMS = NewTwilio(sms)
	}

	// No real push provider is integrated yet; the mock is opt-in.
	if push.Provider == "mock" {
		channels.Push = NewMock("push")
	}

	return channels
}
