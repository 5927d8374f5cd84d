// internal/service/notification_service.go
package service

import (
	"github.com/unclebandit/bulk-messaging/internal/channel"
	"github.com/unclebandit/bulk-messaging/internal/model"
)

// NotificationService picks the delivery channel for an outbox row's kind and
// hands the payload over.
type NotificationService struct {
	Channels channel.Channels
}

func (s *NotificationService) Dispatch(entry *model.OutboxEntry) (string, error) {
	ch, err := s.Channels.ForKind(entry.Kind)
	if err != nil {
		return "", err
	}

	subject := entry.Payload.Subject
	if subject == "" {
		subject = "Notification"
	}
	return ch.Send(entry.UserRef, subject, entry.Payload.Body, entry.Payload.Meta)
}
