// internal/service/consumer.go
package service

import (
	"log"

	"github.com/goccy/go-json"
	"github.com/streadway/amqp"

	"github.com/unclebandit/bulk-messaging/internal/metrics"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// NotificationConsumer drains the delivery queue: it resolves each envelope
// to its durable outbox row, enforces idempotency, dispatches to the delivery
// channel, and records the outcome.
type NotificationConsumer struct {
	Store    repository.OutboxRepositoryInterface
	Notifier *NotificationService
}

// Handle processes one broker delivery. Delivery-channel failures are
// recorded through IncrementAttempt and acked: retry pacing comes from the
// outbox state machine, never from broker requeue. Only transient store
// errors return non-nil, which nacks the delivery back onto the queue.
func (c *NotificationConsumer) Handle(d amqp.Delivery) error {
	var env model.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		log.Printf("consumer: dropping malformed delivery %d: %v", d.DeliveryTag, err)
		metrics.NotificationsDropped.WithLabelValues("malformed").Inc()
		return nil
	}

	entry, err := c.Store.FindByIdempotencyKey(env.IdempotencyKey)
	if err != nil {
		return err
	}
	if entry == nil {
		// No owning row: nothing to retry against, drop it.
		log.Printf("consumer: no outbox row for key %s, dropping", env.IdempotencyKey)
		metrics.NotificationsDropped.WithLabelValues("unknown").Inc()
		return nil
	}
	if entry.Status == model.StatusSent || entry.Status == model.StatusFailed {
		// Broker redelivery of an already-settled row.
		metrics.NotificationsDropped.WithLabelValues("duplicate").Inc()
		return nil
	}

	providerID, sendErr := c.Notifier.Dispatch(entry)
	if sendErr != nil {
		log.Printf("consumer: send failed for outbox %d (attempt %d): %v", entry.ID, entry.Attempts+1, sendErr)
		metrics.NotificationsFailed.WithLabelValues(string(entry.Kind)).Inc()
		return c.Store.IncrementAttempt(entry.ID, sendErr.Error())
	}

	if err := c.Store.MarkSent(entry.ID, providerID); err != nil {
		return err
	}
	metrics.NotificationsSent.WithLabelValues(string(entry.Kind)).Inc()
	log.Printf("consumer: outbox %d sent, provider id %s", entry.ID, providerID)
	return nil
}
