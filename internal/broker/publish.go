// internal/broker/publish.go
package broker

import (
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/bulk-messaging/internal/metrics"
)

// PublishOptions mirror the amqp publishing knobs the services actually use.
type PublishOptions struct {
	Persistent  bool
	MessageID   string
	ContentType string
	Headers     amqp.Table
}

// Publish sends one message to a durable queue through the shared confirm-mode
// channel and waits for the broker to acknowledge receipt. A nil error means
// the message is on the broker. On channel-level failure the publish channel
// is discarded and reopened on the next call.
func (c *Connection) Publish(queue string, body []byte, opts PublishOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, confirms, err := c.ensurePublishChannelLocked()
	if err != nil {
		return err
	}
	if !c.declared["q:"+queue] {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			c.dropPublishChannelLocked(ch)
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		c.declared["q:"+queue] = true
	}
	return c.publishLocked(ch, confirms, "", queue, body, opts)
}

// PublishToExchange routes one message through a durable topic exchange, with
// the same confirmation semantics as Publish.
func (c *Connection) PublishToExchange(exchange, routingKey string, body []byte, opts PublishOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, confirms, err := c.ensurePublishChannelLocked()
	if err != nil {
		return err
	}
	if !c.declared["ex:"+exchange] {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			c.dropPublishChannelLocked(ch)
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		c.declared["ex:"+exchange] = true
	}
	return c.publishLocked(ch, confirms, exchange, routingKey, body, opts)
}

// ensurePublishChannelLocked lazily opens the dedicated confirm-mode publish
// channel. Caller holds c.mu.
func (c *Connection) ensurePublishChannelLocked() (Chan, chan amqp.Confirmation, error) {
	if c.state != stateConnected || c.conn == nil {
		return nil, nil, ErrNotConnected
	}
	if c.publishCh != nil {
		return c.publishCh, c.confirms, nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	closeC := ch.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		amqpErr := <-closeC
		c.mu.Lock()
		if c.publishCh == ch {
			c.publishCh = nil
			c.confirms = nil
			c.declared = nil
		}
		c.mu.Unlock()
		if amqpErr != nil {
			log.Printf("broker: publish channel closed: %v", amqpErr)
		}
	}()

	c.publishCh = ch
	c.confirms = confirms
	c.declared = make(map[string]bool)
	log.Println("broker: publish channel opened (confirm mode)")
	return ch, confirms, nil
}

// publishLocked performs the actual publish and blocks until the broker
// confirms. Publishes are serialized under c.mu so confirmations pair up with
// the message just sent.
func (c *Connection) publishLocked(ch Chan, confirms chan amqp.Confirmation, exchange, key string, body []byte, opts PublishOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	pub := amqp.Publishing{
		ContentType: contentType,
		MessageId:   opts.MessageID,
		Timestamp:   time.Now(),
		Headers:     opts.Headers,
		Body:        body,
	}
	if opts.Persistent {
		pub.DeliveryMode = amqp.Persistent
	}

	metrics.BrokerPublishes.Inc()
	if err := ch.Publish(exchange, key, false, false, pub); err != nil {
		c.dropPublishChannelLocked(ch)
		metrics.BrokerPublishFailures.Inc()
		return fmt.Errorf("publish to %q/%q: %w", exchange, key, err)
	}

	conf, ok := <-confirms
	if !ok {
		// Channel died before confirming; the message may or may not have
		// made it. The caller treats this as a failed publish and the
		// idempotency key absorbs any duplicate.
		c.dropPublishChannelLocked(ch)
		metrics.BrokerPublishFailures.Inc()
		return ErrPublishNotConfirmed
	}
	if !conf.Ack {
		metrics.BrokerPublishFailures.Inc()
		return ErrPublishNotConfirmed
	}
	return nil
}

// dropPublishChannelLocked discards a broken publish channel so the next
// publish reopens a fresh one. Caller holds c.mu.
func (c *Connection) dropPublishChannelLocked(ch Chan) {
	if c.publishCh == ch {
		c.publishCh = nil
		c.confirms = nil
		c.declared = nil
	}
	ch.Close()
}
