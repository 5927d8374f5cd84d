// internal/broker/consume.go
package broker

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Handler processes one delivery. A nil return acks the message; an error
// nacks it back onto the queue (at-least-once).
type Handler func(d amqp.Delivery) error

type subscription struct {
	queue    string
	prefetch int
	handler  Handler
}

// Consume opens a dedicated channel on the queue with a bounded
// unacknowledged-message window and feeds deliveries to handler. The channel
// is recreated and consumption re-armed whenever it dies, including across
// connection-level reconnects. Consume itself returns immediately.
func (c *Connection) Consume(queue string, prefetch int, handler Handler) error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	sub := &subscription{queue: queue, prefetch: prefetch, handler: handler}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	go c.runSubscription(sub)
	return nil
}

// runSubscription keeps one queue consumed for the lifetime of the Connection.
func (c *Connection) runSubscription(sub *subscription) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		ch, deliveries, err := c.openConsumerChannel(sub)
		if err != nil {
			select {
			case <-c.done:
				return
			case <-time.After(c.reconnectDelay):
				continue
			}
		}

		log.Printf("broker: consuming %s (prefetch %d)", sub.queue, sub.prefetch)
		for d := range deliveries {
			if err := sub.handler(d); err != nil {
				log.Printf("broker: handler error on %s, requeueing delivery %d: %v", sub.queue, d.DeliveryTag, err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					log.Printf("broker: nack failed on %s: %v", sub.queue, nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				log.Printf("broker: ack failed on %s: %v", sub.queue, ackErr)
			}
		}
		ch.Close()

		// The deliveries channel only closes when the consumer channel (or the
		// whole connection) died. Back off briefly, then re-arm.
		log.Printf("broker: consumer channel on %s closed, re-arming", sub.queue)
		select {
		case <-c.done:
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Connection) openConsumerChannel(sub *subscription) (Chan, <-chan amqp.Delivery, error) {
	conn, err := c.snapshot()
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(sub.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(sub.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, err
	}

	tag := "consumer-" + uuid.NewString()
	deliveries, err := ch.Consume(sub.queue, tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, err
	}
	return ch, deliveries, nil
}
