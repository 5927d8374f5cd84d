// internal/broker/connection.go
package broker

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"

	"github.com/unclebandit/bulk-messaging/internal/metrics"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("broker: connection closed")
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("broker: not connected")
	// ErrPublishNotConfirmed is returned when the broker nacks a publish or the
	// channel dies before confirming it.
	ErrPublishNotConfirmed = errors.New("broker: publish not confirmed")
	// ErrReconnectExhausted is fatal: the process must not keep running
	// disconnected.
	ErrReconnectExhausted = errors.New("broker: maximum reconnection attempts reached")
)

const maxReconnectInterval = time.Minute

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
	stateClosed
)

// Options configures a Connection. Zero values pick the defaults the services
// have always used.
type Options struct {
	Dialer               Dialer        // defaults to Dial
	MaxReconnectAttempts int           // defaults to 5
	ReconnectDelay       time.Duration // base backoff delay, defaults to 1s
}

// Connection owns one physical broker connection: a lazily opened confirm-mode
// publish channel, one channel per consumed queue, and the reconnect policy.
// All state transitions happen behind the mutex; callers only ever see the
// idempotent Connect/Close pair.
type Connection struct {
	url                  string
	dial                 Dialer
	maxReconnectAttempts int
	reconnectDelay       time.Duration

	mu        sync.Mutex
	state     state
	conn      Conn
	publishCh Chan
	confirms  chan amqp.Confirmation
	declared  map[string]bool
	subs      []*subscription

	done   chan struct{}
	fatalC chan error
}

func New(url string, opts Options) *Connection {
	if opts.Dialer == nil {
		opts.Dialer = Dial
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	return &Connection{
		url:                  url,
		dial:                 opts.Dialer,
		maxReconnectAttempts: opts.MaxReconnectAttempts,
		reconnectDelay:       opts.ReconnectDelay,
		done:                 make(chan struct{}),
		fatalC:               make(chan error, 1),
	}
}

// Connect dials the broker, retrying with exponential backoff. It is a no-op
// when already connected or while another connect is in flight. Exhausting the
// reconnect budget returns ErrReconnectExhausted.
func (c *Connection) Connect() error {
	c.mu.Lock()
	switch c.state {
	case stateClosed:
		c.mu.Unlock()
		return ErrClosed
	case stateConnected, stateConnecting:
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.mu.Unlock()

	return c.establish()
}

// Fatal delivers the unrecoverable error when reconnection gives up, so the
// owning process can exit and let its supervisor restart it.
func (c *Connection) Fatal() <-chan error {
	return c.fatalC
}

// Close tears down the publish channel and the connection. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	conn := c.conn
	pub := c.publishCh
	c.conn = nil
	c.publishCh = nil
	c.confirms = nil
	c.declared = nil
	close(c.done)
	c.mu.Unlock()

	if pub != nil {
		pub.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// establish dials until it succeeds or the reconnect budget runs out. The
// caller must have moved the state to stateConnecting.
func (c *Connection) establish() error {
	bo := c.newBackOff()
	retries := 0

	for {
		conn, err := c.dial(c.url)
		if err == nil {
			c.mu.Lock()
			if c.state == stateClosed {
				c.mu.Unlock()
				conn.Close()
				return ErrClosed
			}
			c.conn = conn
			c.state = stateConnected
			c.mu.Unlock()

			log.Println("broker: connection established")
			go c.watch(conn)
			return nil
		}

		if retries >= c.maxReconnectAttempts {
			c.mu.Lock()
			if c.state == stateConnecting {
				c.state = stateDisconnected
			}
			c.mu.Unlock()
			return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, retries, err)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			delay = maxReconnectInterval
		}
		retries++
		log.Printf("broker: connect failed (retry %d/%d in %s): %v", retries, c.maxReconnectAttempts, delay, err)

		select {
		case <-c.done:
			return ErrClosed
		case <-time.After(delay):
		}
	}
}

// newBackOff builds the reconnect schedule: base, 2*base, 4*base, ... capped
// at maxReconnectInterval, no jitter.
func (c *Connection) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.reconnectDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = maxReconnectInterval
	return bo
}

// watch waits for the connection to die and triggers exactly one reconnect per
// failure event. A stale watcher (connection already replaced) does nothing.
func (c *Connection) watch(conn Conn) {
	closeC := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-c.done:
		return
	case amqpErr := <-closeC:
		c.mu.Lock()
		if c.state == stateClosed || c.conn != conn {
			c.mu.Unlock()
			return
		}
		c.conn = nil
		c.publishCh = nil
		c.confirms = nil
		c.declared = nil
		c.state = stateConnecting
		c.mu.Unlock()

		if amqpErr != nil {
			log.Printf("broker: connection lost: %v", amqpErr)
		} else {
			log.Println("broker: connection closed by peer")
		}
		metrics.BrokerReconnects.Inc()

		if err := c.establish(); err != nil && !errors.Is(err, ErrClosed) {
			select {
			case c.fatalC <- err:
			default:
			}
		}
	}
}

// snapshot returns the live connection, or ErrNotConnected.
func (c *Connection) snapshot() (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateConnected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}
