// internal/broker/fakes_test.go
package broker

import (
	"errors"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// fakeConn implements Conn for tests.
type fakeConn struct {
	mu         sync.Mutex
	channels   []*fakeChan
	closeC     chan *amqp.Error
	closed     bool
	channelErr error

	// newChan builds each channel; defaults to a confirm-everything channel.
	newChan func() *fakeChan
}

func newFakeConn() *fakeConn {
	return &fakeConn{newChan: func() *fakeChan { return newFakeChan(true) }}
}

func (c *fakeConn) Channel() (Chan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	ch := c.newChan()
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeC = receiver
	return receiver
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fail simulates a connection-level failure event. The watcher registers its
// NotifyClose receiver asynchronously, so wait for it instead of dropping the
// event.
func (c *fakeConn) fail(reason string) {
	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		receiver := c.closeC
		c.mu.Unlock()
		if receiver != nil {
			receiver <- &amqp.Error{Code: amqp.ConnectionForced, Reason: reason}
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *fakeConn) channelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels)
}

func (c *fakeConn) channelAt(i int) *fakeChan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[i]
}

// fakeChan implements Chan for tests.
type fakeChan struct {
	mu          sync.Mutex
	confirmMode bool
	confirms    chan amqp.Confirmation
	closeC      chan *amqp.Error
	closeOnce   sync.Once
	closed      bool

	ack        bool // confirmation outcome for publishes
	publishErr error
	published  []publishedMsg

	qos        int
	queues     []string
	exchanges  []string
	deliveries chan amqp.Delivery
	consumeErr error

	tag uint64
}

type publishedMsg struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func newFakeChan(ack bool) *fakeChan {
	return &fakeChan{ack: ack, deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChan) Confirm(noWait bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmMode = true
	return nil
}

func (c *fakeChan) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirms = confirm
	return confirm
}

func (c *fakeChan) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeC = receiver
	return receiver
}

func (c *fakeChan) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	if !c.confirmMode {
		return errors.New("fakeChan: publish before Confirm")
	}
	c.published = append(c.published, publishedMsg{exchange: exchange, key: key, msg: msg})
	c.tag++
	// The confirms channel is buffered; deliver the broker's verdict inline.
	c.confirms <- amqp.Confirmation{DeliveryTag: c.tag, Ack: c.ack}
	return nil
}

func (c *fakeChan) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChan) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChan) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = prefetchCount
	return nil
}

func (c *fakeChan) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	return c.deliveries, nil
}

func (c *fakeChan) Close() error {
	c.mu.Lock()
	c.closed = true
	closeC := c.closeC
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		if closeC != nil {
			close(closeC)
		}
	})
	return nil
}

func (c *fakeChan) publishedMsgs() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]publishedMsg, len(c.published))
	copy(out, c.published)
	return out
}

// fakeAcker records ack/nack outcomes for consumed deliveries.
type fakeAcker struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}
