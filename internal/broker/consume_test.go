// internal/broker/consume_test.go
package broker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
)

func waitForChannels(t *testing.T, conn *fakeConn, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return conn.channelCount() >= n }, time.Second, time.Millisecond)
}

func TestConsumeAcksOnHandlerSuccess(t *testing.T) {
	conn := newFakeConn()
	c := connect(t, conn)

	var mu sync.Mutex
	var bodies []string
	require.NoError(t, c.Consume("notification.queue", 3, func(d amqp.Delivery) error {
		mu.Lock()
		bodies = append(bodies, string(d.Body))
		mu.Unlock()
		return nil
	}))
	waitForChannels(t, conn, 1)

	ch := conn.channelAt(0)
	require.Equal(t, 3, ch.qos)
	require.Equal(t, []string{"notification.queue"}, ch.queues)

	acker := &fakeAcker{}
	ch.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"outboxId":1}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte(`{"outboxId":2}`)}

	require.Eventually(t, func() bool {
		acked, _ := acker.counts()
		return acked == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{`{"outboxId":1}`, `{"outboxId":2}`}, bodies)
}

func TestConsumeNacksAndRequeuesOnHandlerError(t *testing.T) {
	conn := newFakeConn()
	c := connect(t, conn)

	require.NoError(t, c.Consume("notification.queue", 1, func(d amqp.Delivery) error {
		return errors.New("transient store error")
	}))
	waitForChannels(t, conn, 1)

	acker := &fakeAcker{}
	conn.channelAt(0).deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 7, Body: []byte("{}")}

	require.Eventually(t, func() bool {
		_, nacked := acker.counts()
		return nacked == 1
	}, time.Second, time.Millisecond)

	acker.mu.Lock()
	defer acker.mu.Unlock()
	require.True(t, acker.requeue)
	require.Equal(t, []uint64{7}, acker.nacked)
}

func TestConsumeRearmsAfterChannelDeath(t *testing.T) {
	conn := newFakeConn()
	c := connect(t, conn)

	require.NoError(t, c.Consume("notification.queue", 1, func(d amqp.Delivery) error { return nil }))
	waitForChannels(t, conn, 1)

	// Killing the delivery stream simulates a channel-level failure; the
	// subscription must come back on a fresh channel.
	close(conn.channelAt(0).deliveries)
	waitForChannels(t, conn, 2)

	acker := &fakeAcker{}
	conn.channelAt(1).deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte("{}")}
	require.Eventually(t, func() bool {
		acked, _ := acker.counts()
		return acked == 1
	}, time.Second, time.Millisecond)
}

func TestConsumeOnClosedConnection(t *testing.T) {
	c := New("amqp://test", Options{Dialer: func(url string) (Conn, error) { return newFakeConn(), nil }})
	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	err := c.Consume("notification.queue", 1, func(d amqp.Delivery) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}
