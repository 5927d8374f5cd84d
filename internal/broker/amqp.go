// internal/broker/amqp.go
package broker

import "github.com/streadway/amqp"

// Dialer opens a physical broker connection. Production code uses Dial; tests
// inject their own.
type Dialer func(url string) (Conn, error)

// Conn is the slice of *amqp.Connection the resilience layer needs.
type Conn interface {
	Channel() (Chan, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Chan is the slice of *amqp.Channel the resilience layer needs. *amqp.Channel
// satisfies it directly.
type Chan interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

var _ Chan = (*amqp.Channel)(nil)

// liveConn adapts *amqp.Connection to Conn.
type liveConn struct {
	conn *amqp.Connection
}

func (c *liveConn) Channel() (Chan, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *liveConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c *liveConn) Close() error {
	return c.conn.Close()
}

// Dial is the production Dialer.
func Dial(url string) (Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &liveConn{conn: conn}, nil
}
