// internal/channel/mock.go
package channel

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// MockChannel is the loopback provider used in local development: it accepts
// everything and fabricates a provider message id.
type MockChannel struct {
	Name string
}

func NewMock(name string) *MockChannel {
	return &MockChannel{Name: name}
}

func (c *MockChannel) Send(to, subject, body string, meta map[string]string) (string, error) {
	id := fmt.Sprintf("mock-%s-%s", c.Name, uuid.NewString())
	log.Printf("channel(%s): delivered to %s (%d bytes)", c.Name, to, len(body))
	return id, nil
}
