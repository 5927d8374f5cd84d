// internal/model/outbox.go
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind is the delivery channel a notification goes out on.
type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
	KindPush  Kind = "push"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEmail, KindSMS, KindPush:
		return true
	}
	return false
}

// Outbox row statuses. Transitions:
//
//	pending  -> queued            (poller publishes)
//	retrying -> queued            (poller republishes after the retry delay)
//	queued   -> sent              (consumer, channel send succeeded)
//	queued   -> retrying | failed (consumer, via IncrementAttempt)
//
// sent and failed are terminal.
const (
	StatusPending  = "pending"
	StatusQueued   = "queued"
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusRetrying = "retrying"
)

// Payload is the opaque document handed to the delivery channel.
type Payload struct {
	Subject string            `json:"subject,omitempty"`
	Body    string            `json:"body"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// OutboxEntry is one intent-to-send row, written in the same transaction as the
// business write that produced it.
type OutboxEntry struct {
	ID             int       `db:"id" json:"id"`
	CampaignID     int       `db:"campaign_id" json:"campaign_id"`
	UserRef        string    `db:"user_ref" json:"user_ref"`
	Kind           Kind      `db:"kind" json:"kind"`
	Payload        Payload   `db:"payload" json:"payload"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
	Status         string    `db:"status" json:"status"`
	Attempts       int       `db:"attempts" json:"attempts"`
	LastError      string    `db:"last_error,omitempty" json:"last_error,omitempty"`
	ProviderMsgID  string    `db:"provider_msg_id,omitempty" json:"provider_msg_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// IdempotencyKey derives the deterministic key that deduplicates one logical
// notification (same campaign, recipient, kind) across prepares and redeliveries.
func IdempotencyKey(campaignID int, userRef string, kind Kind) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", campaignID, userRef, kind)))
	return hex.EncodeToString(sum[:])
}

// Envelope is the message published to the delivery queue for one outbox row.
// The consumer resolves the durable row through IdempotencyKey, never trusting
// the envelope beyond that.
type Envelope struct {
	OutboxID       int    `json:"outboxId"`
	IdempotencyKey string `json:"idempotencyKey"`
	CampaignID     int    `json:"campaignId"`
	UserRef        string `json:"userRef"`
	Kind           Kind   `json:"kind"`
}
