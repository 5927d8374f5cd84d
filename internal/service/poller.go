// internal/service/poller.go
package service

import (
	"log"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/unclebandit/bulk-messaging/internal/broker"
	"github.com/unclebandit/bulk-messaging/internal/metrics"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// Publisher is the slice of broker.Connection the poller needs.
type Publisher interface {
	Publish(queue string, body []byte, opts broker.PublishOptions) error
}

// OutboxPoller bridges the outbox table and the broker: every interval it
// claims a batch of pending rows, publishes their envelopes, and marks the
// confirmed ones queued; then the same for retry-eligible rows. Safe to run
// in several processes at once thanks to SKIP LOCKED claims.
type OutboxPoller struct {
	Store     repository.OutboxRepositoryInterface
	Publisher Publisher
	Queue     string
	Interval  time.Duration
	BatchSize int

	mu      sync.Mutex
	running bool
	stopC   chan struct{}
	doneC   chan struct{}
}

// Start launches the poll loop. Calling Start while already running is a
// no-op.
func (p *OutboxPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		log.Println("poller: already running")
		return
	}
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 100
	}
	if p.Queue == "" {
		p.Queue = "notification.queue"
	}
	p.running = true
	p.stopC = make(chan struct{})
	p.doneC = make(chan struct{})

	log.Printf("poller: starting (interval %s, batch size %d)", p.Interval, p.BatchSize)
	go p.loop(p.stopC, p.doneC)
}

// Stop asks the loop to exit after the in-flight cycle and waits for it.
// Idempotent.
func (p *OutboxPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopC, doneC := p.stopC, p.doneC
	p.mu.Unlock()

	log.Println("poller: stopping...")
	close(stopC)
	<-doneC
}

func (p *OutboxPoller) loop(stopC, doneC chan struct{}) {
	defer close(doneC)
	for {
		select {
		case <-stopC:
			return
		default:
		}

		p.PollOnce()

		select {
		case <-stopC:
			return
		case <-time.After(p.Interval):
		}
	}
}

// PollOnce runs a single cycle: the pending pass, then the retry pass.
func (p *OutboxPoller) PollOnce() {
	start := time.Now()
	p.processBatch("pending", p.Store.ClaimPendingBatch)
	p.processBatch("retry", p.Store.ClaimRetryableBatch)
	metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
}

func (p *OutboxPoller) processBatch(pass string, claim func(int) ([]model.OutboxEntry, error)) {
	entries, err := claim(p.BatchSize)
	if err != nil {
		// Nothing was mutated; the next cycle simply retries.
		log.Printf("poller: %s claim failed: %v", pass, err)
		return
	}
	if len(entries) == 0 {
		return
	}
	metrics.OutboxClaimed.WithLabelValues(pass).Add(float64(len(entries)))
	log.Printf("poller: claimed %d %s rows", len(entries), pass)

	// The claim transaction has committed by now. Publish in id order, then
	// mark queued only the rows the broker confirmed: unconfirmed rows keep
	// their previous status and get re-claimed on a later cycle.
	queued := make([]int, 0, len(entries))
	for _, e := range entries {
		env := model.Envelope{
			OutboxID:       e.ID,
			IdempotencyKey: e.IdempotencyKey,
			CampaignID:     e.CampaignID,
			UserRef:        e.UserRef,
			Kind:           e.Kind,
		}
		body, err := json.Marshal(env)
		if err != nil {
			log.Printf("poller: marshal envelope for outbox %d: %v", e.ID, err)
			continue
		}
		opts := broker.PublishOptions{Persistent: true, MessageID: e.IdempotencyKey}
		if err := p.Publisher.Publish(p.Queue, body, opts); err != nil {
			log.Printf("poller: publish outbox %d failed: %v", e.ID, err)
			continue
		}
		queued = append(queued, e.ID)
	}

	if len(queued) == 0 {
		return
	}
	if err := p.Store.MarkQueued(queued); err != nil {
		log.Printf("poller: mark queued failed: %v", err)
		return
	}
	metrics.OutboxQueued.Add(float64(len(queued)))
	log.Printf("poller: queued %d of %d %s rows", len(queued), len(entries), pass)
}
