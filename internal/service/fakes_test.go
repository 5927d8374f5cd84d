// internal/service/fakes_test.go
package service_test

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/bulk-messaging/internal/broker"
	appErrors "github.com/unclebandit/bulk-messaging/internal/errors"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// memOutboxStore is an in-memory OutboxRepositoryInterface with the same
// semantics as the Postgres one: insert-ignore on idempotency key, claim by
// status in id order, retry eligibility by age, attempt exhaustion.
type memOutboxStore struct {
	mu      sync.Mutex
	nextID  int
	rows    map[int]*model.OutboxEntry
	now     func() time.Time
	failOps map[string]error
}

func newMemOutboxStore() *memOutboxStore {
	return &memOutboxStore{
		rows:    map[int]*model.OutboxEntry{},
		now:     time.Now,
		failOps: map[string]error{},
	}
}

func (s *memOutboxStore) failOn(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOps[op] = errors.New(op + ": store unavailable")
}

func (s *memOutboxStore) CreateBatch(entries []model.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["CreateBatch"]; err != nil {
		return err
	}
	for _, e := range entries {
		if s.findByKeyLocked(e.IdempotencyKey) != nil {
			continue
		}
		s.nextID++
		row := e
		row.ID = s.nextID
		row.Status = model.StatusPending
		row.Attempts = 0
		row.CreatedAt = s.now()
		row.UpdatedAt = s.now()
		s.rows[row.ID] = &row
	}
	return nil
}

func (s *memOutboxStore) ClaimPendingBatch(limit int) ([]model.OutboxEntry, error) {
	return s.claim(limit, "ClaimPendingBatch", func(e *model.OutboxEntry) bool {
		return e.Status == model.StatusPending
	})
}

func (s *memOutboxStore) ClaimRetryableBatch(limit int) ([]model.OutboxEntry, error) {
	return s.claim(limit, "ClaimRetryableBatch", func(e *model.OutboxEntry) bool {
		return e.Status == model.StatusRetrying &&
			e.Attempts < repository.MaxAttempts &&
			e.UpdatedAt.Before(s.now().Add(-repository.RetryDelay))
	})
}

func (s *memOutboxStore) claim(limit int, op string, eligible func(*model.OutboxEntry) bool) ([]model.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps[op]; err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(s.rows))
	for id, e := range s.rows {
		if eligible(e) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]model.OutboxEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.rows[id])
	}
	return out, nil
}

func (s *memOutboxStore) MarkQueued(ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["MarkQueued"]; err != nil {
		return err
	}
	for _, id := range ids {
		if e, ok := s.rows[id]; ok {
			e.Status = model.StatusQueued
			e.UpdatedAt = s.now()
		}
	}
	return nil
}

func (s *memOutboxStore) MarkSent(id int, providerMsgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["MarkSent"]; err != nil {
		return err
	}
	if e, ok := s.rows[id]; ok {
		e.Status = model.StatusSent
		e.ProviderMsgID = providerMsgID
		e.UpdatedAt = s.now()
	}
	return nil
}

func (s *memOutboxStore) MarkFailed(id int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.rows[id]; ok {
		e.Status = model.StatusFailed
		e.LastError = lastError
		e.UpdatedAt = s.now()
	}
	return nil
}

func (s *memOutboxStore) IncrementAttempt(id int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["IncrementAttempt"]; err != nil {
		return err
	}
	e, ok := s.rows[id]
	if !ok {
		return nil
	}
	e.Attempts++
	e.LastError = lastError
	if e.Attempts >= repository.MaxAttempts {
		e.Status = model.StatusFailed
	} else {
		e.Status = model.StatusRetrying
	}
	e.UpdatedAt = s.now()
	return nil
}

func (s *memOutboxStore) FindByIdempotencyKey(key string) (*model.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["FindByIdempotencyKey"]; err != nil {
		return nil, err
	}
	e := s.findByKeyLocked(key)
	if e == nil {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *memOutboxStore) findByKeyLocked(key string) *model.OutboxEntry {
	for _, e := range s.rows {
		if e.IdempotencyKey == key {
			return e
		}
	}
	return nil
}

func (s *memOutboxStore) CampaignStats(campaignID int) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := map[string]int{
		model.StatusPending:  0,
		model.StatusQueued:   0,
		model.StatusSent:     0,
		model.StatusFailed:   0,
		model.StatusRetrying: 0,
	}
	for _, e := range s.rows {
		if e.CampaignID == campaignID {
			stats[e.Status]++
		}
	}
	return stats, nil
}

func (s *memOutboxStore) get(id int) model.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *memOutboxStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// seed inserts a row directly in the given status, bypassing CreateBatch.
func (s *memOutboxStore) seed(e model.OutboxEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}
	s.rows[e.ID] = &e
	return e.ID
}

var _ repository.OutboxRepositoryInterface = (*memOutboxStore)(nil)

// fakePublisher records publishes and can fail selected message ids.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	failKeys  map[string]bool
	failAll   bool
}

type publishedMsg struct {
	queue string
	body  []byte
	opts  broker.PublishOptions
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failKeys: map[string]bool{}}
}

func (p *fakePublisher) Publish(queue string, body []byte, opts broker.PublishOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll || p.failKeys[opts.MessageID] {
		return broker.ErrPublishNotConfirmed
	}
	p.published = append(p.published, publishedMsg{queue: queue, body: body, opts: opts})
	return nil
}

func (p *fakePublisher) messages() []publishedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMsg, len(p.published))
	copy(out, p.published)
	return out
}

// stubChannel is a scripted delivery provider.
type stubChannel struct {
	mu          sync.Mutex
	sends       int
	fail        error
	id          string
	lastTo      string
	lastSubject string
	lastBody    string
	lastMeta    map[string]string
}

func (c *stubChannel) Send(to, subject, body string, meta map[string]string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	c.lastTo = to
	c.lastSubject = subject
	c.lastBody = body
	c.lastMeta = meta
	if c.fail != nil {
		return "", c.fail
	}
	if c.id != "" {
		return c.id, nil
	}
	return "provider-msg-1", nil
}

func (c *stubChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

// memCampaignRepo and memTargetRepo back the campaign service tests.
type memCampaignRepo struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[int]*model.Campaign{}}
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, kind, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.campaigns))
	for id, c := range r.campaigns {
		if kind != "" && string(c.Kind) != kind {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	total := len(ids)

	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		cp := *r.campaigns[id]
		out = append(out, &cp)
	}
	return out, total, nil
}

func (r *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

var _ repository.CampaignRepositoryInterface = (*memCampaignRepo)(nil)

type memTargetRepo struct {
	mu      sync.Mutex
	targets []model.CampaignTarget
}

func (r *memTargetRepo) CreateBatch(targets []model.CampaignTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, targets...)
	return nil
}

func (r *memTargetRepo) GetTargetsBatch(campaignID, offset, limit int) ([]model.CampaignTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []model.CampaignTarget{}
	for _, t := range r.targets {
		if t.CampaignID == campaignID {
			matched = append(matched, t)
		}
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memTargetRepo) CountByCampaign(campaignID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.targets {
		if t.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

var _ repository.CampaignTargetRepositoryInterface = (*memTargetRepo)(nil)
