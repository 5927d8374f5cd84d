// internal/repository/outbox_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/unclebandit/bulk-messaging/internal/model"
)

// Retry policy for outbox rows. IncrementAttempt flips a row to failed once
// attempts reach MaxAttempts; ClaimRetryableBatch only surfaces rows older
// than RetryDelay.
const (
	MaxAttempts = 3
	RetryDelay  = 5 * time.Minute
)

type OutboxRepositoryInterface interface {
	CreateBatch(entries []model.OutboxEntry) error
	ClaimPendingBatch(limit int) ([]model.OutboxEntry, error)
	ClaimRetryableBatch(limit int) ([]model.OutboxEntry, error)
	MarkQueued(ids []int) error
	MarkSent(id int, providerMsgID string) error
	MarkFailed(id int, lastError string) error
	IncrementAttempt(id int, lastError string) error
	FindByIdempotencyKey(key string) (*model.OutboxEntry, error)
	CampaignStats(campaignID int) (map[string]int, error)
}

// OutboxRepository is the only writer of outbox rows.
type OutboxRepository struct {
	DB *sql.DB
}

const outboxColumns = `id, campaign_id, user_ref, kind, payload, idempotency_key, status, attempts, last_error, provider_msg_id, created_at, updated_at`

// CreateBatch bulk-inserts outbox rows. Rows whose idempotency key already
// exists are silently skipped, which is what makes campaign preparation safe
// to re-run.
func (r *OutboxRepository) CreateBatch(entries []model.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO outbox (campaign_id, user_ref, kind, payload, idempotency_key, status, attempts, created_at, updated_at) VALUES `
	args := []interface{}{}
	argPos := 1
	now := time.Now()

	for i, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", e.IdempotencyKey, err)
		}
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, 'pending', 0, $%d, $%d)",
			argPos, argPos+1, argPos+2, argPos+3, argPos+4, argPos+5, argPos+6)
		args = append(args, e.CampaignID, e.UserRef, e.Kind, payload, e.IdempotencyKey, now, now)
		argPos += 7
	}
	query += ` ON CONFLICT (idempotency_key) DO NOTHING`

	_, err := r.DB.Exec(query, args...)
	return err
}

// ClaimPendingBatch locks and returns up to limit pending rows in id order.
// SKIP LOCKED lets concurrent pollers partition the backlog without blocking
// or double-claiming; the lock is held only for the duration of the claim
// transaction.
func (r *OutboxRepository) ClaimPendingBatch(limit int) ([]model.OutboxEntry, error) {
	query := `
        SELECT ` + outboxColumns + `
        FROM outbox
        WHERE status = 'pending'
        ORDER BY id ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `
	return r.claim(query, limit)
}

// ClaimRetryableBatch is the retry-pass twin of ClaimPendingBatch: rows in
// retrying state with attempts left, untouched for at least RetryDelay.
func (r *OutboxRepository) ClaimRetryableBatch(limit int) ([]model.OutboxEntry, error) {
	query := fmt.Sprintf(`
        SELECT `+outboxColumns+`
        FROM outbox
        WHERE status = 'retrying'
          AND attempts < %d
          AND updated_at < now() - interval '%d minutes'
        ORDER BY id ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `, MaxAttempts, int(RetryDelay.Minutes()))
	return r.claim(query, limit)
}

func (r *OutboxRepository) claim(query string, limit int) ([]model.OutboxEntry, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(query, limit)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	entries, err := scanOutboxRows(rows)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkQueued bulk-updates rows whose envelopes were confirmed by the broker.
func (r *OutboxRepository) MarkQueued(ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET status='queued', updated_at=now() WHERE id = ANY($1)`
	_, err := r.DB.Exec(query, pq.Array(ids))
	return err
}

func (r *OutboxRepository) MarkSent(id int, providerMsgID string) error {
	query := `UPDATE outbox SET status='sent', provider_msg_id=$1, updated_at=now() WHERE id=$2`
	_, err := r.DB.Exec(query, providerMsgID, id)
	return err
}

func (r *OutboxRepository) MarkFailed(id int, lastError string) error {
	query := `UPDATE outbox SET status='failed', last_error=$1, updated_at=now() WHERE id=$2`
	_, err := r.DB.Exec(query, lastError, id)
	return err
}

// IncrementAttempt records one processing failure. The row goes to retrying
// while attempts remain, failed once they are exhausted. This is the only path
// into retrying, and the only path into failed from a processing failure.
func (r *OutboxRepository) IncrementAttempt(id int, lastError string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}

	var attempts int
	if err := tx.QueryRow(`SELECT attempts FROM outbox WHERE id=$1 FOR UPDATE`, id).Scan(&attempts); err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	attempts++
	status := model.StatusRetrying
	if attempts >= MaxAttempts {
		status = model.StatusFailed
	}

	if _, err := tx.Exec(
		`UPDATE outbox SET attempts=$1, status=$2, last_error=$3, updated_at=now() WHERE id=$4`,
		attempts, status, lastError, id,
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *OutboxRepository) FindByIdempotencyKey(key string) (*model.OutboxEntry, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox WHERE idempotency_key=$1`
	row := r.DB.QueryRow(query, key)

	entry, err := scanOutboxRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// CampaignStats returns per-status row counts for one campaign.
func (r *OutboxRepository) CampaignStats(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM outbox WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.StatusPending:  0,
		model.StatusQueued:   0,
		model.StatusSent:     0,
		model.StatusFailed:   0,
		model.StatusRetrying: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutboxRow(row rowScanner) (*model.OutboxEntry, error) {
	var e model.OutboxEntry
	var payload []byte
	var lastError, providerMsgID sql.NullString

	err := row.Scan(
		&e.ID, &e.CampaignID, &e.UserRef, &e.Kind, &payload, &e.IdempotencyKey,
		&e.Status, &e.Attempts, &lastError, &providerMsgID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload for outbox %d: %w", e.ID, err)
	}
	e.LastError = lastError.String
	e.ProviderMsgID = providerMsgID.String
	return &e, nil
}

func scanOutboxRows(rows *sql.Rows) ([]model.OutboxEntry, error) {
	defer rows.Close()

	entries := []model.OutboxEntry{}
	for rows.Next() {
		e, err := scanOutboxRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

var _ OutboxRepositoryInterface = (*OutboxRepository)(nil)
