// internal/repository/campaign_target_repository.go
package repository

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/unclebandit/bulk-messaging/internal/model"
)

type CampaignTargetRepositoryInterface interface {
	CreateBatch(targets []model.CampaignTarget) error
	GetTargetsBatch(campaignID, offset, limit int) ([]model.CampaignTarget, error)
	CountByCampaign(campaignID int) (int, error)
}

type CampaignTargetRepository struct {
	DB *sql.DB
}

func (r *CampaignTargetRepository) CreateBatch(targets []model.CampaignTarget) error {
	if len(targets) == 0 {
		return nil
	}

	query := `INSERT INTO campaign_targets (campaign_id, user_ref, kind, metadata) VALUES `
	args := []interface{}{}
	argPos := 1

	for i, t := range targets {
		metadata, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", t.UserRef, err)
		}
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d)", argPos, argPos+1, argPos+2, argPos+3)
		args = append(args, t.CampaignID, t.UserRef, t.Kind, metadata)
		argPos += 4
	}

	_, err := r.DB.Exec(query, args...)
	return err
}

// GetTargetsBatch pages targets in id order so campaign preparation can walk
// large audiences without loading them all at once.
func (r *CampaignTargetRepository) GetTargetsBatch(campaignID, offset, limit int) ([]model.CampaignTarget, error) {
	query := `
        SELECT id, campaign_id, user_ref, kind, metadata, created_at
        FROM campaign_targets
        WHERE campaign_id=$1
        ORDER BY id ASC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := []model.CampaignTarget{}
	for rows.Next() {
		var t model.CampaignTarget
		var metadata []byte
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.UserRef, &t.Kind, &metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for target %d: %w", t.ID, err)
			}
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (r *CampaignTargetRepository) CountByCampaign(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_targets WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

var _ CampaignTargetRepositoryInterface = (*CampaignTargetRepository)(nil)
