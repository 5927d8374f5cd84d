// internal/model/campaign.go
package model

import "time"

// Campaign statuses.
const (
	CampaignDraft   = "draft"
	CampaignRunning = "running"
	CampaignDone    = "done"
)

type Campaign struct {
	ID           int        `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Kind         Kind       `db:"kind" json:"kind"`
	Status       string     `db:"status" json:"status"`
	Subject      string     `db:"subject" json:"subject"`
	BodyTemplate string     `db:"body_template" json:"body_template"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignTarget is one recipient of a campaign. Metadata feeds the
// {{placeholder}} rendering when the campaign is prepared.
type CampaignTarget struct {
	ID         int               `db:"id" json:"id"`
	CampaignID int               `db:"campaign_id" json:"campaign_id"`
	UserRef    string            `db:"user_ref" json:"user_ref"`
	Kind       Kind              `db:"kind" json:"kind"`
	Metadata   map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}
