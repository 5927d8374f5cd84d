// internal/service/campaign_service.go
package service

import (
	"log"
	"strings"
	"time"

	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/repository"
)

// prepareBatchSize is how many targets one preparation pass loads at a time.
const prepareBatchSize = 1000

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	TargetRepo   repository.CampaignTargetRepositoryInterface
	OutboxRepo   repository.OutboxRepositoryInterface
}

// CampaignProgress is a campaign plus its outbox counts by status.
type CampaignProgress struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
	Total    int             `json:"total"`
}

func (s *CampaignService) CreateCampaign(name string, kind model.Kind, subject, bodyTemplate string, scheduledAt *string) (*model.Campaign, error) {
	c := &model.Campaign{
		Name:         name,
		Kind:         kind,
		Subject:      subject,
		BodyTemplate: bodyTemplate,
		Status:       model.CampaignDraft,
	}

	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// PrepareCampaign fans a campaign out into outbox rows: targets are paged in
// batches, each rendered against its metadata and bulk-inserted with a
// deterministic idempotency key. Re-running a preparation is safe because
// duplicate keys are ignored at insert time. Returns how many targets were
// processed.
func (s *CampaignService) PrepareCampaign(campaignID int) (int, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return 0, err
	}

	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignRunning); err != nil {
		return 0, err
	}

	subject := campaign.Subject
	if subject == "" {
		subject = "Marketing Message"
	}

	offset := 0
	total := 0
	for {
		targets, err := s.TargetRepo.GetTargetsBatch(campaignID, offset, prepareBatchSize)
		if err != nil {
			return total, err
		}
		if len(targets) == 0 {
			break
		}

		entries := make([]model.OutboxEntry, 0, len(targets))
		for _, t := range targets {
			kind := t.Kind
			if kind == "" {
				kind = campaign.Kind
			}
			entries = append(entries, model.OutboxEntry{
				CampaignID: campaignID,
				UserRef:    t.UserRef,
				Kind:       kind,
				Payload: model.Payload{
					Subject: subject,
					Body:    RenderTemplate(campaign.BodyTemplate, t.Metadata),
					Meta:    t.Metadata,
				},
				IdempotencyKey: model.IdempotencyKey(campaignID, t.UserRef, kind),
			})
		}

		if err := s.OutboxRepo.CreateBatch(entries); err != nil {
			return total, err
		}

		total += len(targets)
		offset += prepareBatchSize
		log.Printf("campaign %d: prepared %d targets so far", campaignID, total)
	}

	log.Printf("campaign %d: preparation complete, %d targets", campaignID, total)
	return total, nil
}

// Progress returns the campaign and its outbox counts by status.
func (s *CampaignService) Progress(campaignID int) (*CampaignProgress, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.OutboxRepo.CampaignStats(campaignID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range stats {
		total += n
	}
	return &CampaignProgress{Campaign: campaign, Stats: stats, Total: total}, nil
}

// ListCampaigns fetches campaigns with pagination.
func (s *CampaignService) ListCampaigns(page, pageSize int, kind, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, kind, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// RenderTemplate substitutes {{key}} placeholders from the target metadata.
func RenderTemplate(template string, metadata map[string]string) string {
	if len(metadata) == 0 {
		return template
	}
	rendered := template
	for key, value := range metadata {
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", value)
	}
	return rendered
}
