// internal/controller/campaign_controller.go
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	appErrors "github.com/unclebandit/bulk-messaging/internal/errors"
	"github.com/unclebandit/bulk-messaging/internal/model"
	"github.com/unclebandit/bulk-messaging/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string  `json:"name"`
		Kind         string  `json:"kind"`
		Subject      string  `json:"subject"`
		BodyTemplate string  `json:"body_template"`
		ScheduledAt  *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !model.Kind(body.Kind).Valid() {
		http.Error(w, "invalid kind", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.Name, model.Kind(body.Kind), body.Subject, body.BodyTemplate, body.ScheduledAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	kind := r.URL.Query().Get("kind")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, kind, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignProgress(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	progress, err := c.CampaignService.Progress(id)
	if err != nil {
		status := http.StatusInternalServerError
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(progress)
}

// PrepareCampaign fans the campaign out into the outbox; the poller takes it
// from there.
func (c *CampaignController) PrepareCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	total, err := c.CampaignService.PrepareCampaign(id)
	if err != nil {
		status := http.StatusInternalServerError
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id":       id,
		"targets_processed": total,
		"status":            model.CampaignRunning,
	})
}
