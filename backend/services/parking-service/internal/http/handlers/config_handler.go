package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/billing"
	"parkwise/backend/services/parking-service/internal/models"
	"parkwise/backend/services/parking-service/internal/service"
)

// BillingConfigurator reads and versions billing configuration.
type BillingConfigurator interface {
	EffectiveConfig(ctx context.Context) (billing.Params, error)
	SaveConfig(ctx context.Context, in service.SaveConfigInput) (*models.BillingConfig, error)
}

// ConfigHandler serves /config/billing.
type ConfigHandler struct {
	svc    BillingConfigurator
	logger *zap.Logger
}

// NewConfigHandler builds handler set.
func NewConfigHandler(svc BillingConfigurator, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{svc: svc, logger: logger}
}

type configResponse struct {
	RoundingThresholdMinutes int            `json:"rounding_threshold_minutes"`
	ExitBufferMinutes        float64        `json:"exit_buffer_minutes"`
	HourlyRate               float64        `json:"hourly_rate"`
	PaymentValiditySeconds   float64        `json:"payment_validity_seconds"`
	Source                   billing.Source `json:"source"`
	ConfigID                 int64          `json:"config_id,omitempty"`
}

type saveConfigRequest struct {
	Note                     string   `json:"note"`
	RoundingThresholdMinutes *int     `json:"rounding_threshold_minutes"`
	ExitBufferMinutes        float64  `json:"exit_buffer_minutes"`
	HourlyRate               *float64 `json:"hourly_rate"`
}

// HandleGet handles GET /config/billing.
func (h *ConfigHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.EffectiveConfig(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "effective config", err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		RoundingThresholdMinutes: p.RoundingThresholdMinutes,
		ExitBufferMinutes:        p.ExitBufferMinutes,
		HourlyRate:               p.HourlyRate,
		PaymentValiditySeconds:   p.PaymentValidity.Seconds(),
		Source:                   p.Source,
		ConfigID:                 p.ConfigID,
	})
}

// HandleSave handles POST /config/billing.
func (h *ConfigHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RoundingThresholdMinutes == nil || req.HourlyRate == nil {
		writeError(w, http.StatusBadRequest, "validation", "rounding_threshold_minutes and hourly_rate are required")
		return
	}
	cfg, err := h.svc.SaveConfig(r.Context(), service.SaveConfigInput{
		Note:                     req.Note,
		RoundingThresholdMinutes: *req.RoundingThresholdMinutes,
		ExitBufferMinutes:        req.ExitBufferMinutes,
		HourlyRate:               *req.HourlyRate,
	})
	if err != nil {
		writeServiceError(w, h.logger, "save config", err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}
