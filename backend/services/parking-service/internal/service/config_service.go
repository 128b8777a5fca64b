package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/billing"
	"parkwise/backend/services/parking-service/internal/clock"
	"parkwise/backend/services/parking-service/internal/models"
	"parkwise/backend/services/parking-service/internal/repository"
)

// ConfigService resolves billing parameters with fallback to static defaults.
type ConfigService struct {
	uow      UnitOfWork
	defaults billing.Defaults
	clock    clock.Clock
	logger   *zap.Logger
}

// NewConfigService returns service instance.
func NewConfigService(uow UnitOfWork, defaults billing.Defaults, clk clock.Clock, logger *zap.Logger) *ConfigService {
	if clk == nil {
		clk = clock.System{}
	}
	return &ConfigService{uow: uow, defaults: defaults, clock: clk, logger: logger}
}

// EffectiveConfig returns the parameters in force right now.
func (s *ConfigService) EffectiveConfig(ctx context.Context) (billing.Params, error) {
	return s.paramsFrom(ctx, s.uow.Repos().Configs)
}

func (s *ConfigService) paramsFrom(ctx context.Context, configs ConfigStore) (billing.Params, error) {
	cfg, err := configs.Latest(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return billing.Params{}, err
		}
		cfg = nil
	}
	return billing.Resolve(cfg, s.defaults), nil
}

// SaveConfigInput is a new configuration version.
type SaveConfigInput struct {
	Note                     string
	RoundingThresholdMinutes int
	ExitBufferMinutes        float64
	HourlyRate               float64
}

// SaveConfig validates and appends a configuration version; the newest row wins.
func (s *ConfigService) SaveConfig(ctx context.Context, in SaveConfigInput) (*models.BillingConfig, error) {
	if in.RoundingThresholdMinutes < 0 || in.RoundingThresholdMinutes > 59 {
		return nil, newError(ErrValidation, "rounding threshold must be between 0 and 59 minutes, got %d", in.RoundingThresholdMinutes)
	}
	if in.ExitBufferMinutes < 0 {
		return nil, newError(ErrValidation, "exit buffer must not be negative")
	}
	if in.HourlyRate <= 0 {
		return nil, newError(ErrValidation, "hourly rate must be positive")
	}

	cfg := &models.BillingConfig{
		Note:                     strings.TrimSpace(in.Note),
		RoundingThresholdMinutes: in.RoundingThresholdMinutes,
		ExitBufferMinutes:        in.ExitBufferMinutes,
		HourlyRate:               in.HourlyRate,
		CreatedAt:                s.clock.Now(),
	}
	if err := s.uow.Repos().Configs.Create(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("billing configuration saved",
		zap.Int64("config_id", cfg.ID),
		zap.Int("rounding_threshold_minutes", cfg.RoundingThresholdMinutes),
		zap.Float64("hourly_rate", cfg.HourlyRate),
	)
	return cfg, nil
}
