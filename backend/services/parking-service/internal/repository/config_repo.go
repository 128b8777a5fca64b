package repository

import (
	"context"

	"parkwise/backend/services/parking-service/internal/models"
)

// ConfigRepository stores billing configuration versions.
type ConfigRepository struct {
	db DBTX
}

// NewConfigRepository returns repository.
func NewConfigRepository(db DBTX) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Latest returns the most recently created configuration.
func (r *ConfigRepository) Latest(ctx context.Context) (*models.BillingConfig, error) {
	const query = `
		SELECT id, note, rounding_threshold_minutes, exit_buffer_minutes, hourly_rate, created_at
		FROM billing_configurations
		ORDER BY id DESC
		LIMIT 1
	`
	var c models.BillingConfig
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&c.ID,
		&c.Note,
		&c.RoundingThresholdMinutes,
		&c.ExitBufferMinutes,
		&c.HourlyRate,
		&c.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// Create appends a configuration version.
func (r *ConfigRepository) Create(ctx context.Context, c *models.BillingConfig) error {
	const query = `
		INSERT INTO billing_configurations (note, rounding_threshold_minutes, exit_buffer_minutes, hourly_rate, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		c.Note,
		c.RoundingThresholdMinutes,
		c.ExitBufferMinutes,
		c.HourlyRate,
	).Scan(&c.ID, &c.CreatedAt)
}
