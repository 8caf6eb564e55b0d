package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
)

// ConfigService reads and writes the UserConfig stored in the settings
// collection.
type ConfigService struct {
	repo     settings.Repository
	defaults models.UserConfig
}

// NewConfigService returns a service that falls back to defaults while
// nothing has been stored yet.
func NewConfigService(repo settings.Repository, defaults models.UserConfig) *ConfigService {
	return &ConfigService{repo: repo, defaults: defaults}
}

// Load returns the stored preferences. Fields missing from the stored
// document keep their default values.
func (s *ConfigService) Load(ctx context.Context) (models.UserConfig, error) {
	cfg := s.defaults

	raw, err := s.repo.Get(ctx, models.UserConfigKey)
	if errors.Is(err, common.ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return s.defaults, fmt.Errorf("failed to decode user config: %w", err)
	}
	return cfg, nil
}

// Save stores cfg.
func (s *ConfigService) Save(ctx context.Context, cfg models.UserConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, models.UserConfigKey, raw); err != nil {
		return fmt.Errorf("failed to save user config: %w", err)
	}
	return nil
}

// Update loads the preferences, applies fn and stores the result.
func (s *ConfigService) Update(ctx context.Context, fn func(*models.UserConfig)) (models.UserConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return cfg, err
	}
	fn(&cfg)
	return cfg, s.Save(ctx, cfg)
}
