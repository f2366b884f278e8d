package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
)

const (
	featurePrefix = "feature."

	// FeatureAutoInvest is the kill switch checked before every pass.
	FeatureAutoInvest = featurePrefix + "auto_invest"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureAutoInvest: true,
	}
}

// Switch is the API view of one feature switch.
type Switch struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches seeds missing switches. Existing values are never
// overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			UpdatedBy:   "bootstrap",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Get reads a switch. Without a store every switch reports its default.
func (s *SystemSettingsService) Get(ctx context.Context, key string) (Switch, error) {
	key = strings.TrimSpace(key)
	out := Switch{Key: key, Enabled: DefaultFeatureSwitches()[key]}
	if s == nil || s.Repo == nil || key == "" {
		return out, nil
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil {
		return out, err
	}
	if item == nil || len(item.Value) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(item.Value, &out.Enabled); err != nil {
		return out, fmt.Errorf("setting %s: %w", key, err)
	}
	out.UpdatedBy = item.UpdatedBy
	out.UpdatedAt = item.UpdatedAt
	return out, nil
}

// List returns every feature switch, stored or defaulted, ordered by key.
func (s *SystemSettingsService) List(ctx context.Context) ([]Switch, error) {
	byKey := map[string]Switch{}
	for key, enabled := range DefaultFeatureSwitches() {
		byKey[key] = Switch{Key: key, Enabled: enabled}
	}
	if s != nil && s.Repo != nil {
		prefix := featurePrefix
		items, err := s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Prefix: &prefix})
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			sw := Switch{Key: item.Key, UpdatedBy: item.UpdatedBy, UpdatedAt: item.UpdatedAt}
			if len(item.Value) > 0 {
				if err := json.Unmarshal(item.Value, &sw.Enabled); err != nil {
					return nil, fmt.Errorf("setting %s: %w", item.Key, err)
				}
			}
			byKey[item.Key] = sw
		}
	}
	out := make([]Switch, 0, len(byKey))
	for _, sw := range byKey {
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string) (bool, error) {
	sw, err := s.Get(ctx, key)
	return sw.Enabled, err
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool, by string) (Switch, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Switch{}, fmt.Errorf("setting key is empty")
	}
	if s == nil || s.Repo == nil {
		return Switch{}, ErrNoStore
	}
	raw, _ := json.Marshal(enabled)
	now := time.Now().UTC()
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedBy:   strings.TrimSpace(by),
		UpdatedAt:   now,
	}
	if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
		return Switch{}, err
	}
	return Switch{Key: key, Enabled: enabled, UpdatedBy: item.UpdatedBy, UpdatedAt: now}, nil
}
