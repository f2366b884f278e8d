package service

import (
	"context"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
)

// memRepo is an in-memory repository.Repository.
type memRepo struct {
	mu       sync.Mutex
	runs     []models.PassRun
	bids     []models.PlacedBid
	settings map[string]models.SystemSetting

	insertErr  error
	settingErr error
}

var _ repository.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{settings: map[string]models.SystemSetting{}}
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (r *memRepo) InsertPassRun(ctx context.Context, run *models.PassRun, bids []models.PlacedBid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	run.ID = uint64(len(r.runs) + 1)
	r.runs = append(r.runs, *run)
	r.bids = append(r.bids, bids...)
	return nil
}

func (r *memRepo) GetPassRunByPassID(ctx context.Context, passID string) (*models.PassRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.PassID == passID {
			out := run
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListPassRuns(ctx context.Context, params repository.ListPassRunsParams) ([]models.PassRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PassRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		if params.Outcome != nil && r.runs[i].Outcome != *params.Outcome {
			continue
		}
		out = append(out, r.runs[i])
	}
	return out, nil
}

func (r *memRepo) CountPassRuns(ctx context.Context, params repository.ListPassRunsParams) (int64, error) {
	items, err := r.ListPassRuns(ctx, params)
	return int64(len(items)), err
}

func (r *memRepo) ListPlacedBidsByPassID(ctx context.Context, passID string) ([]models.PlacedBid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PlacedBid
	for _, b := range r.bids {
		if b.PassID == passID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settingErr != nil {
		return r.settingErr
	}
	r.settings[item.Key] = *item
	return nil
}

func (r *memRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settingErr != nil {
		return nil, r.settingErr
	}
	item, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *memRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settingErr != nil {
		return nil, r.settingErr
	}
	out := make([]models.SystemSetting, 0, len(r.settings))
	for key, item := range r.settings {
		if params.Prefix != nil && !strings.HasPrefix(key, *params.Prefix) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
