package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pdanelson/bondora-auto-investor/internal/models"
)

// JournalRepository stores finished passes. The engine only writes to it.
type JournalRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	InsertPassRun(ctx context.Context, run *models.PassRun, bids []models.PlacedBid) error
	GetPassRunByPassID(ctx context.Context, passID string) (*models.PassRun, error)
	ListPassRuns(ctx context.Context, params ListPassRunsParams) ([]models.PassRun, error)
	CountPassRuns(ctx context.Context, params ListPassRunsParams) (int64, error)
	ListPlacedBidsByPassID(ctx context.Context, passID string) ([]models.PlacedBid, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type Repository interface {
	JournalRepository
	SettingsRepository
}

type ListPassRunsParams struct {
	Limit   int
	Offset  int
	Outcome *string
	Trigger *string
	Since   *time.Time
	Until   *time.Time
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
