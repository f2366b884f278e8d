package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pdanelson/bondora-auto-investor/internal/models"
	"github.com/pdanelson/bondora-auto-investor/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- pass journal -----------------------------------------------------------

// InsertPassRun writes the run and its bids atomically.
func (s *Store) InsertPassRun(ctx context.Context, run *models.PassRun, bids []models.PlacedBid) error {
	if s == nil || s.db == nil || run == nil {
		return nil
	}
	return s.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(bids) == 0 {
			return nil
		}
		for i := range bids {
			bids[i].PassID = run.PassID
		}
		return createInBatches(tx, bids, 200)
	})
}

func (s *Store) GetPassRunByPassID(ctx context.Context, passID string) (*models.PassRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	passID = strings.TrimSpace(passID)
	if passID == "" {
		return nil, nil
	}
	var item models.PassRun
	err := s.db.WithContext(ctx).Model(&models.PassRun{}).Where("pass_id = ?", passID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPassRuns(ctx context.Context, params repository.ListPassRunsParams) ([]models.PassRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := passRunFilters(s.db.WithContext(ctx).Model(&models.PassRun{}), params)
	query = applyOrder(query, passRunOrderColumn(params.OrderBy), params.Asc, "started_at")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.PassRun
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPassRuns(ctx context.Context, params repository.ListPassRunsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := passRunFilters(s.db.WithContext(ctx).Model(&models.PassRun{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPlacedBidsByPassID(ctx context.Context, passID string) ([]models.PlacedBid, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	passID = strings.TrimSpace(passID)
	if passID == "" {
		return nil, nil
	}
	var items []models.PlacedBid
	if err := s.db.WithContext(ctx).Model(&models.PlacedBid{}).
		Where("pass_id = ?", passID).
		Order("rank asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func passRunFilters(query *gorm.DB, params repository.ListPassRunsParams) *gorm.DB {
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	if params.Trigger != nil && strings.TrimSpace(*params.Trigger) != "" {
		query = query.Where("triggered_by = ?", strings.TrimSpace(*params.Trigger))
	}
	if params.Since != nil {
		query = query.Where("started_at >= ?", *params.Since)
	}
	if params.Until != nil {
		query = query.Where("started_at < ?", *params.Until)
	}
	return query
}

func passRunOrderColumn(orderBy string) string {
	switch strings.TrimSpace(orderBy) {
	case "started_at", "finished_at", "committed", "balance", "bid_count":
		return strings.TrimSpace(orderBy)
	}
	return ""
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_by",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	query = applyOrder(query, "", params.Asc, "key")
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return db.CreateInBatches(items, batchSize).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
