package db

import (
	"github.com/pdanelson/bondora-auto-investor/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.PassRun{},
		&models.PlacedBid{},
		&models.SystemSetting{},
	)
}
