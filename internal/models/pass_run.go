package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PassRun is the journal row of one bidding pass, including failed ones.
type PassRun struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	PassID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	Trigger string `gorm:"column:triggered_by;type:varchar(20);not null;default:'cron'"`
	Outcome string `gorm:"type:varchar(30);not null;index"`
	DryRun  bool   `gorm:"not null;default:false"`

	// Stage and Error are set when the pass failed.
	Stage string `gorm:"type:varchar(20)"`
	Error string `gorm:"type:text"`

	Balance   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Committed decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Remaining decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	Seen      int `gorm:"not null;default:0"`
	Eligible  int `gorm:"not null;default:0"`
	Qualified int `gorm:"not null;default:0"`
	BidCount  int `gorm:"not null;default:0"`

	Skips datatypes.JSON `gorm:"type:jsonb"`

	StartedAt  time.Time `gorm:"type:timestamptz;not null;index"`
	FinishedAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PassRun) TableName() string {
	return "pass_runs"
}
