package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlacedBid is one bid decided by a pass. Submitted is false for dry runs.
type PlacedBid struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	PassID    string `gorm:"type:varchar(36);not null;index"`
	AuctionID string `gorm:"type:varchar(64);not null;index"`

	Rank      int             `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	MinAmount decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Score     float64         `gorm:"not null"`
	Interest  float64         `gorm:"not null"`
	Submitted bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PlacedBid) TableName() string {
	return "placed_bids"
}
