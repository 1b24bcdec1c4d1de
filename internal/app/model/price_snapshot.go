package model

import (
	"time"
)

// PriceSnapshot national price of a commodity as observed on a given day.
// Rows are written whenever the national feed is fetched; one row per commodity and day.
type PriceSnapshot struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CommodityID   uint      `gorm:"not null;uniqueIndex:idx_snapshot_commodity_date" json:"commodity_id"`
	CommodityName string    `gorm:"type:varchar(100);not null" json:"commodity_name"`
	Unit          string    `gorm:"type:varchar(20)" json:"unit"`
	Category      string    `gorm:"type:varchar(20);index" json:"category"`
	Price         float64   `gorm:"not null" json:"price"`
	PriceDate     string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_snapshot_commodity_date" json:"date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (PriceSnapshot) TableName() string {
	return "price_snapshots"
}
