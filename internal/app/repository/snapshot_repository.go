package repository

import (
	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository archive of observed national prices
type SnapshotRepository interface {
	UpsertMany(snapshots []model.PriceSnapshot) error
	FindByCommodityAndDateRange(commodityID uint, startDate, endDate string) ([]model.PriceSnapshot, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a snapshot repository
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// UpsertMany keeps one row per commodity and day; a later observation replaces the price
func (r *snapshotRepository) UpsertMany(snapshots []model.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "commodity_id"}, {Name: "price_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"commodity_name", "unit", "category", "price", "updated_at"}),
	}).CreateInBatches(&snapshots, 200).Error
	if err != nil {
		logger.Error("Failed to upsert price snapshots", err, map[string]interface{}{
			"count": len(snapshots),
		})
		return err
	}
	return nil
}

// FindByCommodityAndDateRange dates are inclusive YYYY-MM-DD bounds; empty means open
func (r *snapshotRepository) FindByCommodityAndDateRange(commodityID uint, startDate, endDate string) ([]model.PriceSnapshot, error) {
	var snapshots []model.PriceSnapshot

	query := r.db.Where("commodity_id = ?", commodityID)
	if startDate != "" {
		query = query.Where("price_date >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("price_date <= ?", endDate)
	}

	if err := query.Order("price_date ASC").Find(&snapshots).Error; err != nil {
		logger.Error("Failed to find price snapshots", err, map[string]interface{}{
			"commodity_id": commodityID,
		})
		return nil, err
	}
	return snapshots, nil
}
