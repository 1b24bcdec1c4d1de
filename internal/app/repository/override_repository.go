package repository

import (
	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
	"gorm.io/gorm"
)

// OverrideFilter filters of the override audit history
type OverrideFilter struct {
	CommodityID uint
	UserID      string
	Status      model.OverrideStatus
	Page        int
	PageSize    int
}

// OverrideRepository override audit storage
type OverrideRepository interface {
	Create(submission *model.OverrideSubmission) error
	Update(submission *model.OverrideSubmission) error
	FindByID(id uint) (*model.OverrideSubmission, error)
	FindAll(filter OverrideFilter) ([]model.OverrideSubmission, int64, error)
}

type overrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository creates an override audit repository
func NewOverrideRepository(db *gorm.DB) OverrideRepository {
	return &overrideRepository{db: db}
}

func (r *overrideRepository) Create(submission *model.OverrideSubmission) error {
	if err := r.db.Create(submission).Error; err != nil {
		logger.Error("Failed to create override submission", err, map[string]interface{}{
			"commodity_id": submission.CommodityID,
		})
		return err
	}
	return nil
}

func (r *overrideRepository) Update(submission *model.OverrideSubmission) error {
	if err := r.db.Save(submission).Error; err != nil {
		logger.Error("Failed to update override submission", err, map[string]interface{}{
			"id": submission.ID,
		})
		return err
	}
	return nil
}

// FindByID returns gorm.ErrRecordNotFound when the row does not exist
func (r *overrideRepository) FindByID(id uint) (*model.OverrideSubmission, error) {
	var submission model.OverrideSubmission
	if err := r.db.First(&submission, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find override submission", err, map[string]interface{}{
				"id": id,
			})
		}
		return nil, err
	}
	return &submission, nil
}

// FindAll newest first
func (r *overrideRepository) FindAll(filter OverrideFilter) ([]model.OverrideSubmission, int64, error) {
	var (
		submissions []model.OverrideSubmission
		total       int64
	)

	query := r.db.Model(&model.OverrideSubmission{})
	if filter.CommodityID != 0 {
		query = query.Where("commodity_id = ?", filter.CommodityID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count override submissions", err)
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&submissions).Error; err != nil {
		logger.Error("Failed to find override submissions", err)
		return nil, 0, err
	}

	return submissions, total, nil
}
