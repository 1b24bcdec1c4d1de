package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// OverrideStatus outcome of forwarding an override to the price backend
type OverrideStatus string

const (
	OverrideForwarded OverrideStatus = "forwarded" // accepted by the backend
	OverrideRejected  OverrideStatus = "rejected"  // refused by the backend, message kept
	OverrideFailed    OverrideStatus = "failed"    // network or unexpected response
)

// OverrideSubmission audit row of one override submitted through this service
type OverrideSubmission struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	UserID           string         `gorm:"type:varchar(100);index" json:"user_id"`
	CommodityID      uint           `gorm:"not null;index" json:"commodity_id"`
	OverridePrice    float64        `gorm:"not null" json:"override_price"`
	CurrentPrice     *float64       `json:"current_price"`
	DeviationPercent float64        `json:"deviation_percent"`
	HasBaseline      bool           `json:"has_baseline"`
	Tier             string         `gorm:"type:varchar(40);not null" json:"tier"`
	Reason           string         `gorm:"type:text;not null" json:"reason"`
	SourceInfo       string         `gorm:"type:varchar(255);not null" json:"source_info"`
	PriceDate        string         `gorm:"type:varchar(10);not null" json:"date"`
	EvidenceKey      string         `gorm:"type:varchar(255)" json:"evidence_key,omitempty"`
	Status           OverrideStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	BackendMessage   string         `gorm:"type:text" json:"backend_message,omitempty"`
	Warnings         pq.StringArray `gorm:"type:text" json:"warnings"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OverrideSubmission) TableName() string {
	return "override_submissions"
}
