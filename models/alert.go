package models

import (
	"time"
)

const AlertDiseaseOutbreak = "Disease Outbreak"

type Alert struct {
	ID        uint      `gorm:"primaryKey;column:alert_id" json:"alert_id"`
	FarmerID  uint      `gorm:"not null;index" json:"farmer_id"`
	AlertType string    `gorm:"size:50;not null" json:"alert_type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides the table name
func (Alert) TableName() string {
	return "alerts"
}

type DiseaseReport struct {
	ID        uint      `gorm:"primaryKey;column:report_id" json:"report_id"`
	FarmerID  uint      `gorm:"not null;index" json:"farmer_id"`
	CropID    uint      `gorm:"not null;index" json:"crop_id"`
	Severity  int       `gorm:"not null" json:"severity"` // 1..10
	Notes     *string   `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (DiseaseReport) TableName() string {
	return "disease_reports"
}
