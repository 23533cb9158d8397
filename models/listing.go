package models

import (
	"time"
)

const (
	ListingAvailable = "Available"
	ListingSold      = "Sold"
)

type Listing struct {
	ID         uint      `gorm:"primaryKey;column:listing_id" json:"listing_id"`
	FarmerID   uint      `gorm:"not null;index" json:"farmer_id"`
	CropID     uint      `gorm:"not null;index" json:"crop_id"`
	QuantityKg float64   `gorm:"not null" json:"quantity_kg"`
	PricePerKg float64   `gorm:"not null" json:"price_per_kg"`
	Status     string    `gorm:"size:20;not null;default:'Available';index" json:"status"` // Available, Sold
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Listing) TableName() string {
	return "crop_listings"
}

// ValidListingStatus reports whether s is a status a farmer may set.
func ValidListingStatus(s string) bool {
	return s == ListingAvailable || s == ListingSold
}
