package models

import (
	"time"
)

// Transaction is the immutable record of a purchase.
type Transaction struct {
	ID               uint      `gorm:"primaryKey;column:transaction_id" json:"transaction_id"`
	ListingID        uint      `gorm:"not null;index" json:"listing_id"`
	Listing          *Listing  `gorm:"foreignKey:ListingID;references:ID" json:"listing,omitempty"`
	BuyerID          uint      `gorm:"not null;index" json:"buyer_id"`
	QuantityBoughtKg float64   `gorm:"not null" json:"quantity_bought_kg"`
	TotalPrice       float64   `gorm:"not null" json:"total_price"`
	TransactionDate  time.Time `gorm:"autoCreateTime;index" json:"transaction_date"`
}

// TableName overrides the table name
func (Transaction) TableName() string {
	return "transactions"
}
