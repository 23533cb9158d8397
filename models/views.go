package models

import (
	"time"
)

// Read models for joined queries. They are never migrated.

type MarketListing struct {
	ListingID          uint      `json:"listing_id"`
	QuantityKg         float64   `json:"quantity_kg"`
	PricePerKg         float64   `json:"price_per_kg"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	CropID             uint      `json:"crop_id"`
	CropName           string    `json:"crop_name"`
	FarmerID           uint      `json:"farmer_id,omitempty"`
	FarmerName         string    `json:"farmer_name,omitempty"`
	District           *string   `json:"district,omitempty"`
	FarmerEmail        string    `json:"farmer_email,omitempty"`
	FarmerPhone        *string   `json:"farmer_phone,omitempty"`
	FarmerProfileImage *string   `json:"farmer_profile_image,omitempty"`
}

type ThreadSummary struct {
	ThreadID        uint       `json:"thread_id"`
	BuyerID         uint       `json:"buyer_id"`
	FarmerID        uint       `json:"farmer_id"`
	OtherID         uint       `json:"other_id"`
	OtherName       string     `json:"other_name"`
	OtherEmail      string     `json:"other_email"`
	OtherDistrict   *string    `json:"other_district"`
	LastMessageID   *uint      `json:"last_message_id"`
	LastMessage     *string    `json:"last_message"`
	LastMessageType *string    `json:"last_message_type"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	ThreadCreatedAt time.Time  `json:"thread_created_at"`
}

type BuyerDashboard struct {
	TotalOrders int64   `json:"total_orders"`
	TotalKg     float64 `json:"total_kg"`
	TotalSpent  float64 `json:"total_spent"`
}

type FarmerSummary struct {
	TotalListings  int64   `json:"total_listings"`
	ActiveListings int64   `json:"active_listings"`
	SoldKg         float64 `json:"sold_kg"`
	Earnings       float64 `json:"earnings"`
}

type DailyPrice struct {
	Day      string  `json:"day"`
	AvgPrice float64 `json:"avg_price"`
}

// SaleRow is one transaction on a farmer's listing, used by the sales export.
type SaleRow struct {
	TransactionID    uint
	TransactionDate  time.Time
	CropName         string
	BuyerName        string
	QuantityBoughtKg float64
	TotalPrice       float64
}
