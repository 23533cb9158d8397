package models

// PriceTrend is the average paid price of a crop for one calendar month.
type PriceTrend struct {
	ID       uint    `gorm:"primaryKey;column:trend_id" json:"-"`
	CropID   uint    `gorm:"not null;uniqueIndex:idx_price_trend_period" json:"crop_id"`
	Year     int     `gorm:"not null;uniqueIndex:idx_price_trend_period" json:"year"`
	Month    int     `gorm:"not null;uniqueIndex:idx_price_trend_period" json:"month"`
	AvgPrice float64 `gorm:"not null" json:"avg_price"`
}

// TableName overrides the table name
func (PriceTrend) TableName() string {
	return "price_trends"
}
