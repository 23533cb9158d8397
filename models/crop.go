package models

type Crop struct {
	ID       uint   `gorm:"primaryKey;column:crop_id" json:"crop_id"`
	CropName string `gorm:"uniqueIndex;size:100;not null" json:"crop_name"`
}

// TableName overrides the table name
func (Crop) TableName() string {
	return "crops"
}

// DefaultCrops seeds an empty catalogue.
var DefaultCrops = []string{
	"Rice", "Wheat", "Maize", "Potato", "Onion", "Tomato", "Jute", "Lentil", "Mustard", "Sugarcane",
}
