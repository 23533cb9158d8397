package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

const dailyTrendWindow = 7 * 24 * time.Hour

type MarketHandler struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
	now    func() time.Time
}

func NewMarketHandler(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *MarketHandler {
	return &MarketHandler{db: db, config: cfg, logger: logger, now: time.Now}
}

func (h *MarketHandler) ListCrops(c *gin.Context) {
	crops := []models.Crop{}
	if err := h.db.Order("crop_name").Find(&crops).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch crops")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch crops"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": crops})
}

func marketListingQuery(db *gorm.DB) *gorm.DB {
	return db.Table("crop_listings AS l").
		Select(`l.listing_id, l.quantity_kg, l.price_per_kg, l.status, l.created_at,
			c.crop_id, c.crop_name,
			u.user_id AS farmer_id, u.name AS farmer_name, u.district,
			u.email AS farmer_email, u.phone AS farmer_phone, u.profile_image AS farmer_profile_image`).
		Joins("JOIN crops c ON c.crop_id = l.crop_id").
		Joins("JOIN users u ON u.user_id = l.farmer_id").
		Where("l.status = ?", models.ListingAvailable).
		Order("l.created_at DESC, l.listing_id DESC")
}

// ListListings returns the open market, optionally narrowed to one crop.
func (h *MarketHandler) ListListings(c *gin.Context) {
	q := marketListingQuery(h.db)
	if c.Query("crop_id") != "" {
		cropID, ok := parseIDQuery(c, "crop_id")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid crop_id"})
			return
		}
		q = q.Where("l.crop_id = ?", cropID)
	}

	items := []models.MarketListing{}
	if err := q.Scan(&items).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// FarmerListings returns one farmer's Available listings.
func (h *MarketHandler) FarmerListings(c *gin.Context) {
	farmerID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	items := []models.MarketListing{}
	if err := marketListingQuery(h.db).Where("l.farmer_id = ?", farmerID).Scan(&items).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch farmer listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *MarketHandler) PriceTrends(c *gin.Context) {
	cropID, ok := parseIDQuery(c, "crop_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing crop_id"})
		return
	}

	items := []models.PriceTrend{}
	if err := h.db.Where("crop_id = ?", cropID).Order("year, month").Find(&items).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch price trends")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price trends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DailyPriceTrends averages the unit price actually paid per day over the last week.
func (h *MarketHandler) DailyPriceTrends(c *gin.Context) {
	cropID, ok := parseIDQuery(c, "crop_id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing crop_id"})
		return
	}

	sales, err := LoadSales(h.db, cropID, h.now().Add(-dailyTrendWindow))
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch sales")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price trends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": utils.DailyAverages(sales)})
}

// LoadSales returns the purchases of a crop made at or after since.
func LoadSales(db *gorm.DB, cropID uint, since time.Time) ([]utils.Sale, error) {
	var rows []struct {
		TransactionDate  time.Time
		QuantityBoughtKg float64
		TotalPrice       float64
	}
	err := db.Table("transactions AS t").
		Select("t.transaction_date, t.quantity_bought_kg, t.total_price").
		Joins("JOIN crop_listings l ON l.listing_id = t.listing_id").
		Where("l.crop_id = ? AND t.transaction_date >= ?", cropID, since).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	sales := make([]utils.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, utils.Sale{At: r.TransactionDate, QuantityKg: r.QuantityBoughtKg, TotalPrice: r.TotalPrice})
	}
	return sales, nil
}
