package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/metrics"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingNotAvailable = errors.New("listing not available")
	ErrNotEnoughQuantity   = errors.New("not enough quantity")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1 gram")
)

// quantityEpsilon absorbs float noise when a buyer takes the whole remaining stock.
const quantityEpsilon = 1e-9

type PurchaseResult struct {
	Transaction models.Transaction
	RemainingKg float64
	Status      string
}

// PurchaseListing buys qty kg of a listing for buyerID. The listing row stays locked
// until the transaction commits, so concurrent buyers of one listing are serialized.
func PurchaseListing(db *gorm.DB, buyerID, listingID uint, qty float64) (*PurchaseResult, error) {
	qty = utils.RoundQuantity(qty)
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	var result PurchaseResult

	err := db.Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, listingID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		if err != nil {
			return fmt.Errorf("lock listing: %w", err)
		}
		if listing.Status != models.ListingAvailable {
			return ErrListingNotAvailable
		}
		if qty > listing.QuantityKg+quantityEpsilon {
			return ErrNotEnoughQuantity
		}

		remaining := utils.RoundQuantity(listing.QuantityKg - qty)
		if remaining < 0 {
			remaining = 0
		}
		status := models.ListingAvailable
		if remaining == 0 {
			status = models.ListingSold
		}

		res := tx.Model(&models.Listing{}).
			Where("listing_id = ? AND status = ? AND quantity_kg >= ?", listing.ID, models.ListingAvailable, qty-quantityEpsilon).
			Updates(map[string]interface{}{"quantity_kg": remaining, "status": status})
		if res.Error != nil {
			return fmt.Errorf("decrement listing: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotEnoughQuantity
		}

		result.Transaction = models.Transaction{
			ListingID:        listing.ID,
			BuyerID:          buyerID,
			QuantityBoughtKg: qty,
			TotalPrice:       utils.RoundCents(qty * listing.PricePerKg),
		}
		if err := tx.Create(&result.Transaction).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		result.RemainingKg = remaining
		result.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type BuyerHandler struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

func NewBuyerHandler(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *BuyerHandler {
	return &BuyerHandler{db: db, config: cfg, logger: logger}
}

type PurchaseRequest struct {
	ListingID  uint    `json:"listing_id" binding:"required"`
	QuantityKg float64 `json:"quantity_kg" binding:"required,gt=0"`
}

func (h *BuyerHandler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	buyerID := middleware.CurrentUserID(c)

	result, err := PurchaseListing(h.db, buyerID, req.ListingID, req.QuantityKg)
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		metrics.RecordPurchase("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 0.001 kg"})
		return
	case errors.Is(err, ErrListingNotFound):
		metrics.RecordPurchase("not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	case errors.Is(err, ErrListingNotAvailable):
		metrics.RecordPurchase("not_available")
		c.JSON(http.StatusConflict, gin.H{"error": "Listing not available"})
		return
	case errors.Is(err, ErrNotEnoughQuantity):
		metrics.RecordPurchase("insufficient")
		c.JSON(http.StatusConflict, gin.H{"error": "Not enough quantity"})
		return
	case err != nil:
		metrics.RecordPurchase("error")
		h.logger.WithError(err).WithFields(logrus.Fields{
			"buyer_id":   buyerID,
			"listing_id": req.ListingID,
		}).Error("Purchase failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Purchase failed"})
		return
	}

	metrics.RecordPurchase("success")
	h.logger.WithFields(logrus.Fields{
		"buyer_id":       buyerID,
		"listing_id":     req.ListingID,
		"transaction_id": result.Transaction.ID,
		"quantity_kg":    result.Transaction.QuantityBoughtKg,
	}).Info("Purchase completed")

	c.JSON(http.StatusOK, gin.H{
		"message":        "Purchase successful",
		"transaction_id": result.Transaction.ID,
		"total_price":    result.Transaction.TotalPrice,
		"remaining_kg":   result.RemainingKg,
		"status":         result.Status,
	})
}

func (h *BuyerHandler) Dashboard(c *gin.Context) {
	var dash models.BuyerDashboard
	err := h.db.Model(&models.Transaction{}).
		Select("COUNT(*) AS total_orders, COALESCE(SUM(quantity_bought_kg), 0) AS total_kg, COALESCE(SUM(total_price), 0) AS total_spent").
		Where("buyer_id = ?", middleware.CurrentUserID(c)).
		Scan(&dash).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to build buyer dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	dash.TotalSpent = utils.RoundCents(dash.TotalSpent)
	c.JSON(http.StatusOK, dash)
}

func (h *BuyerHandler) Purchases(c *gin.Context) {
	items := []models.Transaction{}
	err := h.db.Preload("Listing").
		Where("buyer_id = ?", middleware.CurrentUserID(c)).
		Order("transaction_date DESC, transaction_id DESC").
		Find(&items).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch purchases")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
