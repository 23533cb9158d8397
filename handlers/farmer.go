package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type FarmerHandler struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

func NewFarmerHandler(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *FarmerHandler {
	return &FarmerHandler{db: db, config: cfg, logger: logger}
}

type CreateListingRequest struct {
	CropID     uint    `json:"crop_id" binding:"required"`
	QuantityKg float64 `json:"quantity_kg" binding:"required,gt=0"`
	PricePerKg float64 `json:"price_per_kg" binding:"required,gt=0"`
}

func (h *FarmerHandler) CreateListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	qty, price := utils.RoundQuantity(req.QuantityKg), utils.RoundCents(req.PricePerKg)
	if msg := listingAmountError(&qty, &price); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	var crop models.Crop
	if err := h.db.First(&crop, req.CropID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		return
	}

	listing := models.Listing{
		FarmerID:   middleware.CurrentUserID(c),
		CropID:     crop.ID,
		QuantityKg: qty,
		PricePerKg: price,
		Status:     models.ListingAvailable,
	}
	if err := h.db.Create(&listing).Error; err != nil {
		h.logger.WithError(err).Error("Failed to create listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create listing"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Listing created", "listing_id": listing.ID, "listing": listing})
}

// listingAmountError checks already rounded amounts; nil pointers are left unchanged.
func listingAmountError(qty, price *float64) string {
	if qty != nil && *qty <= 0 {
		return "Quantity must be at least 0.001 kg"
	}
	if price != nil && *price <= 0 {
		return "Price must be at least 0.01"
	}
	return ""
}

func (h *FarmerHandler) MyListings(c *gin.Context) {
	items := []models.MarketListing{}
	err := h.db.Table("crop_listings AS l").
		Select("l.listing_id, l.quantity_kg, l.price_per_kg, l.status, l.created_at, c.crop_id, c.crop_name").
		Joins("JOIN crops c ON c.crop_id = l.crop_id").
		Where("l.farmer_id = ?", middleware.CurrentUserID(c)).
		Order("l.created_at DESC, l.listing_id DESC").
		Scan(&items).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch my listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ownListing loads a listing owned by the caller; other farmers' listings read as missing.
func (h *FarmerHandler) ownListing(c *gin.Context) (*models.Listing, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return nil, false
	}
	var listing models.Listing
	err := h.db.Where("listing_id = ? AND farmer_id = ?", id, middleware.CurrentUserID(c)).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load listing"})
		return nil, false
	}
	return &listing, true
}

func (h *FarmerHandler) GetListing(c *gin.Context) {
	listing, ok := h.ownListing(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listing)
}

type UpdateListingRequest struct {
	QuantityKg *float64 `json:"quantity_kg" binding:"omitempty,gte=0"`
	PricePerKg *float64 `json:"price_per_kg" binding:"omitempty,gt=0"`
	Status     *string  `json:"status"`
}

func (h *FarmerHandler) UpdateListing(c *gin.Context) {
	var req UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	listing, ok := h.ownListing(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	qty := listing.QuantityKg
	if req.QuantityKg != nil {
		qty = utils.RoundQuantity(*req.QuantityKg)
		updates["quantity_kg"] = qty
	}
	if req.PricePerKg != nil {
		price := utils.RoundCents(*req.PricePerKg)
		if msg := listingAmountError(nil, &price); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		updates["price_per_kg"] = price
	}
	if req.Status != nil {
		if !models.ValidListingStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	// An empty listing is sold out and cannot be reopened.
	if qty <= 0 {
		if req.Status != nil && *req.Status == models.ListingAvailable {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Available listing needs a quantity"})
			return
		}
		updates["status"] = models.ListingSold
	}

	if err := h.db.Model(listing).Updates(updates).Error; err != nil {
		h.logger.WithError(err).WithField("listing_id", listing.ID).Error("Failed to update listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update listing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing updated", "listing": listing})
}

// DeleteListing removes a listing nobody has bought from yet; sold history must stay intact.
func (h *FarmerHandler) DeleteListing(c *gin.Context) {
	listing, ok := h.ownListing(c)
	if !ok {
		return
	}

	var purchases int64
	if err := h.db.Model(&models.Transaction{}).Where("listing_id = ?", listing.ID).Count(&purchases).Error; err != nil {
		h.logger.WithError(err).Error("Failed to count purchases")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete listing"})
		return
	}
	if purchases > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Listing has purchases; mark it Sold instead"})
		return
	}

	if err := h.db.Delete(listing).Error; err != nil {
		h.logger.WithError(err).WithField("listing_id", listing.ID).Error("Failed to delete listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete listing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

type DiseaseReportRequest struct {
	CropID   uint   `json:"crop_id" binding:"required"`
	Severity int    `json:"severity" binding:"required,min=1,max=10"`
	Notes    string `json:"notes"`
}

// ReportDisease stores a report and, when severe enough, alerts every farmer of the reporter's district.
func (h *FarmerHandler) ReportDisease(c *gin.Context) {
	var req DiseaseReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	farmerID := middleware.CurrentUserID(c)

	var crop models.Crop
	if err := h.db.First(&crop, req.CropID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crop not found"})
		return
	}

	report := models.DiseaseReport{
		FarmerID: farmerID,
		CropID:   crop.ID,
		Severity: req.Severity,
		Notes:    optionalString(req.Notes),
	}
	var alerts []models.Alert
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		if req.Severity < h.config.DiseaseAlertSeverity {
			return nil
		}

		var reporter models.User
		if err := tx.First(&reporter, farmerID).Error; err != nil {
			return err
		}
		recipients := []uint{farmerID}
		area := "your area"
		if reporter.District != nil {
			area = *reporter.District
			recipients = nil
			if err := tx.Model(&models.User{}).
				Where("role = ? AND district = ?", models.RoleFarmer, *reporter.District).
				Pluck("user_id", &recipients).Error; err != nil {
				return err
			}
		}

		msg := fmt.Sprintf("Severity %d/10 %s disease reported in %s", req.Severity, crop.CropName, area)
		for _, id := range recipients {
			alerts = append(alerts, models.Alert{FarmerID: id, AlertType: models.AlertDiseaseOutbreak, Message: msg})
		}
		if len(alerts) == 0 {
			return nil
		}
		return tx.Create(&alerts).Error
	})
	if err != nil {
		h.logger.WithError(err).WithField("farmer_id", farmerID).Error("Failed to store disease report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit report"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":        fmt.Sprintf("Disease report submitted. Alerts auto-generated if severity >= %d.", h.config.DiseaseAlertSeverity),
		"report_id":      report.ID,
		"alerts_created": len(alerts),
	})
}

func (h *FarmerHandler) Alerts(c *gin.Context) {
	items := []models.Alert{}
	err := h.db.Where("farmer_id = ?", middleware.CurrentUserID(c)).
		Order("created_at DESC, alert_id DESC").Limit(50).Find(&items).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *FarmerHandler) Summary(c *gin.Context) {
	farmerID := middleware.CurrentUserID(c)
	var summary models.FarmerSummary

	if err := h.db.Model(&models.Listing{}).Where("farmer_id = ?", farmerID).Count(&summary.TotalListings).Error; err != nil {
		h.summaryFailed(c, err)
		return
	}
	if err := h.db.Model(&models.Listing{}).Where("farmer_id = ? AND status = ?", farmerID, models.ListingAvailable).
		Count(&summary.ActiveListings).Error; err != nil {
		h.summaryFailed(c, err)
		return
	}
	err := h.db.Table("transactions AS t").
		Select("COALESCE(SUM(t.quantity_bought_kg), 0) AS sold_kg, COALESCE(SUM(t.total_price), 0) AS earnings").
		Joins("JOIN crop_listings l ON l.listing_id = t.listing_id").
		Where("l.farmer_id = ?", farmerID).
		Scan(&summary).Error
	if err != nil {
		h.summaryFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *FarmerHandler) summaryFailed(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Failed to build farmer summary")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load summary"})
}

// ExportSales streams the caller's sales history as an xlsx workbook.
func (h *FarmerHandler) ExportSales(c *gin.Context) {
	farmerID := middleware.CurrentUserID(c)

	var rows []models.SaleRow
	err := h.db.Table("transactions AS t").
		Select("t.transaction_id, t.transaction_date, c.crop_name, u.name AS buyer_name, t.quantity_bought_kg, t.total_price").
		Joins("JOIN crop_listings l ON l.listing_id = t.listing_id").
		Joins("JOIN crops c ON c.crop_id = l.crop_id").
		Joins("JOIN users u ON u.user_id = t.buyer_id").
		Where("l.farmer_id = ?", farmerID).
		Order("t.transaction_date DESC, t.transaction_id DESC").
		Scan(&rows).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch sales")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export sales"})
		return
	}

	buf, err := utils.BuildSalesWorkbook(rows)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export sales"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sales.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
