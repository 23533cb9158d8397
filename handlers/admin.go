package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAdminHandler(db *gorm.DB, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{db: db, logger: logger}
}

func (h *AdminHandler) Pending(c *gin.Context) {
	users := []models.User{}
	err := h.db.Where("is_approved = ? AND role <> ?", false, models.RoleAdmin).
		Order("created_at DESC, user_id DESC").Find(&users).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch pending users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *AdminHandler) Users(c *gin.Context) {
	users := []models.User{}
	if err := h.db.Order("created_at DESC, user_id DESC").Find(&users).Error; err != nil {
		h.logger.WithError(err).Error("Failed to fetch users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

type ApproveRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *AdminHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	res := h.db.Model(&models.User{}).Where("email = ?", email).Update("is_approved", true)
	if res.Error != nil {
		h.logger.WithError(res.Error).WithField("email", email).Error("Failed to approve user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve user"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	h.logger.WithField("email", email).Info("User approved")
	c.JSON(http.StatusOK, gin.H{"message": "User approved"})
}

// DeleteUser removes a buyer or farmer and everything hanging off the account.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}
	if id == middleware.CurrentUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete yourself"})
		return
	}

	var user models.User
	err := h.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	if user.Role != models.RoleBuyer && user.Role != models.RoleFarmer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only buyers and farmers can be deleted"})
		return
	}

	if err := DeleteUserCascade(h.db, &user); err != nil {
		h.logger.WithError(err).WithField("user_id", id).Error("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": id, "role": user.Role}).Info("User deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// DeleteUserCascade deletes user with their chat, trades, listings, alerts, reports and codes atomically.
func DeleteUserCascade(db *gorm.DB, user *models.User) error {
	return db.Transaction(func(tx *gorm.DB) error {
		threads := tx.Model(&models.ChatThread{}).Select("thread_id").
			Where("buyer_id = ? OR farmer_id = ?", user.ID, user.ID)
		listings := tx.Model(&models.Listing{}).Select("listing_id").Where("farmer_id = ?", user.ID)

		steps := []struct {
			name  string
			model interface{}
			query *gorm.DB
		}{
			{"chat messages", &models.ChatMessage{}, tx.Where("thread_id IN (?)", threads)},
			{"chat threads", &models.ChatThread{}, tx.Where("buyer_id = ? OR farmer_id = ?", user.ID, user.ID)},
			{"transactions", &models.Transaction{}, tx.Where("buyer_id = ? OR listing_id IN (?)", user.ID, listings)},
			{"listings", &models.Listing{}, tx.Where("farmer_id = ?", user.ID)},
			{"alerts", &models.Alert{}, tx.Where("farmer_id = ?", user.ID)},
			{"disease reports", &models.DiseaseReport{}, tx.Where("farmer_id = ?", user.ID)},
			{"otps", &models.EmailOTP{}, tx.Where("email = ?", user.Email)},
		}
		for _, s := range steps {
			if err := s.query.Delete(s.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", s.name, err)
			}
		}
		if err := tx.Delete(&models.User{}, user.ID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
