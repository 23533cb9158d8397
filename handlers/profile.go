package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

type ProfileHandler struct {
	db     *gorm.DB
	config *config.Config
	images *utils.ImageStore
	logger *logrus.Logger
}

func NewProfileHandler(db *gorm.DB, cfg *config.Config, images *utils.ImageStore, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{db: db, config: cfg, images: images, logger: logger}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	var user models.User
	if err := h.db.First(&user, middleware.CurrentUserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to load profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type UpdateProfileRequest struct {
	Name     string `json:"name" form:"name"`
	Phone    string `json:"phone" form:"phone"`
	District string `json:"district" form:"district"`
	Email    string `json:"email" form:"email" binding:"omitempty,email"`
}

// UpdateProfile changes the non-blank fields and re-issues the token so its claims stay current.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if v := optionalString(req.Name); v != nil {
		updates["name"] = *v
	}
	if v := optionalString(req.Phone); v != nil {
		updates["phone"] = *v
	}
	if v := optionalString(req.District); v != nil {
		updates["district"] = *v
	}
	if v := optionalString(req.Email); v != nil {
		email := strings.ToLower(*v)
		var count int64
		if err := h.db.Model(&models.User{}).Where("email = ? AND user_id <> ?", email, userID).Count(&count).Error; err != nil {
			h.logger.WithError(err).Error("Failed to check email")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}
		updates["email"] = email
	}

	avatar, err := optionalFormFile(c, "avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload failed"})
		return
	}
	if avatar != nil {
		url, err := saveImage(c, h.images, avatar, utils.AvatarDir, "avatar", utils.MaxAvatarBytes)
		if err != nil {
			if isUploadRejection(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			h.logger.WithError(err).Error("Failed to store avatar")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
			return
		}
		updates["profile_image"] = url
	}

	if len(updates) > 0 {
		res := h.db.Model(&models.User{}).Where("user_id = ?", userID).Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
				return
			}
			h.logger.WithError(res.Error).WithField("user_id", userID).Error("Failed to update profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	token, err := issueToken(h.config, &user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated",
		"token":   token,
		"user":    user.Public(),
	})
}
