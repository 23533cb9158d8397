package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/metrics"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db     *gorm.DB
	config *config.Config
	mailer utils.Mailer
	images *utils.ImageStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, mailer utils.Mailer, images *utils.ImageStore, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		config: cfg,
		mailer: mailer,
		images: images,
		logger: logger,
		now:    time.Now,
	}
}

type SignupRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Role     string `json:"role" form:"role" binding:"required,oneof=farmer buyer"`
	District string `json:"district" form:"district"`
}

// Signup registers an unverified, unapproved farmer or buyer and mails a verification code.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		h.logger.WithError(err).Error("Failed to check email")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	}

	avatar, err := optionalFormFile(c, "avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload failed"})
		return
	}
	var profileImage *string
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
		profileImage = &url
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}
	code, err := utils.NewOTPCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		District:     optionalString(req.District),
		ProfileImage: profileImage,
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		otp := models.EmailOTP{
			Email:     user.Email,
			Code:      code,
			Purpose:   models.PurposeSignupVerify,
			ExpiresAt: h.now().Add(h.config.OTPTTL),
		}
		return tx.Create(&otp).Error
	})
	if err != nil {
		if profileImage != nil {
			_ = os.Remove(filepath.Join(h.config.UploadDir, strings.TrimPrefix(*profileImage, "/uploads/")))
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
		h.logger.WithError(err).WithField("email", req.Email).Error("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}

	metrics.RecordSignup(user.Role)
	go h.sendSignupMail(user, code)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Signup submitted. Check your email for the verification code. Admin approval pending.",
		"user_id": user.ID,
	})
}

func (h *AuthHandler) sendSignupMail(user models.User, code string) {
	log := h.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email})
	if err := h.mailer.SendUserSignupCode(user.Email, user.Name, code, h.config.OTPTTL); err != nil {
		log.WithError(err).Error("Email send failed")
	}
	if h.config.AdminEmail != "" {
		if err := h.mailer.SendAdminSignupCode(h.config.AdminEmail, user.Email, user.Name, user.Role, code); err != nil {
			log.WithError(err).Error("Admin notification failed")
		}
	}
}

type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// Verify consumes the latest matching signup code and marks the account verified.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email/code"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)

	var otp models.EmailOTP
	err := h.db.Where("email = ? AND code = ? AND purpose = ?", email, code, models.PurposeSignupVerify).
		Order("otp_id DESC").First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid code"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load code")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}
	if otp.Used {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code already used"})
		return
	}
	if otp.Expired(h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code expired"})
		return
	}

	errUsed := errors.New("code already used")
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EmailOTP{}).Where("otp_id = ? AND used = ?", otp.ID, false).Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errUsed
		}
		return tx.Model(&models.User{}).Where("email = ?", email).Update("is_verified", true).Error
	})
	if errors.Is(err, errUsed) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code already used"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Login issues a bearer token. Farmers and buyers must be verified and approved first.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToLower(strings.TrimSpace(req.Role))

	var user models.User
	err := h.db.Where("email = ? AND role = ?", email, role).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.WithError(err).Error("Failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.CanTrade() {
		if !user.IsVerified {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not verified. Enter confirmation code."})
			return
		}
		if !user.IsApproved {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin approval pending."})
			return
		}
	}

	token, err := issueToken(h.config, &user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user.Public(),
	})
}

func issueToken(cfg *config.Config, u *models.User) (string, error) {
	return middleware.GenerateToken(u.ID, u.Role, u.Email, u.Name, cfg.JWTSecret, cfg.TokenTTL)
}
