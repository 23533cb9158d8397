package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/testutil"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

func setupAuth(t *testing.T) (*gin.Engine, *AuthHandler, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenTestDB(t)
	cfg := testutil.TestConfig(t)
	logger := testutil.DiscardLogger()
	images, err := utils.NewImageStore(cfg.UploadDir)
	require.NoError(t, err)

	handler := NewAuthHandler(db, cfg, &utils.LogMailer{Logger: logger}, images, logger)
	router := gin.New()
	router.POST("/signup", handler.Signup)
	router.POST("/verify", handler.Verify)
	router.POST("/login", handler.Login)
	return router, handler, db
}

func latestCode(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	var otp models.EmailOTP
	require.NoError(t, db.Where("email = ?", email).Order("otp_id DESC").First(&otp).Error)
	return otp.Code
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	router, _, db := setupAuth(t)

	w := performJSON(router, "POST", "/signup", gin.H{
		"name": "Rahim", "email": "Rahim@Example.com", "password": "secret123", "role": "farmer", "district": "Bogura",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, db.Where("email = ?", "rahim@example.com").First(&user).Error)
	assert.False(t, user.IsVerified)
	assert.False(t, user.IsApproved)
	require.NotNil(t, user.District)
	assert.Equal(t, "Bogura", *user.District)

	login := gin.H{"email": "rahim@example.com", "password": "secret123", "role": "farmer"}

	w = performJSON(router, "POST", "/login", login)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Not verified")

	w = performJSON(router, "POST", "/verify", gin.H{"email": "rahim@example.com", "code": "000000x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid code")

	code := latestCode(t, db, "rahim@example.com")
	assert.Len(t, code, 6)
	w = performJSON(router, "POST", "/verify", gin.H{"email": "rahim@example.com", "code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.First(&user, user.ID).Error)
	assert.True(t, user.IsVerified)

	w = performJSON(router, "POST", "/verify", gin.H{"email": "rahim@example.com", "code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Code already used")

	w = performJSON(router, "POST", "/login", login)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Admin approval pending.")

	require.NoError(t, db.Model(&user).Update("is_approved", true).Error)
	w = performJSON(router, "POST", "/login", login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestSignupValidation(t *testing.T) {
	router, _, db := setupAuth(t)
	testutil.CreateUser(t, db, "taken", models.RoleBuyer, true)

	tests := []struct {
		name           string
		body           gin.H
		expectedStatus int
	}{
		{"Admin Role Rejected", gin.H{"name": "a", "email": "a@example.com", "password": "secret123", "role": "admin"}, http.StatusBadRequest},
		{"Short Password", gin.H{"name": "a", "email": "a@example.com", "password": "123", "role": "buyer"}, http.StatusBadRequest},
		{"Bad Email", gin.H{"name": "a", "email": "nope", "password": "secret123", "role": "buyer"}, http.StatusBadRequest},
		{"Duplicate Email", gin.H{"name": "b", "email": "TAKEN@example.com", "password": "secret123", "role": "buyer"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, "POST", "/signup", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestSignupWithAvatar(t *testing.T) {
	router, handler, db := setupAuth(t)
	fields := map[string]string{"name": "Karim", "email": "karim@example.com", "password": "secret123", "role": "buyer"}

	w := performMultipart(router, "POST", "/signup", fields, &filePart{"avatar", "me.txt", "text/plain", []byte("hi")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "only image files are allowed")

	w = performMultipart(router, "POST", "/signup", fields, &filePart{"avatar", "me.jpg", "image/jpeg", pngHeader})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, db.Where("email = ?", "karim@example.com").First(&user).Error)
	require.NotNil(t, user.ProfileImage)
	assert.True(t, strings.HasPrefix(*user.ProfileImage, "/uploads/avatars/avatar_"))
	assert.True(t, strings.HasSuffix(*user.ProfileImage, ".jpg"))

	onDisk := filepath.Join(handler.config.UploadDir, strings.TrimPrefix(*user.ProfileImage, "/uploads/"))
	_, err := os.Stat(onDisk)
	assert.NoError(t, err)
}

func TestVerifyExpiredCode(t *testing.T) {
	router, handler, db := setupAuth(t)
	w := performJSON(router, "POST", "/signup", gin.H{"name": "Late", "email": "late@example.com", "password": "secret123", "role": "buyer"})
	require.Equal(t, http.StatusCreated, w.Code)

	handler.now = func() time.Time { return time.Now().Add(time.Hour) }
	w = performJSON(router, "POST", "/verify", gin.H{"email": "late@example.com", "code": latestCode(t, db, "late@example.com")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Code expired")
}

func TestLoginRejections(t *testing.T) {
	router, _, db := setupAuth(t)
	testutil.CreateUser(t, db, "Buyer", models.RoleBuyer, true)
	admin := testutil.CreateUser(t, db, "Admin", models.RoleAdmin, false)

	tests := []struct {
		name           string
		body           gin.H
		expectedStatus int
	}{
		{"Missing Fields", gin.H{"email": "buyer@example.com"}, http.StatusBadRequest},
		{"Wrong Password", gin.H{"email": "buyer@example.com", "password": "nope", "role": "buyer"}, http.StatusUnauthorized},
		{"Wrong Role", gin.H{"email": "buyer@example.com", "password": testutil.Password, "role": "farmer"}, http.StatusUnauthorized},
		{"Unknown Email", gin.H{"email": "ghost@example.com", "password": testutil.Password, "role": "buyer"}, http.StatusUnauthorized},
		{"Active Buyer", gin.H{"email": "buyer@example.com", "password": testutil.Password, "role": "buyer"}, http.StatusOK},
		{"Admin Skips Approval", gin.H{"email": admin.Email, "password": testutil.Password, "role": "admin"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, "POST", "/login", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}
