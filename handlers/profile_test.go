package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/testutil"
	"github.com/yourusername/cropverse/utils"
)

func TestProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenTestDB(t)
	cfg := testutil.TestConfig(t)
	images, err := utils.NewImageStore(cfg.UploadDir)
	require.NoError(t, err)
	handler := NewProfileHandler(db, cfg, images, testutil.DiscardLogger())

	farmer := testutil.CreateUser(t, db, "Salma", models.RoleFarmer, true)
	testutil.CreateUser(t, db, "Other", models.RoleBuyer, true)

	router := gin.New()
	router.Use(as(farmer))
	router.GET("/profile", handler.GetProfile)
	router.PUT("/profile", handler.UpdateProfile)

	t.Run("Get", func(t *testing.T) {
		w := performJSON(router, "GET", "/profile", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "salma@example.com")
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("Blank Fields Keep Values", func(t *testing.T) {
		w := performJSON(router, "PUT", "/profile", gin.H{"name": "  ", "district": "Rajshahi", "phone": "01700000000"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var u models.User
		require.NoError(t, db.First(&u, farmer.ID).Error)
		assert.Equal(t, "Salma", u.Name)
		require.NotNil(t, u.District)
		assert.Equal(t, "Rajshahi", *u.District)

		token, _ := decodeBody(t, w)["token"].(string)
		claims, err := middleware.ParseToken(token, cfg.JWTSecret)
		require.NoError(t, err)
		assert.Equal(t, farmer.ID, claims.UserID)
	})

	t.Run("Email Taken", func(t *testing.T) {
		w := performJSON(router, "PUT", "/profile", gin.H{"email": "OTHER@example.com"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Email Change Reissues Token", func(t *testing.T) {
		w := performJSON(router, "PUT", "/profile", gin.H{"email": "Salma.New@example.com"})
		require.Equal(t, http.StatusOK, w.Code)
		claims, err := middleware.ParseToken(decodeBody(t, w)["token"].(string), cfg.JWTSecret)
		require.NoError(t, err)
		assert.Equal(t, "salma.new@example.com", claims.Email)
	})

	t.Run("Avatar Upload", func(t *testing.T) {
		w := performMultipart(router, "PUT", "/profile", map[string]string{"name": "Salma B"},
			&filePart{"avatar", "face.webp", "image/webp", pngHeader})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var u models.User
		require.NoError(t, db.First(&u, farmer.ID).Error)
		assert.Equal(t, "Salma B", u.Name)
		require.NotNil(t, u.ProfileImage)
		assert.True(t, strings.HasSuffix(*u.ProfileImage, ".webp"))
	})

	t.Run("Avatar Too Large", func(t *testing.T) {
		big := make([]byte, utils.MaxAvatarBytes+1)
		w := performMultipart(router, "PUT", "/profile", nil, &filePart{"avatar", "big.png", "image/png", big})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file too large")
	})
}
