// Package testutil provides database and identity fixtures for tests.
package testutil

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const Password = "secret123"

var dbSeq atomic.Int64

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

// OpenTestDB opens a private in-memory sqlite database with the schema migrated.
// A single connection is used so transactions serialize like row locks would.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                  "test",
		JWTSecret:            "test-secret",
		TokenTTL:             time.Hour,
		OTPTTL:               10 * time.Minute,
		UploadDir:            t.TempDir(),
		DiseaseAlertSeverity: 8,
		ChatPageLimit:        200,
		AuthRateLimit:        1000,
		AuthRateBurst:        1000,
	}
}

func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// CreateUser inserts an account with password Password.
func CreateUser(t *testing.T, db *gorm.DB, name, role string, active bool) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(Password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsVerified:   active,
		IsApproved:   active,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Token signs a bearer token for u with cfg's secret.
func Token(t *testing.T, cfg *config.Config, u *models.User) string {
	t.Helper()
	tok, err := middleware.GenerateToken(u.ID, u.Role, u.Email, u.Name, cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func CropID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var crop models.Crop
	if err := db.Where("crop_name = ?", name).First(&crop).Error; err != nil {
		t.Fatalf("crop %s: %v", name, err)
	}
	return crop.ID
}

func CreateListing(t *testing.T, db *gorm.DB, farmerID, cropID uint, qty, price float64) *models.Listing {
	t.Helper()
	l := &models.Listing{FarmerID: farmerID, CropID: cropID, QuantityKg: qty, PricePerKg: price, Status: models.ListingAvailable}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}
