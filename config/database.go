package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite allows a single writer; one connection keeps purchase transactions serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// GormConfig is shared by the server and the test database.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

// Migrate creates or updates every table and seeds the crop catalogue.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Crop{},
		&models.Listing{},
		&models.Transaction{},
		&models.ChatThread{},
		&models.ChatMessage{},
		&models.Alert{},
		&models.DiseaseReport{},
		&models.PriceTrend{},
		&models.EmailOTP{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return SeedCrops(db)
}

func SeedCrops(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Crop{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count crops: %w", err)
	}
	if count > 0 {
		return nil
	}
	crops := make([]models.Crop, 0, len(models.DefaultCrops))
	for _, name := range models.DefaultCrops {
		crops = append(crops, models.Crop{CropName: name})
	}
	if err := db.Create(&crops).Error; err != nil {
		return fmt.Errorf("failed to seed crops: %w", err)
	}
	return nil
}

// BootstrapAdmin creates the admin account named by ADMIN_EMAIL/ADMIN_PASSWORD once.
func BootstrapAdmin(db *gorm.DB, cfg *Config, logger *logrus.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		if existing.Role != models.RoleAdmin {
			logger.WithField("email", cfg.AdminEmail).Warn("ADMIN_EMAIL belongs to a non-admin account, skipping bootstrap")
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	name, _, _ := strings.Cut(cfg.AdminEmail, "@")
	admin := models.User{
		Name:         name,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsVerified:   true,
		IsApproved:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	logger.WithField("email", admin.Email).Info("Admin account created")
	return nil
}
