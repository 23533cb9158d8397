// Package router assembles the HTTP surface of the API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/handlers"
	"github.com/yourusername/cropverse/metrics"
	"github.com/yourusername/cropverse/middleware"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
)

const maxMultipartMemory = 8 << 20

func New(cfg *config.Config, db *gorm.DB, logger *logrus.Logger, mailer utils.Mailer) (*gin.Engine, error) {
	images, err := utils.NewImageStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), metrics.Middleware(), cors())

	router.Static("/uploads", cfg.UploadDir)
	if cfg.StaticDir != "" {
		router.Static("/app", cfg.StaticDir)
	}

	health := handlers.NewHealthHandler(db, logger)
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := handlers.NewAuthHandler(db, cfg, mailer, images, logger)
	profileHandler := handlers.NewProfileHandler(db, cfg, images, logger)
	marketHandler := handlers.NewMarketHandler(db, cfg, logger)
	farmerHandler := handlers.NewFarmerHandler(db, cfg, logger)
	buyerHandler := handlers.NewBuyerHandler(db, cfg, logger)
	adminHandler := handlers.NewAdminHandler(db, logger)
	chatHandler := handlers.NewChatHandler(db, cfg, images, logger)

	api := router.Group("/api")
	api.GET("/health", health.Health)

	auth := api.Group("/auth")
	auth.Use(middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, logger).Handler())
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/verify", authHandler.Verify)
		auth.POST("/login", authHandler.Login)
	}

	api.GET("/crops", marketHandler.ListCrops)
	api.GET("/listings", marketHandler.ListListings)
	api.GET("/price-trends", marketHandler.PriceTrends)
	api.GET("/price-trends/daily", marketHandler.DailyPriceTrends)

	secured := api.Group("")
	secured.Use(middleware.JwtAuthMiddleware(cfg))
	{
		secured.GET("/profile", profileHandler.GetProfile)
		secured.PUT("/profile", profileHandler.UpdateProfile)

		secured.GET("/farmers/:id/listings",
			middleware.RequireRole(models.RoleBuyer, models.RoleAdmin), marketHandler.FarmerListings)

		farmer := secured.Group("/farmer", middleware.RequireRole(models.RoleFarmer))
		{
			farmer.POST("/listings", farmerHandler.CreateListing)
			farmer.GET("/listings", farmerHandler.MyListings)
			farmer.GET("/my-listings", farmerHandler.MyListings)
			farmer.GET("/listings/:id", farmerHandler.GetListing)
			farmer.PUT("/listings/:id", farmerHandler.UpdateListing)
			farmer.DELETE("/listings/:id", farmerHandler.DeleteListing)
			farmer.POST("/disease-report", farmerHandler.ReportDisease)
			farmer.GET("/alerts", farmerHandler.Alerts)
			farmer.GET("/summary", farmerHandler.Summary)
			farmer.GET("/sales/export", farmerHandler.ExportSales)
		}

		buyer := secured.Group("/buyer", middleware.RequireRole(models.RoleBuyer))
		{
			buyer.POST("/purchase", buyerHandler.Purchase)
			buyer.GET("/dashboard", buyerHandler.Dashboard)
			buyer.GET("/purchases", buyerHandler.Purchases)
		}

		admin := secured.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/pending", adminHandler.Pending)
			admin.GET("/pending-users", adminHandler.Pending)
			admin.GET("/users", adminHandler.Users)
			admin.POST("/approve", adminHandler.Approve)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
		}

		chat := secured.Group("/chat", middleware.RequireRole(models.RoleBuyer, models.RoleFarmer))
		{
			chat.POST("/thread", chatHandler.CreateThread)
			chat.POST("/send", chatHandler.Send)
			chat.POST("/send-image", chatHandler.SendImage)
			chat.GET("/messages", chatHandler.Messages)
			chat.GET("/threads", chatHandler.Threads)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "path": c.Request.URL.Path})
	})

	return router, nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
