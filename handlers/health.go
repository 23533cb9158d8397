package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const healthPingTimeout = 800 * time.Millisecond

var appStart = time.Now()

type HealthHandler struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewHealthHandler(db *gorm.DB, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Health reports whether the database answers a ping in time.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	dbErr := ""
	if h.db == nil {
		dbErr = "gorm db is nil"
	} else if sqlDB, err := h.db.DB(); err != nil {
		dbErr = "db.DB(): " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbErr = "ping: " + err.Error()
	}

	resp := gin.H{
		"service":    "cropverse-api",
		"uptime_sec": int(time.Since(appStart).Seconds()),
		"time":       time.Now().UTC().Format(time.RFC3339),
	}
	if dbErr != "" {
		h.logger.WithField("check", "database").Warn(dbErr)
		resp["status"] = "unhealthy"
		resp["database"] = gin.H{"ok": false, "err": dbErr}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["status"] = "healthy"
	resp["database"] = gin.H{"ok": true}
	c.JSON(http.StatusOK, resp)
}
