package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/cropverse/config"
	"github.com/yourusername/cropverse/jobs"
	"github.com/yourusername/cropverse/router"
	"github.com/yourusername/cropverse/utils"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.WithField("config", cfg.String()).Info("Configuration loaded")

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := config.BootstrapAdmin(db, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Failed to bootstrap admin account")
	}

	var mailer utils.Mailer = &utils.LogMailer{Logger: logger}
	if cfg.SMTPHost != "" {
		mailer = utils.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		logger.Warn("SMTP_HOST not set; verification codes will only be logged")
	}

	engine, err := router.New(cfg, db, logger, mailer)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up router")
	}

	var scheduler *jobs.Scheduler
	if cfg.JobsEnabled {
		scheduler, err = jobs.NewScheduler(db, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to schedule jobs")
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Port).Info("Starting CropVerse API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
