// Package jobs runs periodic maintenance against the store.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PurgeOTPSchedule    = "@every 15m"
	PriceRollupSchedule = "10 0 * * *"
)

// Scheduler owns the cron runner; jobs share one context cancelled on Stop.
type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(db *gorm.DB, logger *logrus.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		db:     db,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := s.cron.AddFunc(PurgeOTPSchedule, s.run("purge_otps", func(ctx context.Context, now time.Time) (int64, error) {
		return PurgeExpiredOTPs(ctx, s.db, now)
	})); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule otp purge: %w", err)
	}
	if _, err := s.cron.AddFunc(PriceRollupSchedule, s.run("price_rollup", func(ctx context.Context, now time.Time) (int64, error) {
		return RollupPriceTrends(ctx, s.db, now)
	})); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule price rollup: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run(name string, job func(context.Context, time.Time) (int64, error)) func() {
	return func() {
		start := time.Now()
		n, err := job(s.ctx, start.UTC())
		entry := s.logger.WithFields(logrus.Fields{
			"job":         name,
			"rows":        n,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Error("job failed")
			return
		}
		entry.Info("job finished")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// PurgeExpiredOTPs deletes codes that were used or have expired.
func PurgeExpiredOTPs(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("used = ? OR expires_at < ?", true, now).Delete(&models.EmailOTP{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RollupPriceTrends upserts the average paid unit price of every crop traded in now's month.
// It returns the number of crops written.
func RollupPriceTrends(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	// The 00:10 run on the first of a month closes out the previous one.
	if now.Sub(monthStart) < time.Hour {
		monthStart = monthStart.AddDate(0, -1, 0)
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	var rows []struct {
		CropID           uint
		TransactionDate  time.Time
		QuantityBoughtKg float64
		TotalPrice       float64
	}
	err := db.WithContext(ctx).Table("transactions AS t").
		Select("l.crop_id, t.transaction_date, t.quantity_bought_kg, t.total_price").
		Joins("JOIN crop_listings l ON l.listing_id = t.listing_id").
		Where("t.transaction_date >= ? AND t.transaction_date < ?", monthStart, monthEnd).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("load monthly sales: %w", err)
	}

	byCrop := make(map[uint][]utils.Sale)
	for _, r := range rows {
		byCrop[r.CropID] = append(byCrop[r.CropID], utils.Sale{At: r.TransactionDate, QuantityKg: r.QuantityBoughtKg, TotalPrice: r.TotalPrice})
	}
	if len(byCrop) == 0 {
		return 0, nil
	}

	trends := make([]models.PriceTrend, 0, len(byCrop))
	for cropID, sales := range byCrop {
		trends = append(trends, models.PriceTrend{
			CropID:   cropID,
			Year:     monthStart.Year(),
			Month:    int(monthStart.Month()),
			AvgPrice: utils.AveragePrice(sales),
		})
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crop_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"avg_price"}),
	}).Create(&trends).Error
	if err != nil {
		return 0, fmt.Errorf("upsert price trends: %w", err)
	}
	return int64(len(trends)), nil
}
