package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/testutil"
)

func TestPurgeExpiredOTPs(t *testing.T) {
	db := testutil.OpenTestDB(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	otps := []models.EmailOTP{
		{Email: "live@example.com", Code: "111111", Purpose: models.PurposeSignupVerify, ExpiresAt: now.Add(5 * time.Minute)},
		{Email: "old@example.com", Code: "222222", Purpose: models.PurposeSignupVerify, ExpiresAt: now.Add(-time.Minute)},
		{Email: "used@example.com", Code: "333333", Purpose: models.PurposeSignupVerify, ExpiresAt: now.Add(5 * time.Minute), Used: true},
	}
	require.NoError(t, db.Create(&otps).Error)

	n, err := PurgeExpiredOTPs(context.Background(), db, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var left []models.EmailOTP
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "live@example.com", left[0].Email)
}

func TestRollupPriceTrends(t *testing.T) {
	db := testutil.OpenTestDB(t)
	farmer := testutil.CreateUser(t, db, "Farmer", models.RoleFarmer, true)
	buyer := testutil.CreateUser(t, db, "Buyer", models.RoleBuyer, true)
	rice := testutil.CropID(t, db, "Rice")
	jute := testutil.CropID(t, db, "Jute")
	riceListing := testutil.CreateListing(t, db, farmer.ID, rice, 1000, 30)
	juteListing := testutil.CreateListing(t, db, farmer.ID, jute, 1000, 40)

	march := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]models.Transaction{
		{ListingID: riceListing.ID, BuyerID: buyer.ID, QuantityBoughtKg: 10, TotalPrice: 300, TransactionDate: march},
		{ListingID: riceListing.ID, BuyerID: buyer.ID, QuantityBoughtKg: 10, TotalPrice: 340, TransactionDate: march.Add(24 * time.Hour)},
		{ListingID: juteListing.ID, BuyerID: buyer.ID, QuantityBoughtKg: 5, TotalPrice: 200, TransactionDate: march},
		{ListingID: riceListing.ID, BuyerID: buyer.ID, QuantityBoughtKg: 1, TotalPrice: 99, TransactionDate: march.AddDate(0, -1, 0)},
	}).Error)

	n, err := RollupPriceTrends(context.Background(), db, time.Date(2026, 3, 20, 0, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var trend models.PriceTrend
	require.NoError(t, db.Where("crop_id = ? AND year = ? AND month = ?", rice, 2026, 3).First(&trend).Error)
	assert.Equal(t, 32.0, trend.AvgPrice)

	require.NoError(t, db.Create(&models.Transaction{
		ListingID: riceListing.ID, BuyerID: buyer.ID, QuantityBoughtKg: 20, TotalPrice: 720, TransactionDate: march.Add(48 * time.Hour),
	}).Error)

	// First run of April closes out March.
	n, err = RollupPriceTrends(context.Background(), db, time.Date(2026, 4, 1, 0, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var trends []models.PriceTrend
	require.NoError(t, db.Where("crop_id = ?", rice).Find(&trends).Error)
	require.Len(t, trends, 1)
	assert.Equal(t, 34.0, trends[0].AvgPrice)

	n, err = RollupPriceTrends(context.Background(), db, time.Date(2026, 5, 10, 0, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerLifecycle(t *testing.T) {
	s, err := NewScheduler(testutil.OpenTestDB(t), testutil.DiscardLogger())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
