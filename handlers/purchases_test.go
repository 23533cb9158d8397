package handlers

import (
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/cropverse/metrics"
	"github.com/yourusername/cropverse/models"
	"github.com/yourusername/cropverse/testutil"
)

func TestPurchaseListing(t *testing.T) {
	db := testutil.OpenTestDB(t)
	farmer := testutil.CreateUser(t, db, "Farmer", models.RoleFarmer, true)
	buyer := testutil.CreateUser(t, db, "Buyer", models.RoleBuyer, true)
	listing := testutil.CreateListing(t, db, farmer.ID, testutil.CropID(t, db, "Potato"), 10, 22.5)

	res, err := PurchaseListing(db, buyer.ID, listing.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Transaction.TotalPrice)
	assert.Equal(t, 6.0, res.RemainingKg)
	assert.Equal(t, models.ListingAvailable, res.Status)

	_, err = PurchaseListing(db, buyer.ID, listing.ID, 6.5)
	assert.ErrorIs(t, err, ErrNotEnoughQuantity)

	res, err = PurchaseListing(db, buyer.ID, listing.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.RemainingKg)
	assert.Equal(t, models.ListingSold, res.Status)

	_, err = PurchaseListing(db, buyer.ID, listing.ID, 1)
	assert.ErrorIs(t, err, ErrListingNotAvailable)

	_, err = PurchaseListing(db, buyer.ID, 9999, 1)
	assert.ErrorIs(t, err, ErrListingNotFound)

	_, err = PurchaseListing(db, buyer.ID, listing.ID, 0.0004)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	var l models.Listing
	require.NoError(t, db.First(&l, listing.ID).Error)
	assert.Equal(t, 0.0, l.QuantityKg)
	assert.Equal(t, models.ListingSold, l.Status)

	var count int64
	db.Model(&models.Transaction{}).Where("listing_id = ?", listing.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestPurchaseFractionalQuantities(t *testing.T) {
	db := testutil.OpenTestDB(t)
	farmer := testutil.CreateUser(t, db, "Farmer", models.RoleFarmer, true)
	buyer := testutil.CreateUser(t, db, "Buyer", models.RoleBuyer, true)
	listing := testutil.CreateListing(t, db, farmer.ID, testutil.CropID(t, db, "Onion"), 0.3, 10)

	for i := 0; i < 3; i++ {
		_, err := PurchaseListing(db, buyer.ID, listing.ID, 0.1)
		require.NoError(t, err, "purchase %d", i)
	}

	var l models.Listing
	require.NoError(t, db.First(&l, listing.ID).Error)
	assert.Equal(t, 0.0, l.QuantityKg)
	assert.Equal(t, models.ListingSold, l.Status)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	db := testutil.OpenTestDB(t)
	farmer := testutil.CreateUser(t, db, "Farmer", models.RoleFarmer, true)
	buyerA := testutil.CreateUser(t, db, "BuyerA", models.RoleBuyer, true)
	buyerB := testutil.CreateUser(t, db, "BuyerB", models.RoleBuyer, true)
	listing := testutil.CreateListing(t, db, farmer.ID, testutil.CropID(t, db, "Rice"), 10, 30)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyer := range []*models.User{buyerA, buyerB} {
		wg.Add(1)
		go func(i int, buyerID uint) {
			defer wg.Done()
			_, errs[i] = PurchaseListing(db, buyerID, listing.ID, 7)
		}(i, buyer.ID)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrNotEnoughQuantity):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	var l models.Listing
	require.NoError(t, db.First(&l, listing.ID).Error)
	assert.Equal(t, 3.0, l.QuantityKg)
}

func TestBuyerHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.OpenTestDB(t)
	handler := NewBuyerHandler(db, testutil.TestConfig(t), testutil.DiscardLogger())
	farmer := testutil.CreateUser(t, db, "Farmer", models.RoleFarmer, true)
	buyer := testutil.CreateUser(t, db, "Buyer", models.RoleBuyer, true)
	listing := testutil.CreateListing(t, db, farmer.ID, testutil.CropID(t, db, "Maize"), 50, 18)

	router := gin.New()
	router.Use(as(buyer))
	router.POST("/purchase", handler.Purchase)
	router.GET("/dashboard", handler.Dashboard)
	router.GET("/purchases", handler.Purchases)

	successes := promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("success"))
	shortfalls := promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("insufficient"))
	invalid := promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("invalid"))

	tests := []struct {
		name           string
		body           gin.H
		expectedStatus int
		expectedError  string
	}{
		{"Zero Quantity", gin.H{"listing_id": listing.ID, "quantity_kg": 0}, http.StatusBadRequest, ""},
		{"Rounds To Zero", gin.H{"listing_id": listing.ID, "quantity_kg": 0.0004}, http.StatusBadRequest, "Quantity must be at least 0.001 kg"},
		{"Unknown Listing", gin.H{"listing_id": 9999, "quantity_kg": 1}, http.StatusNotFound, "Listing not found"},
		{"Too Much", gin.H{"listing_id": listing.ID, "quantity_kg": 51}, http.StatusConflict, "Not enough quantity"},
		{"Success", gin.H{"listing_id": listing.ID, "quantity_kg": 20}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(router, "POST", "/purchase", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeBody(t, w)["error"])
			}
		})
	}

	assert.Equal(t, successes+1, promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("success")))
	assert.Equal(t, shortfalls+1, promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("insufficient")))
	assert.Equal(t, invalid+1, promtestutil.ToFloat64(metrics.Purchases.WithLabelValues("invalid")))

	var recorded int64
	db.Model(&models.Transaction{}).Where("quantity_bought_kg <= 0").Count(&recorded)
	assert.Zero(t, recorded)

	w := performJSON(router, "GET", "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decodeBody(t, w)
	assert.Equal(t, float64(1), dash["total_orders"])
	assert.Equal(t, float64(20), dash["total_kg"])
	assert.Equal(t, float64(360), dash["total_spent"])

	items := itemsOf(t, performJSON(router, "GET", "/purchases", nil))
	require.Len(t, items, 1)
	purchase := items[0].(map[string]interface{})
	assert.Equal(t, float64(listing.ID), purchase["listing_id"])
	preloaded := purchase["listing"].(map[string]interface{})
	assert.Equal(t, float64(30), preloaded["quantity_kg"])
	assert.Equal(t, models.ListingAvailable, preloaded["status"])
}
