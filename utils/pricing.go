package utils

import (
	"math"
	"sort"
	"time"

	"github.com/yourusername/cropverse/models"
)

// Sale is one paid purchase used for price statistics.
type Sale struct {
	At         time.Time
	QuantityKg float64
	TotalPrice float64
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundQuantity keeps kilogram amounts at gram precision.
func RoundQuantity(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// AveragePrice is the quantity weighted price per kg of sales, 0 when nothing sold.
func AveragePrice(sales []Sale) float64 {
	var qty, total float64
	for _, s := range sales {
		qty += s.QuantityKg
		total += s.TotalPrice
	}
	if qty <= 0 {
		return 0
	}
	return RoundCents(total / qty)
}

// DailyAverages groups sales by UTC calendar day, oldest day first.
func DailyAverages(sales []Sale) []models.DailyPrice {
	byDay := make(map[string][]Sale)
	for _, s := range sales {
		day := s.At.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], s)
	}

	out := make([]models.DailyPrice, 0, len(byDay))
	for day, group := range byDay {
		out = append(out, models.DailyPrice{Day: day, AvgPrice: AveragePrice(group)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
