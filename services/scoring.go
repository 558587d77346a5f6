package services

import (
	"math"
	"sort"

	"car-scraper/models"
)

const (
	priceWeight   = 0.5
	mileageWeight = 0.25
	yearWeight    = 0.25

	neutralScore = 50.0

	// mileageCeiling is the distance at which the mileage score reaches 0.
	mileageCeiling = 300000.0
	// yearFloor and yearSpan ramp the year score from 0 in 1995 to 100 in 2025.
	yearFloor = 1995
	yearSpan  = 30.0
)

// AveragePrice returns the rounded mean price of a batch, 0 for an empty batch.
func AveragePrice(listings []models.Listing) int {
	if len(listings) == 0 {
		return 0
	}
	total := 0
	for _, l := range listings {
		total += l.Price
	}
	return int(math.Round(float64(total) / float64(len(listings))))
}

// ScoreListing rates a listing from 0 to 100 against the batch average price.
// Cheaper, newer and less driven cars rank higher.
func ScoreListing(l models.Listing, averagePrice int) int {
	combined := priceScore(l.Price, averagePrice)*priceWeight +
		mileageScore(l.Mileage)*mileageWeight +
		yearScore(l.Year)*yearWeight
	return int(clamp(math.Round(combined)))
}

// Score ranks a whole batch: each listing gets its score and its distance to
// the batch average price, best first. Equal scores are ordered by price,
// then by id.
func Score(listings []models.Listing) []models.ScoredListing {
	avg := AveragePrice(listings)

	scored := make([]models.ScoredListing, 0, len(listings))
	for _, l := range listings {
		delta := 0
		if avg != 0 {
			delta = l.Price - avg
		}
		scored = append(scored, models.ScoredListing{
			Listing:    l,
			Score:      ScoreListing(l, avg),
			PriceDelta: delta,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.ID < b.ID
	})
	return scored
}

func priceScore(price, averagePrice int) float64 {
	if averagePrice == 0 {
		return neutralScore
	}
	avg := float64(averagePrice)
	return clamp(50 + (avg-float64(price))/avg*100)
}

func mileageScore(mileage int) float64 {
	if mileage <= 0 {
		return neutralScore
	}
	return clamp(100 - float64(mileage)/mileageCeiling*100)
}

func yearScore(year int) float64 {
	if year == 0 {
		return neutralScore
	}
	return clamp(float64(year-yearFloor) / yearSpan * 100)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
