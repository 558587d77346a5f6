package services

import (
	"sort"

	"car-scraper/models"
	"car-scraper/utils"
)

const topScoredCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(snapshot []models.ScoredListing) *models.InsightReport {
	report := &models.InsightReport{
		TopScored:          []models.ScoredListing{},
		ListingsByLocation: make(map[string]int),
	}

	if len(snapshot) == 0 {
		return report
	}

	report.TotalListings = len(snapshot)

	var priced []models.Listing
	for _, l := range snapshot {
		if l.Location != "" {
			report.ListingsByLocation[l.Location]++
		}
		if l.Price <= 0 {
			continue
		}
		priced = append(priced, l.Listing)

		if report.Cheapest == nil || l.Price < report.Cheapest.Price {
			cheapest := l
			report.Cheapest = &cheapest
		}
		if report.MinPrice == 0 || l.Price < report.MinPrice {
			report.MinPrice = l.Price
		}
		if l.Price > report.MaxPrice {
			report.MaxPrice = l.Price
		}
	}
	report.AveragePrice = AveragePrice(priced)

	ranked := make([]models.ScoredListing, len(snapshot))
	copy(ranked, snapshot)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topScoredCount {
		ranked = ranked[:topScoredCount]
	}
	report.TopScored = ranked

	return report
}

// Log writes a short summary of the report.
func (s *InsightService) Log(r *models.InsightReport) {
	if r.TotalListings == 0 {
		s.logger.Info("[insights] Snapshot is empty")
		return
	}

	s.logger.Info("[insights] %d listings | avg %d € | min %d € | max %d €",
		r.TotalListings, r.AveragePrice, r.MinPrice, r.MaxPrice)

	if r.Cheapest != nil {
		s.logger.Info("[insights] Cheapest: %s (%s) at %d €",
			truncate(r.Cheapest.Title, 50), r.Cheapest.Location, r.Cheapest.Price)
	}

	for i, l := range r.TopScored {
		s.logger.Info("[insights] #%d %-40s score %3d  delta %+d €",
			i+1, truncate(l.Title, 38), l.Score, l.PriceDelta)
	}

	type locCount struct {
		loc   string
		count int
	}
	locs := make([]locCount, 0, len(r.ListingsByLocation))
	for loc, cnt := range r.ListingsByLocation {
		locs = append(locs, locCount{loc, cnt})
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].count != locs[j].count {
			return locs[i].count > locs[j].count
		}
		return locs[i].loc < locs[j].loc
	})
	for _, lc := range locs {
		s.logger.Debug("[insights] %-30s %d", truncate(lc.loc, 28), lc.count)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
