package leboncoin

import (
	"fmt"
	"net/url"
	"strings"

	"car-scraper/models"
)

const (
	DefaultBaseURL  = "https://www.leboncoin.fr/recherche"
	DefaultCategory = "2"

	MinRadiusKm = 5
	MaxRadiusKm = 500
)

// ClampRadiusKm bounds a stored radius to what the marketplace accepts.
func ClampRadiusKm(km int) int {
	if km < MinRadiusKm {
		return MinRadiusKm
	}
	if km > MaxRadiusKm {
		return MaxRadiusKm
	}
	return km
}

// BuildSearchURL maps a FilterSpec to a result-page URL, most recent ads
// first. Query keys are encoded in sorted order so the same spec always
// yields the same URL.
func BuildSearchURL(baseURL, category string, f models.FilterSpec) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if category == "" {
		category = DefaultCategory
	}

	params := url.Values{}
	params.Set("category", category)
	params.Set("text", strings.TrimSpace(f.Brand+" "+f.Model))
	params.Set("price", fmt.Sprintf("%d-%d", f.MinPrice, f.MaxPrice))
	params.Set("mileage", fmt.Sprintf("0-%d", f.MaxMileage))
	params.Set("year", fmt.Sprintf("%d-", f.MinYear))
	params.Set("reg", f.Region)
	params.Set("sort", "date")

	if city := strings.TrimSpace(f.City); city != "" {
		params.Set("locations", fmt.Sprintf("%s__%d", city, ClampRadiusKm(f.RadiusKm)*1000))
		params.Set("search_mode", "around")
	}

	return baseURL + "?" + params.Encode()
}
