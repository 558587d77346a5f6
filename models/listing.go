package models

// FilterSpec holds validated marketplace search criteria.
// It is also the shape of the persisted default-filter configuration.
type FilterSpec struct {
	Brand      string `json:"brand" validate:"required"`
	Model      string `json:"model" validate:"required"`
	MinPrice   int    `json:"minPrice" validate:"min=0"`
	MaxPrice   int    `json:"maxPrice" validate:"gt=0,gtefield=MinPrice"`
	MinYear    int    `json:"minYear" validate:"min=1900"`
	MaxMileage int    `json:"maxMileage" validate:"min=0"`
	Region     string `json:"region" validate:"required"`
	City       string `json:"city"`
	RadiusKm   int    `json:"radiusKm"`
}

// Listing is one classified ad extracted from a result page, before scoring.
// It only lives for the duration of a pipeline run.
type Listing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    int    `json:"price"`
	Year     int    `json:"year"`
	Mileage  int    `json:"mileage"`
	Location string `json:"location"`
	Image    string `json:"image"`
	URL      string `json:"url"`
}

// ScoredListing is a Listing ranked against the rest of its batch.
// This is the persisted snapshot record.
type ScoredListing struct {
	Listing
	Score      int `json:"score"`
	PriceDelta int `json:"priceDelta"`
}

// InsightReport holds summary statistics over one snapshot.
type InsightReport struct {
	TotalListings      int             `json:"totalListings"`
	AveragePrice       int             `json:"averagePrice"`
	MinPrice           int             `json:"minPrice"`
	MaxPrice           int             `json:"maxPrice"`
	Cheapest           *ScoredListing  `json:"cheapest,omitempty"`
	TopScored          []ScoredListing `json:"topScored"`
	ListingsByLocation map[string]int  `json:"listingsByLocation"`
}
