package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"car-scraper/models"
	"car-scraper/scraper/leboncoin"
	"car-scraper/services"
	"car-scraper/storage"
	"car-scraper/utils"
)

// Fetcher loads a rendered result page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*leboncoin.Page, error)
}

// FilterProvider returns the default FilterSpec used when a run has none.
type FilterProvider interface {
	Default() (models.FilterSpec, error)
}

// Options holds the marketplace endpoint a Pipeline searches.
type Options struct {
	BaseURL  string
	Category string
}

// Pipeline runs one search end to end: query, browse, extract, score,
// persist.
type Pipeline struct {
	opts      Options
	fetcher   Fetcher
	filters   FilterProvider
	extractor *services.Extractor
	insights  *services.InsightService
	store     storage.SnapshotWriter
	sinks     []storage.Sink
	logger    *utils.Logger

	newRunID func() string
}

// New creates a Pipeline. Sinks receive a copy of each snapshot after the
// store has been written.
func New(opts Options, fetcher Fetcher, filters FilterProvider, store storage.SnapshotWriter,
	logger *utils.Logger, sinks ...storage.Sink) *Pipeline {
	if opts.BaseURL == "" {
		opts.BaseURL = leboncoin.DefaultBaseURL
	}
	if opts.Category == "" {
		opts.Category = leboncoin.DefaultCategory
	}
	return &Pipeline{
		opts:      opts,
		fetcher:   fetcher,
		filters:   filters,
		extractor: services.NewExtractor(logger),
		insights:  services.NewInsightService(logger),
		store:     store,
		sinks:     sinks,
		logger:    logger,
		newRunID:  uuid.NewString,
	}
}

// Run executes one search with spec, or with the default filters when spec
// is nil, and replaces the persisted snapshot with the result. Browsing,
// parsing and persistence failures are returned; sink failures are only
// logged.
func (p *Pipeline) Run(ctx context.Context, spec *models.FilterSpec) ([]models.ScoredListing, error) {
	runID := p.newRunID()
	start := time.Now()

	if spec == nil {
		def, err := p.filters.Default()
		if err != nil {
			return nil, fmt.Errorf("pipeline: default filters: %w", err)
		}
		spec = &def
	}

	searchURL := leboncoin.BuildSearchURL(p.opts.BaseURL, p.opts.Category, *spec)
	p.logger.Info("[pipeline] Run %s: %s %s → %s", runID, spec.Brand, spec.Model, searchURL)

	page, err := p.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch: %w", err)
	}

	root, err := services.ParseHTML(page.HTML)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse page: %w", err)
	}

	pageURL := page.URL
	if pageURL == "" {
		pageURL = searchURL
	}

	listings := p.extractor.Extract(root, pageURL, spec.MinYear)
	scored := services.Score(listings)

	if err := p.store.Write(scored); err != nil {
		return nil, err
	}

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, runID, scored); err != nil {
			p.logger.Warn("[pipeline] Run %s: %s sink failed: %v", runID, sink.Name(), err)
		}
	}

	p.insights.Log(p.insights.Generate(scored))
	p.logger.Info("[pipeline] Run %s finished: %d listings in %v",
		runID, len(scored), time.Since(start).Round(time.Millisecond))

	return scored, nil
}
