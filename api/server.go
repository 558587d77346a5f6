package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"car-scraper/models"
	"car-scraper/services"
	"car-scraper/utils"
)

// SnapshotReader returns the current snapshot.
type SnapshotReader interface {
	Read() []models.ScoredListing
}

// FilterProvider serves the default filters.
type FilterProvider interface {
	Default() (models.FilterSpec, error)
	Reload() (models.FilterSpec, error)
}

// Searcher runs an on-demand search.
type Searcher interface {
	Search(ctx context.Context, spec models.FilterSpec) ([]models.ScoredListing, error)
}

// Server is the HTTP front door: JSON API plus the static client.
type Server struct {
	app       *fiber.App
	store     SnapshotReader
	filters   FilterProvider
	searcher  Searcher
	insights  *services.InsightService
	staticDir string
	logger    *utils.Logger
}

// New creates a Server and registers its routes. staticDir may be empty.
func New(store SnapshotReader, filters FilterProvider, searcher Searcher, staticDir string, logger *utils.Logger) *Server {
	s := &Server{
		store:     store,
		filters:   filters,
		searcher:  searcher,
		insights:  services.NewInsightService(logger),
		staticDir: staticDir,
		logger:    logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "car-scraper",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/listings", s.listings)
	api.Get("/filters", s.defaultFilters)
	api.Post("/filters/reload", s.reloadFilters)
	api.Get("/insights", s.insightReport)
	api.Post("/search", s.search)

	if s.staticDir == "" {
		return
	}
	s.app.Static("/", s.staticDir)
	s.app.Get("*", s.spaFallback)
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("[api] Listening on %s", addr)
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) spaFallback(c *fiber.Ctx) error {
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return fiber.ErrNotFound
	}
	return c.SendFile(index)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("[api] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
