package filters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"car-scraper/models"
	"car-scraper/utils"
)

// Service serves the default FilterSpec persisted at path. The file is read
// on first use and cached until Reload or Invalidate.
type Service struct {
	path   string
	logger *utils.Logger

	mu     sync.Mutex
	cached *models.FilterSpec
}

// NewService creates a Service for the filter file at path.
func NewService(path string, logger *utils.Logger) *Service {
	return &Service{path: path, logger: logger}
}

// Default returns the cached default spec, loading it on first call.
func (s *Service) Default() (models.FilterSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}
	return s.loadLocked()
}

// Reload re-reads the filter file and replaces the cached value. On failure
// the previously cached value is kept.
func (s *Service) Reload() (models.FilterSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Invalidate drops the cached value; the next Default call reads the file.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Service) loadLocked() (models.FilterSpec, error) {
	spec, err := LoadFile(s.path)
	if err != nil {
		return models.FilterSpec{}, err
	}
	s.cached = &spec
	s.logger.Info("[filters] Loaded default filters from %s: %s %s, %d-%d EUR, region %s",
		s.path, spec.Brand, spec.Model, spec.MinPrice, spec.MaxPrice, spec.Region)
	return spec, nil
}

// LoadFile reads and validates a FilterSpec stored as JSON.
func LoadFile(path string) (models.FilterSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.FilterSpec{}, fmt.Errorf("filters: read %q: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return models.FilterSpec{}, fmt.Errorf("filters: parse %q: %w", path, err)
	}

	spec, err := Validate(payload)
	if err != nil {
		return models.FilterSpec{}, fmt.Errorf("filters: validate %q: %w", path, err)
	}
	return spec, nil
}
