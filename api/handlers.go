package api

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"car-scraper/filters"
)

const (
	msgInvalidFilters = "Filtres invalides fournis"
	msgSearchFailed   = "La recherche a échoué"
	msgFiltersFailed  = "Unable to load default filters"
)

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) listings(c *fiber.Ctx) error {
	return c.JSON(s.store.Read())
}

func (s *Server) insightReport(c *fiber.Ctx) error {
	return c.JSON(s.insights.Generate(s.store.Read()))
}

func (s *Server) defaultFilters(c *fiber.Ctx) error {
	spec, err := s.filters.Default()
	if err != nil {
		s.logger.Error("[api] Default filters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgFiltersFailed})
	}
	return c.JSON(spec)
}

func (s *Server) reloadFilters(c *fiber.Ctx) error {
	spec, err := s.filters.Reload()
	if err != nil {
		s.logger.Error("[api] Reload filters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgFiltersFailed})
	}
	s.logger.Info("[api] Default filters reloaded")
	return c.JSON(spec)
}

func (s *Server) search(c *fiber.Ctx) error {
	var payload any
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msgInvalidFilters, Reason: "body must be JSON"})
	}

	spec, err := filters.Validate(payload)
	if err != nil {
		resp := errorResponse{Error: msgInvalidFilters}
		var verr *filters.ValidationError
		if errors.As(err, &verr) {
			resp.Field, resp.Reason = verr.Field, verr.Reason
		}
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}

	listings, err := s.searcher.Search(c.UserContext(), spec)
	if err != nil {
		s.logger.Error("[api] Search %s %s failed: %v", spec.Brand, spec.Model, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgSearchFailed})
	}
	return c.JSON(listings)
}
