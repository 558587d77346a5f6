package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"car-scraper/models"
)

var csvHeader = []string{
	"rank", "id", "title", "price", "year", "mileage", "location", "score", "price_delta", "url", "image",
}

// CSVWriter exports every snapshot to a CSV file, replacing the previous
// export. It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter creates a CSVWriter for path. Intermediate directories are
// created on the first write.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (c *CSVWriter) Name() string { return "csv" }

// Write implements Sink.
func (c *CSVWriter) Write(_ context.Context, _ string, snapshot []models.ScoredListing) error {
	return c.WriteSnapshot(snapshot)
}

// WriteSnapshot writes the header and one row per listing, in snapshot order.
func (c *CSVWriter) WriteSnapshot(snapshot []models.ScoredListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return replaceFile(c.path, func(w io.Writer) error {
		return writeCSV(w, snapshot)
	})
}

func (c *CSVWriter) Close() error { return nil }

func writeCSV(w io.Writer, snapshot []models.ScoredListing) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for i, l := range snapshot {
		row := []string{
			strconv.Itoa(i + 1),
			l.ID,
			l.Title,
			strconv.Itoa(l.Price),
			strconv.Itoa(l.Year),
			strconv.Itoa(l.Mileage),
			l.Location,
			strconv.Itoa(l.Score),
			strconv.Itoa(l.PriceDelta),
			l.URL,
			l.Image,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
