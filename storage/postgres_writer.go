package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"car-scraper/models"
	"car-scraper/utils"
)

const (
	pgBatchSize   = 50
	pgColumnCount = 12
	pgPingTries   = 10
)

// PostgresWriter archives each snapshot in the car_listings table. Every
// write replaces the table content in a single transaction.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// connections, runs the schema migration and returns a ready writer.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < pgPingTries; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Debug("[postgres] Ping %d/%d failed: %v", i+1, pgPingTries, err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS car_listings (
			id          SERIAL PRIMARY KEY,
			run_id      UUID         NOT NULL,
			rank        INTEGER      NOT NULL,
			listing_id  TEXT         NOT NULL,
			title       TEXT         NOT NULL,
			price       INTEGER      NOT NULL DEFAULT 0,
			year        INTEGER      NOT NULL DEFAULT 0,
			mileage     INTEGER      NOT NULL DEFAULT 0,
			location    TEXT         NOT NULL DEFAULT '',
			image       TEXT         NOT NULL DEFAULT '',
			url         TEXT         NOT NULL DEFAULT '',
			score       INTEGER      NOT NULL DEFAULT 0,
			price_delta INTEGER      NOT NULL DEFAULT 0,
			scraped_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_car_listings_price ON car_listings(price);
		CREATE INDEX IF NOT EXISTS idx_car_listings_score ON car_listings(score);
		CREATE INDEX IF NOT EXISTS idx_car_listings_run   ON car_listings(run_id);
	`)
	return err
}

func (pw *PostgresWriter) Name() string { return "postgres" }

// Write replaces the archived snapshot with this run's listings.
func (pw *PostgresWriter) Write(ctx context.Context, runID string, snapshot []models.ScoredListing) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM car_listings"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	for i := 0; i < len(snapshot); i += pgBatchSize {
		end := i + pgBatchSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		query, args := buildInsert(runID, i, snapshot[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	pw.logger.Info("[postgres] Archived %d listings (run %s)", len(snapshot), runID)
	return nil
}

// buildInsert renders a multi-row INSERT for batch. offset is the rank of the
// batch's first listing minus one.
func buildInsert(runID string, offset int, batch []models.ScoredListing) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*pgColumnCount)

	for idx, l := range batch {
		base := idx * pgColumnCount
		placeholders := make([]string, pgColumnCount)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			runID, offset+idx+1, l.ID, l.Title, l.Price, l.Year, l.Mileage,
			l.Location, l.Image, l.URL, l.Score, l.PriceDelta)
	}

	query := fmt.Sprintf(`
		INSERT INTO car_listings (run_id, rank, listing_id, title, price, year, mileage, location, image, url, score, price_delta)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
