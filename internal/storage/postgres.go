package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
)

// RunStore persists pipeline runs and their click-map records in
// PostgreSQL.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore on an open database handle.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// RunSummary is a stored run without its records.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
	NameFilter         string    `json:"name_filter,omitempty"`
	CampaignsProcessed int       `json:"campaigns_processed"`
	CampaignsSkipped   int       `json:"campaigns_skipped"`
	RecordCount        int       `json:"record_count"`
}

// InitSchema creates the run tables if they do not exist.
func (s *RunStore) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS click_map_runs (
		run_id              TEXT PRIMARY KEY,
		started_at          TIMESTAMPTZ NOT NULL,
		completed_at        TIMESTAMPTZ NOT NULL,
		name_filter         TEXT NOT NULL DEFAULT '',
		campaigns_processed INTEGER NOT NULL DEFAULT 0,
		campaigns_skipped   INTEGER NOT NULL DEFAULT 0,
		record_count        INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS click_map_records (
		run_id                  TEXT NOT NULL REFERENCES click_map_runs(run_id) ON DELETE CASCADE,
		campaign_id             TEXT NOT NULL,
		campaign_name           TEXT NOT NULL,
		link_order              INTEGER NOT NULL,
		url                     TEXT NOT NULL,
		total_clicks            BIGINT NOT NULL DEFAULT 0,
		unique_clicks           BIGINT NOT NULL DEFAULT 0,
		click_percentage        DOUBLE PRECISION NOT NULL DEFAULT 0,
		unique_click_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, campaign_id, link_order)
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating click map schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and all of its records in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, result *clickmap.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO click_map_runs
			(run_id, started_at, completed_at, name_filter, campaigns_processed, campaigns_skipped, record_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.RunID,
		result.StartedAt,
		result.CompletedAt,
		result.NameFilter,
		result.CampaignsProcessed,
		result.CampaignsSkipped,
		len(result.Records),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, r := range result.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO click_map_records
				(run_id, campaign_id, campaign_name, link_order, url,
				 total_clicks, unique_clicks, click_percentage, unique_click_percentage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			result.RunID,
			r.CampaignID,
			r.CampaignName,
			r.Order,
			r.URL,
			r.TotalClicks,
			r.UniqueClicks,
			r.ClickPercentage,
			r.UniqueClickPercentage,
		)
		if err != nil {
			return fmt.Errorf("inserting record (campaign %s order %d): %w", r.CampaignID, r.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// ListRuns returns stored runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, completed_at, name_filter,
		       campaigns_processed, campaigns_skipped, record_count
		FROM click_map_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.CompletedAt, &r.NameFilter,
			&r.CampaignsProcessed, &r.CampaignsSkipped, &r.RecordCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunExists reports whether a run row is stored. Callers use it to
// tell an unknown run apart from a run that produced no records.
func (s *RunStore) RunExists(ctx context.Context, runID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM click_map_runs WHERE run_id = $1)`, runID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking run: %w", err)
	}
	return exists, nil
}

// GetRecords returns one run's records in campaign-then-order sequence.
func (s *RunStore) GetRecords(ctx context.Context, runID string) ([]clickmap.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, campaign_name, link_order, url,
		       total_clicks, unique_clicks, click_percentage, unique_click_percentage
		FROM click_map_records
		WHERE run_id = $1
		ORDER BY campaign_id, link_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}
	defer rows.Close()

	var records []clickmap.Record
	for rows.Next() {
		var r clickmap.Record
		if err := rows.Scan(&r.CampaignID, &r.CampaignName, &r.Order, &r.URL,
			&r.TotalClicks, &r.UniqueClicks, &r.ClickPercentage, &r.UniqueClickPercentage); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
