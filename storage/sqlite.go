package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"listing_detail/models"
)

// ErrMissingListingID is returned for records that cannot be keyed because
// their URL carried no listing id.
var ErrMissingListingID = errors.New("listing has no id")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_listings (
		site_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		url TEXT NOT NULL,
		data JSON NOT NULL,
		run_id INTEGER,
		scraped_at DATETIME,
		normalized_at DATETIME,
		PRIMARY KEY (site_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS normalized_listings (
		site_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		url TEXT NOT NULL,
		price INTEGER,
		data JSON NOT NULL,
		updated_at DATETIME,
		PRIMARY KEY (site_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS listing_outcomes (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		url TEXT,
		listing_id TEXT,
		status TEXT,
		error TEXT,
		issues JSON,
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS extraction_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER,
		listings_extracted INTEGER,
		listings_failed INTEGER,
		errors_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS extraction_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_listings INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_raw_pending ON raw_listings(normalized_at) WHERE normalized_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON listing_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON extraction_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON extraction_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs and logs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ExtractionRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO extraction_runs (site_id, started_at, status, listings_found, listings_extracted,
			listings_failed, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0)`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ExtractionRun) error {
	_, err := s.db.Exec(`
		UPDATE extraction_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_extracted = ?, listings_failed = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsExtracted,
		run.ListingsFailed, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ExtractionRun, error) {
	var run models.ExtractionRun
	err := s.db.QueryRow(`
		SELECT id, site_id, started_at, finished_at, status, listings_found, listings_extracted,
			listings_failed, errors_count
		FROM extraction_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.SiteID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.ListingsFound,
			&run.ListingsExtracted, &run.ListingsFailed, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO extraction_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ExtractionLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM extraction_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ExtractionLog
	for rows.Next() {
		var l models.ExtractionLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_listings,
			success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM extraction_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM extraction_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM raw_listings WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM extraction_runs WHERE site_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM extraction_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_listings = excluded.total_listings,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

// =============================================================================
// Listings
// =============================================================================

// SaveRawListing stores the latest extraction of a listing and queues it for
// normalization.
func (s *SQLiteStore) SaveRawListing(runID int64, siteID string, rec *models.RawListing) error {
	if rec.ListingID == "" {
		return ErrMissingListingID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal raw listing: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO raw_listings (site_id, listing_id, url, data, run_id, scraped_at, normalized_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(site_id, listing_id) DO UPDATE SET
			url = excluded.url,
			data = excluded.data,
			run_id = excluded.run_id,
			scraped_at = excluded.scraped_at,
			normalized_at = NULL`,
		siteID, rec.ListingID, rec.ListingURL, string(data), runID, time.Now())
	return err
}

// PendingRawListing is a stored raw record not yet normalized.
type PendingRawListing struct {
	SiteID  string
	Listing *models.RawListing
}

func (s *SQLiteStore) GetPendingRawListings(limit int) ([]PendingRawListing, error) {
	rows, err := s.db.Query(`
		SELECT site_id, data FROM raw_listings
		WHERE normalized_at IS NULL
		ORDER BY scraped_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingRawListing
	for rows.Next() {
		var siteID, data string
		if err := rows.Scan(&siteID, &data); err != nil {
			return nil, err
		}
		var rec models.RawListing
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode raw listing: %w", err)
		}
		pending = append(pending, PendingRawListing{SiteID: siteID, Listing: &rec})
	}
	return pending, rows.Err()
}

// SaveNormalizedListing upserts a normalized record and marks its raw source
// as normalized.
func (s *SQLiteStore) SaveNormalizedListing(siteID string, n *models.NormalizedListing) error {
	if n.ListingID == "" {
		return ErrMissingListingID
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal normalized listing: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`
		INSERT INTO normalized_listings (site_id, listing_id, url, price, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, listing_id) DO UPDATE SET
			url = excluded.url,
			price = excluded.price,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		siteID, n.ListingID, n.ListingURL, n.Price, string(data), now); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE raw_listings SET normalized_at = ? WHERE site_id = ? AND listing_id = ?`,
		now, siteID, n.ListingID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetNormalizedListing(siteID, listingID string) (*models.NormalizedListing, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT data FROM normalized_listings WHERE site_id = ? AND listing_id = ?`,
		siteID, listingID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n models.NormalizedListing
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLiteStore) SaveOutcome(runID int64, o *models.ListingOutcome) error {
	issues, err := json.Marshal(o.Issues)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO listing_outcomes (run_id, url, listing_id, status, error, issues, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.URL, o.ListingID, o.Status, o.Error, string(issues), o.StartedAt, o.FinishedAt)
	return err
}

func (s *SQLiteStore) CountOutcomes(runID int64, status models.OutcomeStatus) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM listing_outcomes WHERE run_id = ? AND status = ?`, runID, status).Scan(&count)
	return count, err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = string(data)
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, raw, time.Now())
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
