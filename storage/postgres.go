package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"listing_detail/identity"
	"listing_detail/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id UUID PRIMARY KEY,
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	url TEXT NOT NULL,
	net_area_m2 INTEGER,
	gross_area_m2 INTEGER,
	room_layout TEXT,
	floor_number INTEGER,
	total_floors INTEGER,
	building_age_years INTEGER,
	listing_status TEXT,
	heating_type TEXT,
	inside_complex BOOLEAN,
	price BIGINT,
	currency TEXT,
	description_html TEXT,
	features JSONB,
	raw JSONB,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (source, external_id)
);

CREATE TABLE IF NOT EXISTS extraction_runs (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	listings_found INTEGER DEFAULT 0,
	listings_extracted INTEGER DEFAULT 0,
	listings_failed INTEGER DEFAULT 0,
	errors_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(listing_status);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// =============================================================================
// Listings
// =============================================================================

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertListing stores the normalized listing keyed by (source, external_id).
// raw may be nil; when given it is kept alongside for reprocessing.
func (s *PostgresStore) UpsertListing(ctx context.Context, source string, n *models.NormalizedListing, raw *models.RawListing) error {
	return upsertListing(ctx, s.pool, source, n, raw)
}

func upsertListing(ctx context.Context, db execer, source string, n *models.NormalizedListing, raw *models.RawListing) error {
	if n.ListingID == "" {
		return ErrMissingListingID
	}
	features, err := json.Marshal(n.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	var rawJSON []byte
	var currency *string
	if raw != nil {
		if rawJSON, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("marshal raw: %w", err)
		}
		if raw.Price.Currency != nil {
			c := string(*raw.Price.Currency)
			currency = &c
		}
	}

	query := `
		INSERT INTO listings (
			id, source, external_id, url, net_area_m2, gross_area_m2, room_layout, floor_number,
			total_floors, building_age_years, listing_status, heating_type, inside_complex,
			price, currency, description_html, features, raw, first_seen_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW()
		)
		ON CONFLICT (source, external_id) DO UPDATE SET
			url = EXCLUDED.url,
			net_area_m2 = EXCLUDED.net_area_m2,
			gross_area_m2 = EXCLUDED.gross_area_m2,
			room_layout = EXCLUDED.room_layout,
			floor_number = EXCLUDED.floor_number,
			total_floors = EXCLUDED.total_floors,
			building_age_years = EXCLUDED.building_age_years,
			listing_status = EXCLUDED.listing_status,
			heating_type = EXCLUDED.heating_type,
			inside_complex = EXCLUDED.inside_complex,
			price = EXCLUDED.price,
			currency = COALESCE(EXCLUDED.currency, listings.currency),
			description_html = EXCLUDED.description_html,
			features = EXCLUDED.features,
			raw = COALESCE(EXCLUDED.raw, listings.raw),
			last_seen_at = NOW()
	`

	_, err = db.Exec(ctx, query,
		identity.ListingUUID(source, n.ListingID), source, n.ListingID, n.ListingURL,
		n.NetAreaM2, n.GrossAreaM2, n.RoomLayout, n.FloorNumber,
		n.TotalFloors, n.BuildingAgeYears, n.ListingStatus, n.HeatingType, n.InsideComplex,
		n.Price, currency, n.DescriptionHTML, features, nullJSON(rawJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", n.ListingID, err)
	}
	return nil
}

// UpsertListings writes a batch in one transaction.
func (s *PostgresStore) UpsertListings(ctx context.Context, source string, normalized []models.NormalizedListing, raws []*models.RawListing) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range normalized {
		var raw *models.RawListing
		if i < len(raws) {
			raw = raws[i]
		}
		if err := upsertListing(ctx, tx, source, &normalized[i], raw); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetListingPrice(ctx context.Context, source, externalID string) (*int64, error) {
	var price *int64
	err := s.pool.QueryRow(ctx,
		`SELECT price FROM listings WHERE source = $1 AND external_id = $2`,
		source, externalID).Scan(&price)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing price: %w", err)
	}
	return price, nil
}

// =============================================================================
// Extraction runs
// =============================================================================

func (s *PostgresStore) CreateExtractionRun(ctx context.Context, run *models.ExtractionRun) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO extraction_runs (source, started_at, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, run.SiteID, run.StartedAt, run.Status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create extraction run: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) FinishExtractionRun(ctx context.Context, id int64, run *models.ExtractionRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_runs SET
			finished_at = $2, status = $3, listings_found = $4,
			listings_extracted = $5, listings_failed = $6, errors_count = $7
		WHERE id = $1
	`, id, run.FinishedAt, run.Status, run.ListingsFound, run.ListingsExtracted,
		run.ListingsFailed, run.ErrorsCount)
	if err != nil {
		return fmt.Errorf("finish extraction run: %w", err)
	}
	return nil
}

func nullJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
