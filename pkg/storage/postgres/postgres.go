// Package postgres implements the record store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/storage"
)

// Store is a PostgreSQL-backed record store
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL, verifies the connection, and ensures the
// schema exists.
func New(config storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS page_views (
	id                TEXT PRIMARY KEY,
	path              TEXT NOT NULL,
	title             TEXT,
	referrer          TEXT,
	user_agent        TEXT,
	session_id        TEXT,
	view_duration     INTEGER,
	session_duration  INTEGER NOT NULL DEFAULT 0,
	page_count        INTEGER NOT NULL DEFAULT 1,
	is_bounce         BOOLEAN NOT NULL DEFAULT TRUE,
	ip_address        TEXT,
	country           TEXT,
	region            TEXT,
	city              TEXT,
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	device_type       TEXT,
	browser           TEXT,
	operating_system  TEXT,
	screen_resolution TEXT,
	is_mobile         BOOLEAN,
	timezone          TEXT,
	distance_miles    DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_page_views_created_at ON page_views (created_at);
CREATE INDEX IF NOT EXISTS idx_page_views_session_id ON page_views (session_id);

CREATE TABLE IF NOT EXISTS events (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	category          TEXT,
	path              TEXT,
	session_id        TEXT,
	params            JSONB,
	ip_address        TEXT,
	country           TEXT,
	region            TEXT,
	city              TEXT,
	latitude          DOUBLE PRECISION,
	longitude         DOUBLE PRECISION,
	device_type       TEXT,
	browser           TEXT,
	operating_system  TEXT,
	screen_resolution TEXT,
	is_mobile         BOOLEAN,
	timezone          TEXT,
	distance_miles    DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at);
CREATE INDEX IF NOT EXISTS idx_events_name ON events (name);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// InsertPageView persists one page view record
func (s *Store) InsertPageView(ctx context.Context, rec *analytics.PageViewRecord) error {
	query := `INSERT INTO page_views (
		id, path, title, referrer, user_agent, session_id,
		view_duration, session_duration, page_count, is_bounce,
		ip_address, country, region, city, latitude, longitude,
		device_type, browser, operating_system, screen_resolution,
		is_mobile, timezone, distance_miles, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Path, nullString(rec.Title), nullString(rec.Referrer),
		nullString(rec.UserAgent), nullString(rec.SessionID),
		nullIntPtr(rec.ViewDuration), rec.SessionDuration, rec.PageCount, rec.IsBounce,
		nullString(rec.IPAddress), nullString(rec.Country), nullString(rec.Region),
		nullString(rec.City), nullFloatPtr(rec.Latitude), nullFloatPtr(rec.Longitude),
		nullString(rec.DeviceType), nullString(rec.Browser), nullString(rec.OperatingSystem),
		nullString(rec.ScreenResolution), nullBoolPtr(rec.IsMobile), nullString(rec.Timezone),
		nullFloatPtr(rec.DistanceMiles), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert page view: %w", err)
	}
	return nil
}

// InsertEvent persists one event record
func (s *Store) InsertEvent(ctx context.Context, rec *analytics.EventRecord) error {
	params, err := marshalParams(rec.Params)
	if err != nil {
		return err
	}

	query := `INSERT INTO events (
		id, name, category, path, session_id, params,
		ip_address, country, region, city, latitude, longitude,
		device_type, browser, operating_system, screen_resolution,
		is_mobile, timezone, distance_miles, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, nullString(rec.Category), nullString(rec.Path),
		nullString(rec.SessionID), params,
		nullString(rec.IPAddress), nullString(rec.Country), nullString(rec.Region),
		nullString(rec.City), nullFloatPtr(rec.Latitude), nullFloatPtr(rec.Longitude),
		nullString(rec.DeviceType), nullString(rec.Browser), nullString(rec.OperatingSystem),
		nullString(rec.ScreenResolution), nullBoolPtr(rec.IsMobile), nullString(rec.Timezone),
		nullFloatPtr(rec.DistanceMiles), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

const pageViewColumns = `id, path, title, referrer, user_agent, session_id,
	view_duration, session_duration, page_count, is_bounce,
	ip_address, country, region, city, latitude, longitude,
	device_type, browser, operating_system, screen_resolution,
	is_mobile, timezone, distance_miles, created_at`

const eventColumns = `id, name, category, path, session_id, params,
	ip_address, country, region, city, latitude, longitude,
	device_type, browser, operating_system, screen_resolution,
	is_mobile, timezone, distance_miles, created_at`

// CountPageViews counts page views created at or after since
func (s *Store) CountPageViews(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_views WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count page views: %w", err)
	}
	return count, nil
}

// QueryPageViews returns page views created at or after since, ascending
func (s *Store) QueryPageViews(ctx context.Context, since time.Time) ([]*analytics.PageViewRecord, error) {
	query := `SELECT ` + pageViewColumns + ` FROM page_views WHERE created_at >= $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()
	return scanPageViews(rows)
}

// QueryEvents returns events created at or after since, ascending
func (s *Store) QueryEvents(ctx context.Context, since time.Time) ([]*analytics.EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE created_at >= $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentPageViews returns the newest page views, descending
func (s *Store) RecentPageViews(ctx context.Context, limit int) ([]*analytics.PageViewRecord, error) {
	query := `SELECT ` + pageViewColumns + ` FROM page_views ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent page views: %w", err)
	}
	defer rows.Close()
	return scanPageViews(rows)
}

// RecentEvents returns the newest events, descending
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]*analytics.EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func scanPageViews(rows *sql.Rows) ([]*analytics.PageViewRecord, error) {
	var records []*analytics.PageViewRecord
	for rows.Next() {
		var (
			rec          analytics.PageViewRecord
			title        sql.NullString
			referrer     sql.NullString
			userAgent    sql.NullString
			sessionID    sql.NullString
			viewDuration sql.NullInt64
		)
		en := enrichmentScanner{}
		if err := rows.Scan(
			append([]interface{}{
				&rec.ID, &rec.Path, &title, &referrer, &userAgent, &sessionID,
				&viewDuration, &rec.SessionDuration, &rec.PageCount, &rec.IsBounce,
			}, en.targets()...)...,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page view: %w", err)
		}
		rec.Title = title.String
		rec.Referrer = referrer.String
		rec.UserAgent = userAgent.String
		rec.SessionID = sessionID.String
		if viewDuration.Valid {
			v := int(viewDuration.Int64)
			rec.ViewDuration = &v
		}
		en.apply(&rec.EnrichmentFields, &rec.CreatedAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page views: %w", err)
	}
	return records, nil
}

func scanEvents(rows *sql.Rows) ([]*analytics.EventRecord, error) {
	var records []*analytics.EventRecord
	for rows.Next() {
		var (
			rec       analytics.EventRecord
			category  sql.NullString
			path      sql.NullString
			sessionID sql.NullString
			params    []byte
		)
		en := enrichmentScanner{}
		if err := rows.Scan(
			append([]interface{}{
				&rec.ID, &rec.Name, &category, &path, &sessionID, &params,
			}, en.targets()...)...,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Category = category.String
		rec.Path = path.String
		rec.SessionID = sessionID.String
		if len(params) > 0 {
			if err := json.Unmarshal(params, &rec.Params); err != nil {
				return nil, fmt.Errorf("failed to decode event params: %w", err)
			}
		}
		en.apply(&rec.EnrichmentFields, &rec.CreatedAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return records, nil
}

// enrichmentScanner collects the nullable enrichment columns shared by both
// tables so the two scan loops stay in sync.
type enrichmentScanner struct {
	ipAddress        sql.NullString
	country          sql.NullString
	region           sql.NullString
	city             sql.NullString
	latitude         sql.NullFloat64
	longitude        sql.NullFloat64
	deviceType       sql.NullString
	browser          sql.NullString
	operatingSystem  sql.NullString
	screenResolution sql.NullString
	isMobile         sql.NullBool
	timezone         sql.NullString
	distanceMiles    sql.NullFloat64
	createdAt        time.Time
}

func (e *enrichmentScanner) targets() []interface{} {
	return []interface{}{
		&e.ipAddress, &e.country, &e.region, &e.city, &e.latitude, &e.longitude,
		&e.deviceType, &e.browser, &e.operatingSystem, &e.screenResolution,
		&e.isMobile, &e.timezone, &e.distanceMiles, &e.createdAt,
	}
}

func (e *enrichmentScanner) apply(f *analytics.EnrichmentFields, createdAt *time.Time) {
	f.IPAddress = e.ipAddress.String
	f.Country = e.country.String
	f.Region = e.region.String
	f.City = e.city.String
	if e.latitude.Valid {
		v := e.latitude.Float64
		f.Latitude = &v
	}
	if e.longitude.Valid {
		v := e.longitude.Float64
		f.Longitude = &v
	}
	f.DeviceType = e.deviceType.String
	f.Browser = e.browser.String
	f.OperatingSystem = e.operatingSystem.String
	f.ScreenResolution = e.screenResolution.String
	if e.isMobile.Valid {
		v := e.isMobile.Bool
		f.IsMobile = &v
	}
	f.Timezone = e.timezone.String
	if e.distanceMiles.Valid {
		v := e.distanceMiles.Float64
		f.DistanceMiles = &v
	}
	*createdAt = e.createdAt
}

func marshalParams(params map[string]interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event params: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIntPtr(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBoolPtr(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
