package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/roadmap/internal/catalog"
)

// ErrNotFound is returned when a feature ID has no stored row.
var ErrNotFound = errors.New("feature not found")

// Query executes a query and returns the resulting rows.
// This is the primitive the search engine compiles filter criteria
// against. Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a single-row query.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// GetFeatureByID reconstructs a full feature: scalar fields plus all four
// association sets and availability entries, assembled from the underlying
// relations. Returns ErrNotFound for an unknown ID.
func (s *Store) GetFeatureByID(ctx context.Context, id int64) (catalog.Feature, error) {
	var (
		f                   catalog.Feature
		desc, ga, preview   sql.NullString
		created, modified   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, ga_date, preview_date, created, modified
		FROM features
		WHERE id = ?
	`, id).Scan(&f.ID, &f.Title, &desc, &f.Status, &ga, &preview, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Feature{}, fmt.Errorf("feature %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return catalog.Feature{}, fmt.Errorf("get feature %d: %w", id, err)
	}

	f.Description = desc.String
	f.GADate = ga.String
	f.PreviewDate = preview.String
	if f.Created, err = parseTime(created); err != nil {
		return catalog.Feature{}, fmt.Errorf("get feature %d: created: %w", id, err)
	}
	if f.Modified, err = parseTime(modified); err != nil {
		return catalog.Feature{}, fmt.Errorf("get feature %d: modified: %w", id, err)
	}

	for _, kind := range catalog.Kinds {
		tags, err := s.readAssociations(ctx, id, kind)
		if err != nil {
			return catalog.Feature{}, err
		}
		switch kind {
		case catalog.KindProduct:
			f.Products = tags
		case catalog.KindPlatform:
			f.Platforms = tags
		case catalog.KindCloudInstance:
			f.CloudInstances = tags
		case catalog.KindReleaseRing:
			f.ReleaseRings = tags
		}
	}

	if f.Availabilities, err = s.readAvailabilities(ctx, id); err != nil {
		return catalog.Feature{}, err
	}

	return f, nil
}

// readAssociations returns the tag set of one kind, ordered for
// deterministic output. Empty slice (not nil) when no tags exist.
func (s *Store) readAssociations(ctx context.Context, featureID int64, kind catalog.AssociationKind) ([]string, error) {
	table, ok := associationTables[kind]
	if !ok {
		return nil, fmt.Errorf("read associations: unknown kind %q", kind)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT tag FROM %s WHERE feature_id = ? ORDER BY tag COLLATE BINARY ASC", table),
		featureID,
	)
	if err != nil {
		return nil, fmt.Errorf("read %s for feature %d: %w", kind, featureID, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("read %s for feature %d: scan: %w", kind, featureID, err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s for feature %d: iterate: %w", kind, featureID, err)
	}

	return tags, nil
}

// AssociationTags returns the tags of one kind for a feature. Exported for
// callers assembling lightweight projections; GetFeatureByID uses the same
// path internally.
func (s *Store) AssociationTags(ctx context.Context, featureID int64, kind catalog.AssociationKind) ([]string, error) {
	return s.readAssociations(ctx, featureID, kind)
}

func (s *Store) readAvailabilities(ctx context.Context, featureID int64) ([]catalog.Availability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ring, year, month
		FROM feature_availabilities
		WHERE feature_id = ?
		ORDER BY ring COLLATE BINARY ASC, year ASC, month ASC
	`, featureID)
	if err != nil {
		return nil, fmt.Errorf("read availabilities for feature %d: %w", featureID, err)
	}
	defer rows.Close()

	entries := []catalog.Availability{}
	for rows.Next() {
		var a catalog.Availability
		if err := rows.Scan(&a.Ring, &a.Year, &a.Month); err != nil {
			return nil, fmt.Errorf("read availabilities for feature %d: scan: %w", featureID, err)
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read availabilities for feature %d: iterate: %w", featureID, err)
	}

	return entries, nil
}

// GetCheckpoint reads the singleton checkpoint row.
func (s *Store) GetCheckpoint(ctx context.Context) (catalog.Checkpoint, error) {
	var (
		cp       catalog.Checkpoint
		lastSync string
		lastErr  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sync, status, total_count, duration_ms, last_error
		FROM sync_checkpoint
		WHERE id = 1
	`).Scan(&lastSync, &cp.Status, &cp.TotalCount, &cp.DurationMs, &lastErr)
	if err != nil {
		return catalog.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	if cp.LastSync, err = parseTime(lastSync); err != nil {
		return catalog.Checkpoint{}, fmt.Errorf("get checkpoint: last_sync: %w", err)
	}
	cp.LastError = lastErr.String
	return cp, nil
}

// GetCachedToken reads the singleton conditional-fetch token. Returns
// (nil, nil) when no token has been stored yet, and also when the
// fetch_cache table itself is missing: the table is additive over the
// original schema, so stores created by older versions must read as
// "no token", not error.
func (s *Store) GetCachedToken(ctx context.Context) (*catalog.CacheToken, error) {
	var (
		tok         catalog.CacheToken
		validatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, validated_at FROM fetch_cache WHERE id = 1",
	).Scan(&tok.Value, &validatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isMissingTable(err, "fetch_cache") {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached token: %w", err)
	}
	if tok.ValidatedAt, err = parseTime(validatedAt); err != nil {
		return nil, fmt.Errorf("get cached token: validated_at: %w", err)
	}
	return &tok, nil
}

// LastModifiedWatermark returns the maximum modified timestamp across all
// stored features, or nil for an empty store. Drives differential sync.
func (s *Store) LastModifiedWatermark(ctx context.Context) (*time.Time, error) {
	var max sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(modified) FROM features").Scan(&max); err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	t, err := parseTime(max.String)
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &t, nil
}

// CountFeatures returns the total number of stored features.
func (s *Store) CountFeatures(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM features").Scan(&n); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return n, nil
}

// isMissingTable matches the driver error SQLite raises for a statement
// referencing a table that does not exist. SQLite reports it under the
// generic SQLITE_ERROR code, so the message is checked for the specific
// table name as well.
func isMissingTable(err error, table string) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) &&
		serr.Code == sqlite3.ErrError &&
		strings.Contains(serr.Error(), "no such table: "+table)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
