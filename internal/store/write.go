package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/roadmap/internal/catalog"
)

// associationTables maps an association kind to its backing table. Kinds
// outside this map are rejected before any SQL is built, so table names
// are never interpolated from caller input.
var associationTables = map[catalog.AssociationKind]string{
	catalog.KindProduct:       "feature_products",
	catalog.KindPlatform:      "feature_platforms",
	catalog.KindCloudInstance: "feature_cloud_instances",
	catalog.KindReleaseRing:   "feature_release_rings",
}

// UpsertFeature inserts or replaces a feature's scalar fields by ID.
// Idempotent: the insert and update paths are indistinguishable to the
// caller. Association tables are not touched - use ReplaceAssociations.
//
// The FTS index is maintained by the schema's triggers inside the same
// statement, so callers never see a window where the row and its index
// entry disagree.
func (s *Store) UpsertFeature(ctx context.Context, f catalog.Feature) error {
	return s.upsertFeature(ctx, s.db, f)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertFeature(ctx context.Context, e execer, f catalog.Feature) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO features
		(id, title, description, status, ga_date, preview_date, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			description  = excluded.description,
			status       = excluded.status,
			ga_date      = excluded.ga_date,
			preview_date = excluded.preview_date,
			created      = excluded.created,
			modified     = excluded.modified
	`,
		f.ID,
		f.Title,
		nullable(f.Description),
		f.Status,
		nullable(f.GADate),
		nullable(f.PreviewDate),
		formatTime(f.Created),
		formatTime(f.Modified),
	)
	if err != nil {
		return fmt.Errorf("upsert feature %d: %w", f.ID, err)
	}
	return nil
}

// ReplaceAssociations deletes every existing tag of the given kind for the
// feature, then inserts the given set. An empty set is a valid final state.
// Duplicate tags in the input collapse to one row (tag is the natural key).
func (s *Store) ReplaceAssociations(ctx context.Context, featureID int64, kind catalog.AssociationKind, tags []string) error {
	return s.replaceAssociations(ctx, s.db, featureID, kind, tags)
}

func (s *Store) replaceAssociations(ctx context.Context, e execer, featureID int64, kind catalog.AssociationKind, tags []string) error {
	table, ok := associationTables[kind]
	if !ok {
		return fmt.Errorf("replace associations: unknown kind %q", kind)
	}

	if _, err := e.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE feature_id = ?", table), featureID,
	); err != nil {
		return fmt.Errorf("replace %s for feature %d: delete: %w", kind, featureID, err)
	}

	for _, tag := range tags {
		_, err := e.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (feature_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING", table),
			featureID, tag,
		)
		if err != nil {
			return fmt.Errorf("replace %s for feature %d: insert %q: %w", kind, featureID, tag, err)
		}
	}

	return nil
}

func (s *Store) replaceAvailabilities(ctx context.Context, e execer, featureID int64, entries []catalog.Availability) error {
	if _, err := e.ExecContext(ctx,
		"DELETE FROM feature_availabilities WHERE feature_id = ?", featureID,
	); err != nil {
		return fmt.Errorf("replace availabilities for feature %d: delete: %w", featureID, err)
	}

	for _, a := range entries {
		_, err := e.ExecContext(ctx, `
			INSERT INTO feature_availabilities (feature_id, ring, year, month)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, featureID, a.Ring, a.Year, a.Month)
		if err != nil {
			return fmt.Errorf("replace availabilities for feature %d: insert: %w", featureID, err)
		}
	}

	return nil
}

// ApplyBatch writes a set of features inside one encompassing transaction:
// each feature is upserted and all four association sets plus its
// availability entries are fully replaced. Any single failure rolls the
// whole batch back - there is no partial commit.
func (s *Store) ApplyBatch(ctx context.Context, features []catalog.Feature) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, f := range features {
		if err := s.upsertFeature(ctx, tx, f); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
		for _, kind := range catalog.Kinds {
			if err := s.replaceAssociations(ctx, tx, f.ID, kind, f.Tags(kind)); err != nil {
				return fmt.Errorf("apply batch: %w", err)
			}
		}
		if err := s.replaceAvailabilities(ctx, tx, f.ID, f.Availabilities); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply batch: commit: %w", err)
	}
	return nil
}

// AcquireSyncLock attempts the atomic idle->syncing checkpoint transition.
// Returns false when another sync already holds the lock. This is the
// cross-process mutual-exclusion primitive: the conditional UPDATE either
// claims the singleton row or touches nothing.
func (s *Store) AcquireSyncLock(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_checkpoint SET status = ? WHERE id = 1 AND status <> ?
	`, catalog.StatusSyncing, catalog.StatusSyncing)
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: rows affected: %w", err)
	}
	return n > 0, nil
}

// SetCheckpoint overwrites the singleton checkpoint row. Always releases
// the sync lock implicitly when cp.Status is idle.
func (s *Store) SetCheckpoint(ctx context.Context, cp catalog.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_checkpoint
		SET last_sync = ?, status = ?, total_count = ?, duration_ms = ?, last_error = ?
		WHERE id = 1
	`,
		formatTime(cp.LastSync),
		cp.Status,
		cp.TotalCount,
		cp.DurationMs,
		nullable(cp.LastError),
	)
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

// SetCachedToken overwrites the singleton conditional-fetch token.
func (s *Store) SetCachedToken(ctx context.Context, tok catalog.CacheToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_cache (id, token, validated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token        = excluded.token,
			validated_at = excluded.validated_at
	`, tok.Value, formatTime(tok.ValidatedAt))
	if err != nil {
		return fmt.Errorf("set cached token: %w", err)
	}
	return nil
}

// formatTime renders timestamps the way the schema stores them: RFC 3339
// in UTC. A fixed format keeps MAX(modified) comparisons lexicographic.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
