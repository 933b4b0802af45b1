package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/roadmap/internal/catalog"
	"github.com/roach88/roadmap/internal/fetch"
	"github.com/roach88/roadmap/internal/store"
	"github.com/roach88/roadmap/internal/testutil"
)

// remoteFeed is a configurable fake of the remote catalog endpoint with
// ETag-based conditional retrieval.
type remoteFeed struct {
	etag     string
	features atomic.Value // []map[string]any
	calls    atomic.Int32
}

func (rf *remoteFeed) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rf.calls.Add(1)
		if rf.etag != "" && r.Header.Get("If-None-Match") == rf.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if rf.etag != "" {
			w.Header().Set("ETag", rf.etag)
		}
		features, _ := rf.features.Load().([]map[string]any)
		json.NewEncoder(w).Encode(map[string]any{
			"count":    len(features),
			"features": features,
		})
	}
}

func remoteFeature(id int64, modified string) map[string]any {
	return map[string]any{
		"id":          id,
		"title":       fmt.Sprintf("Feature %d", id),
		"description": "A feature.",
		"status":      "In development",
		"gaDate":      "2026-04",
		"created":     "2026-01-01T00:00:00Z",
		"modified":    modified,
		"products":    []string{"Teams"},
		"platforms":   []string{"Web"},
	}
}

func newTestCoordinator(t *testing.T, feedURL string) (*Coordinator, *store.Store, *testutil.Clock) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewClock(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))
	fetcher := fetch.New(feedURL, zap.NewNop(), fetch.WithBackoff(time.Millisecond))
	c := New(s, fetcher, zap.NewNop(), WithClock(clock.Now))
	return c, s, clock
}

func TestRun_InitialSyncWritesEverything(t *testing.T) {
	feed := &remoteFeed{etag: `W/"v1"`}
	feed.features.Store([]map[string]any{
		remoteFeature(101, "2026-02-01T12:00:00Z"),
		remoteFeature(102, "2026-01-20T09:00:00Z"),
	})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	res, err := c.Run(ctx, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.RecordsProcessed)
	assert.Equal(t, 2, res.RecordsInserted)
	assert.Zero(t, res.RecordsUpdated)
	assert.NotEmpty(t, res.RunID)

	cp, err := s.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusIdle, cp.Status)
	assert.Equal(t, 2, cp.TotalCount)
	assert.True(t, cp.Synced())
	assert.Empty(t, cp.LastError)

	// The conditional-fetch token was persisted for next time.
	tok, err := s.GetCachedToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, `W/"v1"`, tok.Value)

	f, err := s.GetFeatureByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, []string{"Teams"}, f.Products)
}

func TestRun_DifferentialSkipsOlderRecords(t *testing.T) {
	feed := &remoteFeed{}
	feed.features.Store([]map[string]any{
		remoteFeature(101, "2026-01-10T00:00:00Z"),
	})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	// Pre-existing record establishes a watermark of 2026-01-15.
	existing := catalog.Feature{
		ID:       200,
		Title:    "Existing",
		Status:   "Launched",
		Created:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Modified: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.ApplyBatch(ctx, []catalog.Feature{existing}))

	// Feed has one record below and one above the watermark.
	feed.features.Store([]map[string]any{
		remoteFeature(101, "2026-01-10T00:00:00Z"),
		remoteFeature(102, "2026-01-20T00:00:00Z"),
	})

	res, err := c.Run(ctx, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RecordsProcessed)
	assert.Equal(t, 1, res.RecordsInserted)

	// Only the newer record was written.
	_, err = s.GetFeatureByID(ctx, 102)
	assert.NoError(t, err)
	_, err = s.GetFeatureByID(ctx, 101)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_SkipsWhenSyncInProgress(t *testing.T) {
	feed := &remoteFeed{}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-01T00:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	// Another process holds the lock.
	acquired, err := s.AcquireSyncLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	res, err := c.Run(ctx, false)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, "sync already in progress", res.SkipReason)
	assert.Zero(t, feed.calls.Load(), "skipped sync must not fetch")

	n, err := s.CountFeatures(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "skipped sync must not write")
}

func TestRun_ConditionalShortCircuit(t *testing.T) {
	feed := &remoteFeed{etag: `W/"v1"`}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-01T00:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, clock := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	res, err := c.Run(ctx, false)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.RecordsProcessed)

	before, err := s.GetCheckpoint(ctx)
	require.NoError(t, err)
	wmBefore, err := s.LastModifiedWatermark(ctx)
	require.NoError(t, err)

	// Second cycle: the feed is unchanged, the persisted token produces a
	// 304 and nothing is processed.
	clock.Advance(48 * time.Hour)
	res, err = c.Run(ctx, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.RecordsProcessed)
	assert.Zero(t, res.RecordsInserted)

	after, err := s.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalCount, after.TotalCount)
	assert.True(t, after.LastSync.After(before.LastSync), "checkpoint time advances on a no-op sync")

	wmAfter, err := s.LastModifiedWatermark(ctx)
	require.NoError(t, err)
	require.NotNil(t, wmAfter)
	assert.True(t, wmAfter.Equal(*wmBefore), "watermark preserved")
}

func TestRun_ForceBypassesCache(t *testing.T) {
	feed := &remoteFeed{etag: `W/"v1"`}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-01T00:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	res, err := c.Run(ctx, false)
	require.NoError(t, err)
	require.True(t, res.Success)

	// Forced: the validator is not sent, so the full body comes back and
	// the differential still decides nothing is newer.
	res, err = c.Run(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.RecordsProcessed)

	tok, err := s.GetCachedToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, tok, "forced sync still persists the fresh token")
}

func TestRun_UpdateCounting(t *testing.T) {
	feed := &remoteFeed{}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-01-10T00:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, _, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	res, err := c.Run(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsInserted)

	// Same record, newer modified stamp: processed as an update, no growth.
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-05T00:00:00Z")})

	res, err = c.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsProcessed)
	assert.Zero(t, res.RecordsInserted)
	assert.Equal(t, 1, res.RecordsUpdated)
}

func TestRun_FetchFailureRecordsCheckpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	res, err := c.Run(ctx, false)
	require.NoError(t, err, "sync failures become results, not faults")

	assert.False(t, res.Success)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.Error)

	cp, err := s.GetCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusIdle, cp.Status, "status must not stay syncing after a failure")
	assert.Contains(t, cp.LastError, "attempts exhausted")
	assert.False(t, cp.Synced(), "failed first sync leaves the never-synced sentinel")

	// The lock is free again.
	acquired, err := s.AcquireSyncLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRun_UnreadableCheckpointLeftIntact(t *testing.T) {
	feed := &remoteFeed{}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-01T12:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, s, _ := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	// A checkpoint row Run cannot parse.
	_, err := s.DB().Exec("UPDATE sync_checkpoint SET last_sync = 'garbage', total_count = 7 WHERE id = 1")
	require.NoError(t, err)

	res, err := c.Run(ctx, false)
	require.NoError(t, err, "sync failures become results, not faults")

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, feed.calls.Load(), "must fail before reaching the network")

	// The unreadable row is left exactly as it was - not overwritten with
	// zeroed fields - and the lock was never taken.
	var lastSync, status string
	var total int
	require.NoError(t, s.DB().QueryRow(
		"SELECT last_sync, status, total_count FROM sync_checkpoint WHERE id = 1",
	).Scan(&lastSync, &status, &total))
	assert.Equal(t, "garbage", lastSync)
	assert.Equal(t, string(catalog.StatusIdle), status)
	assert.Equal(t, 7, total)
}

func TestIsSyncNeeded(t *testing.T) {
	feed := &remoteFeed{}
	feed.features.Store([]map[string]any{remoteFeature(101, "2026-02-01T00:00:00Z")})
	srv := httptest.NewServer(feed.handler())
	defer srv.Close()

	c, _, clock := newTestCoordinator(t, srv.URL)
	ctx := context.Background()

	needed, err := c.IsSyncNeeded(ctx, 24)
	require.NoError(t, err)
	assert.True(t, needed, "never-synced store needs a sync")

	res, err := c.Run(ctx, false)
	require.NoError(t, err)
	require.True(t, res.Success)

	needed, err = c.IsSyncNeeded(ctx, 24)
	require.NoError(t, err)
	assert.False(t, needed, "fresh checkpoint does not need a sync")

	clock.Advance(23 * time.Hour)
	needed, err = c.IsSyncNeeded(ctx, 24)
	require.NoError(t, err)
	assert.False(t, needed)

	clock.Advance(time.Hour)
	needed, err = c.IsSyncNeeded(ctx, 24)
	require.NoError(t, err)
	assert.True(t, needed, "threshold age is inclusive")
}
