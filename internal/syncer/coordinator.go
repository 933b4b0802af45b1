// Package syncer orchestrates synchronization cycles: fetch, diff against
// the store watermark, transactional write-back, and checkpointing.
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/roadmap/internal/catalog"
	"github.com/roach88/roadmap/internal/fetch"
	"github.com/roach88/roadmap/internal/store"
)

// Result reports one sync invocation.
//
// Inserted is approximated as the non-negative growth in total store count
// across the cycle; Updated is the remainder of processed records. The
// approximation is deliberate - the write path never tracks per-record
// insert-vs-update identity, and no caller needs exact attribution.
type Result struct {
	RunID            string `json:"run_id"`
	Success          bool   `json:"success"`
	Skipped          bool   `json:"skipped"`
	SkipReason       string `json:"skip_reason,omitempty"`
	RecordsProcessed int    `json:"records_processed"`
	RecordsInserted  int    `json:"records_inserted"`
	RecordsUpdated   int    `json:"records_updated"`
	DurationMs       int64  `json:"duration_ms"`
	Error            string `json:"error,omitempty"`
}

// Coordinator runs sync cycles against one store with one fetcher. The
// fetcher instance is injected, never a process-wide singleton, so its
// cached validator stays testable and per-coordinator.
type Coordinator struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the wall clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a sync coordinator.
func New(s *store.Store, f *fetch.Fetcher, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   s,
		fetcher: f,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one complete synchronization cycle.
//
// Mutual exclusion comes from the atomic checkpoint status transition:
// when another cycle already holds "syncing" - in this process or any
// other process sharing the store - Run returns a skipped result without
// writing anything. Whatever happens afterwards, the checkpoint status is
// returned to idle before Run returns; failures land in the checkpoint's
// error field instead of propagating as faults.
func (c *Coordinator) Run(ctx context.Context, force bool) (Result, error) {
	start := c.now()
	res := Result{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run_id", res.RunID))

	// Read the prior checkpoint before taking the lock: fail() preserves
	// its last_sync and total_count, and an unreadable checkpoint must not
	// be overwritten with zero values.
	prior, err := c.store.GetCheckpoint(ctx)
	if err != nil {
		logger.Error("sync failed", zap.Error(err))
		res.Error = err.Error()
		res.DurationMs = c.now().Sub(start).Milliseconds()
		return res, nil
	}

	acquired, err := c.store.AcquireSyncLock(ctx)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	if !acquired {
		logger.Info("sync already in progress, skipping")
		res.Skipped = true
		res.SkipReason = "sync already in progress"
		return res, nil
	}

	if !force {
		if tok, err := c.store.GetCachedToken(ctx); err == nil && tok != nil {
			c.fetcher.SetToken(tok.Value)
		}
	} else {
		c.fetcher.SetToken("")
	}

	fetched, err := c.fetcher.FetchAll(ctx, !force)
	if err != nil {
		return c.fail(ctx, logger, res, prior, start, err)
	}

	if fetched.Modified {
		diff, err := c.differential(ctx, fetched.Features)
		if err != nil {
			return c.fail(ctx, logger, res, prior, start, err)
		}

		before, err := c.store.CountFeatures(ctx)
		if err != nil {
			return c.fail(ctx, logger, res, prior, start, err)
		}
		if err := c.store.ApplyBatch(ctx, diff); err != nil {
			return c.fail(ctx, logger, res, prior, start, err)
		}
		after, err := c.store.CountFeatures(ctx)
		if err != nil {
			return c.fail(ctx, logger, res, prior, start, err)
		}

		res.RecordsProcessed = len(diff)
		res.RecordsInserted = max(0, after-before)
		res.RecordsUpdated = res.RecordsProcessed - res.RecordsInserted
	}

	if fetched.Token != "" {
		err := c.store.SetCachedToken(ctx, catalog.CacheToken{
			Value:       fetched.Token,
			ValidatedAt: c.now(),
		})
		if err != nil {
			return c.fail(ctx, logger, res, prior, start, err)
		}
		c.fetcher.SetToken(fetched.Token)
	}

	total, err := c.store.CountFeatures(ctx)
	if err != nil {
		return c.fail(ctx, logger, res, prior, start, err)
	}

	res.DurationMs = c.now().Sub(start).Milliseconds()
	checkpoint := catalog.Checkpoint{
		LastSync:   c.now(),
		Status:     catalog.StatusIdle,
		TotalCount: total,
		DurationMs: res.DurationMs,
	}
	if err := c.store.SetCheckpoint(ctx, checkpoint); err != nil {
		return c.fail(ctx, logger, res, prior, start, err)
	}

	res.Success = true
	logger.Info("sync complete",
		zap.Int("processed", res.RecordsProcessed),
		zap.Int("inserted", res.RecordsInserted),
		zap.Int("updated", res.RecordsUpdated),
		zap.Int64("duration_ms", res.DurationMs))
	return res, nil
}

// differential returns the fetched records whose modified timestamp
// strictly exceeds the store's watermark. With no watermark yet, the
// differential set is the entire fetched set.
func (c *Coordinator) differential(ctx context.Context, fetched []catalog.Feature) ([]catalog.Feature, error) {
	watermark, err := c.store.LastModifiedWatermark(ctx)
	if err != nil {
		return nil, err
	}
	if watermark == nil {
		return fetched, nil
	}

	diff := make([]catalog.Feature, 0, len(fetched))
	for _, f := range fetched {
		if f.Modified.After(*watermark) {
			diff = append(diff, f)
		}
	}
	return diff, nil
}

// fail records the failure in the checkpoint - back to idle, error message
// set, prior counts preserved - and returns a failed result. The sync
// error never propagates as a fault; status must not stay "syncing" on any
// path out of Run.
func (c *Coordinator) fail(ctx context.Context, logger *zap.Logger, res Result, prior catalog.Checkpoint, start time.Time, cause error) (Result, error) {
	logger.Error("sync failed", zap.Error(cause))

	res.Success = false
	res.Error = cause.Error()
	res.DurationMs = c.now().Sub(start).Milliseconds()

	checkpoint := catalog.Checkpoint{
		LastSync:   prior.LastSync,
		Status:     catalog.StatusIdle,
		TotalCount: prior.TotalCount,
		DurationMs: res.DurationMs,
		LastError:  cause.Error(),
	}
	if err := c.store.SetCheckpoint(ctx, checkpoint); err != nil {
		logger.Error("failed to record sync failure in checkpoint", zap.Error(err))
	}
	return res, nil
}

// IsSyncNeeded reports whether the store is stale: no sync has ever
// completed, or at least staleHours wall-clock hours have passed since the
// last one. Advisory only - it does not acquire the sync lock.
func (c *Coordinator) IsSyncNeeded(ctx context.Context, staleHours int) (bool, error) {
	cp, err := c.store.GetCheckpoint(ctx)
	if err != nil {
		return true, nil
	}
	if !cp.Synced() {
		return true, nil
	}
	age := c.now().Sub(cp.LastSync)
	return age >= time.Duration(staleHours)*time.Hour, nil
}
