package rpc

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/roadmap/internal/catalog"
	"github.com/roach88/roadmap/internal/querysql"
	"github.com/roach88/roadmap/internal/search"
	"github.com/roach88/roadmap/internal/store"
	"github.com/roach88/roadmap/internal/syncer"
)

// Handler wires the three operations to the core components. All
// dependencies are constructed and owned by the caller - no lazy global
// state.
type Handler struct {
	store       *store.Store
	engine      *search.Engine
	coordinator *syncer.Coordinator
	freshHours  int
	logger      *zap.Logger
}

// NewHandler creates the operation handler. freshHours is the checkpoint
// age below which a non-forced sync request is answered with a skip.
func NewHandler(s *store.Store, e *search.Engine, c *syncer.Coordinator, freshHours int, logger *zap.Logger) *Handler {
	return &Handler{
		store:       s,
		engine:      e,
		coordinator: c,
		freshHours:  freshHours,
		logger:      logger,
	}
}

// Search validates the request and runs a catalog search.
func (h *Handler) Search(ctx context.Context, req SearchRequest) (search.Result, error) {
	if err := req.Validate(); err != nil {
		return search.Result{}, err
	}

	res, err := h.engine.Search(ctx, querysql.Filters{
		Text:      req.Query,
		Products:  req.Products,
		Platforms: req.Platforms,
		Status:    req.Status,
		GAFrom:    req.DateFrom,
		GATo:      req.DateTo,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		h.logger.Error("search failed", zap.Error(err))
		return search.Result{}, &Error{Code: CodeInternal, Message: "search failed", Err: err}
	}
	return res, nil
}

// GetByID validates the request and reconstructs the full feature,
// including every association set and availability entry.
func (h *Handler) GetByID(ctx context.Context, req GetRequest) (catalog.Feature, error) {
	if err := req.Validate(); err != nil {
		return catalog.Feature{}, err
	}

	f, err := h.store.GetFeatureByID(ctx, req.ID)
	if errors.Is(err, store.ErrNotFound) {
		return catalog.Feature{}, &Error{Code: CodeNotFound, Message: err.Error(), Err: err}
	}
	if err != nil {
		h.logger.Error("get feature failed", zap.Int64("id", req.ID), zap.Error(err))
		return catalog.Feature{}, &Error{Code: CodeInternal, Message: "lookup failed", Err: err}
	}
	return f, nil
}

// Sync runs a synchronization cycle. Without force, a fresh checkpoint
// short-circuits to an explicit skip before the coordinator is invoked.
func (h *Handler) Sync(ctx context.Context, req SyncRequest) (syncer.Result, error) {
	if !req.Force {
		needed, err := h.coordinator.IsSyncNeeded(ctx, h.freshHours)
		if err == nil && !needed {
			return syncer.Result{
				Success:    true,
				Skipped:    true,
				SkipReason: "data is fresh",
			}, nil
		}
	}
	return h.coordinator.Run(ctx, req.Force)
}
