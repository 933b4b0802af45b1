// Package search is the query engine: it turns filter criteria into store
// queries, applies the default time window, and shapes paginated results.
// It reads only committed data through the store, so searches stay correct
// while a sync transaction is in flight.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/roadmap/internal/catalog"
	"github.com/roach88/roadmap/internal/querysql"
	"github.com/roach88/roadmap/internal/store"
)

// MaxLimit bounds a single page. The default limit is the same value: an
// "effectively unbounded" sentinel, since the default window keeps
// no-filter result sets small anyway.
const MaxLimit = 10000

// descriptionLimit is the projection cutoff; longer descriptions are
// truncated with a marker. The full text remains available via GetByID.
const (
	descriptionLimit = 200
	truncationMarker = "..."
	yearMonthLayout  = "2006-01"
)

// Item is the lightweight projection returned by searches.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Products    []string  `json:"products"`
	Platforms   []string  `json:"platforms"`
	GADate      string    `json:"ga_date,omitempty"`
	PreviewDate string    `json:"preview_date,omitempty"`
	Modified    time.Time `json:"modified"`
	Link        string    `json:"link"`
}

// Result is a shaped, paginated search response. TotalCount counts all
// matching rows before limit/offset; HasMore follows from it.
type Result struct {
	Items      []Item `json:"items"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
}

// Engine executes searches against a store.
type Engine struct {
	store    *store.Store
	linkBase string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock. Used by tests to pin the default
// window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a search engine. linkBase is the prefix the deterministic
// per-item reference URL is built from (the feature ID is appended).
func New(s *store.Store, linkBase string, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		linkBase: linkBase,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs a filtered catalog query.
//
// When no filter dimension at all is supplied, an implicit GA-date window
// from the previous calendar month through the current one is applied, so
// default invocations return "what's new recently" instead of the whole
// catalog.
func (e *Engine) Search(ctx context.Context, f querysql.Filters) (Result, error) {
	if f.Empty() {
		f.GAFrom, f.GATo = e.defaultWindow()
	}
	if f.Limit <= 0 {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := querysql.Compile(f)

	var total int
	if err := e.store.QueryRow(ctx, q.CountSQL, q.CountArgs...).Scan(&total); err != nil {
		return Result{}, fmt.Errorf("search: count: %w", err)
	}

	items, err := e.queryItems(ctx, q)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Items:      items,
		TotalCount: total,
		HasMore:    f.Offset+len(items) < total,
	}, nil
}

// defaultWindow returns the implicit GA-date range: first day of the
// previous calendar month through the current month, at year-month
// granularity.
func (e *Engine) defaultWindow() (from, to string) {
	now := e.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return prev.Format(yearMonthLayout), now.Format(yearMonthLayout)
}

func (e *Engine) queryItems(ctx context.Context, q querysql.Compiled) ([]Item, error) {
	rows, err := e.store.Query(ctx, q.ItemsSQL, q.ItemsArgs...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it                Item
			desc, ga, preview sql.NullString
			modified          string
		)
		if err := rows.Scan(&it.ID, &it.Title, &desc, &it.Status, &ga, &preview, &modified); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		it.Description = truncate(desc.String)
		it.GADate = ga.String
		it.PreviewDate = preview.String
		if it.Modified, err = time.Parse(time.RFC3339, modified); err != nil {
			return nil, fmt.Errorf("search: parse modified: %w", err)
		}
		it.Modified = it.Modified.UTC()
		it.Link = fmt.Sprintf("%s%d", e.linkBase, it.ID)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: iterate: %w", err)
	}

	// Tag sets are fetched per row after the page query completes: the
	// single-connection store cannot run these while rows is still open.
	for i := range items {
		if items[i].Products, err = e.store.AssociationTags(ctx, items[i].ID, catalog.KindProduct); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if items[i].Platforms, err = e.store.AssociationTags(ctx, items[i].ID, catalog.KindPlatform); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}

	return items, nil
}

// truncate cuts a description at descriptionLimit characters and appends
// the marker. Counts runes, not bytes, so multi-byte text never splits.
func truncate(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= descriptionLimit {
		return string(runes)
	}
	return string(runes[:descriptionLimit]) + truncationMarker
}
