package catalog

import "time"

// AssociationKind identifies one of the tag sets attached to a feature.
type AssociationKind string

const (
	// KindProduct tags a feature with the products it ships in.
	KindProduct AssociationKind = "product"

	// KindPlatform tags a feature with the platforms it targets.
	KindPlatform AssociationKind = "platform"

	// KindCloudInstance tags a feature with the cloud instances it rolls out to.
	KindCloudInstance AssociationKind = "cloud_instance"

	// KindReleaseRing tags a feature with its release rings.
	KindReleaseRing AssociationKind = "release_ring"
)

// Kinds lists every association kind in the order sync writes them.
var Kinds = []AssociationKind{KindProduct, KindPlatform, KindCloudInstance, KindReleaseRing}

// Feature is one catalog entry. The ID is externally assigned and stable
// across syncs; Modified is the watermark driving differential sync.
type Feature struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`

	// GADate and PreviewDate are year-month strings ("2026-04"), empty
	// when the remote source has not announced a date.
	GADate      string `json:"ga_date,omitempty"`
	PreviewDate string `json:"preview_date,omitempty"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Products       []string `json:"products"`
	Platforms      []string `json:"platforms"`
	CloudInstances []string `json:"cloud_instances"`
	ReleaseRings   []string `json:"release_rings"`

	Availabilities []Availability `json:"availabilities"`
}

// Tags returns the association set for a kind.
func (f *Feature) Tags(kind AssociationKind) []string {
	switch kind {
	case KindProduct:
		return f.Products
	case KindPlatform:
		return f.Platforms
	case KindCloudInstance:
		return f.CloudInstances
	case KindReleaseRing:
		return f.ReleaseRings
	default:
		return nil
	}
}

// Availability is a structured per-feature sub-record: when a feature is
// expected in a given release ring.
type Availability struct {
	Ring  string `json:"ring"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

// SyncStatus is the checkpoint's liveness flag.
type SyncStatus string

const (
	// StatusIdle means no sync is in flight.
	StatusIdle SyncStatus = "idle"

	// StatusSyncing means a sync cycle holds the write lock. The atomic
	// idle->syncing transition is the mutual-exclusion primitive; it must
	// never survive the end of a sync attempt.
	StatusSyncing SyncStatus = "syncing"
)

// NeverSynced is the watermark sentinel for a checkpoint that has not
// completed a sync yet.
var NeverSynced = time.Unix(0, 0).UTC()

// Checkpoint is the singleton sync record: exactly one row exists at all
// times. Mutated only by the sync coordinator.
type Checkpoint struct {
	LastSync   time.Time  `json:"last_sync"`
	Status     SyncStatus `json:"status"`
	TotalCount int        `json:"total_count"`
	DurationMs int64      `json:"duration_ms"`
	LastError  string     `json:"last_error,omitempty"`
}

// Synced reports whether a successful sync has ever completed.
func (c *Checkpoint) Synced() bool {
	return c != nil && !c.LastSync.IsZero() && !c.LastSync.Equal(NeverSynced)
}

// CacheToken is the singleton conditional-fetch validator: the opaque token
// the remote source last handed out, and when it was last confirmed valid.
type CacheToken struct {
	Value       string    `json:"value"`
	ValidatedAt time.Time `json:"validated_at"`
}
