package fetch

import (
	"fmt"
	"time"

	"github.com/roach88/roadmap/internal/catalog"
)

// envelope is the remote feed's JSON shape: a payload array of feature
// records under a thin wrapper.
type envelope struct {
	Count    int             `json:"count"`
	Features []remoteFeature `json:"features"`
}

type remoteFeature struct {
	ID             int64                `json:"id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Status         string               `json:"status"`
	GADate         string               `json:"gaDate"`
	PreviewDate    string               `json:"previewDate"`
	Created        string               `json:"created"`
	Modified       string               `json:"modified"`
	Products       []string             `json:"products"`
	Platforms      []string             `json:"platforms"`
	CloudInstances []string             `json:"cloudInstances"`
	ReleaseRings   []string             `json:"releaseRings"`
	Availabilities []remoteAvailability `json:"availabilities"`
}

type remoteAvailability struct {
	Ring  string `json:"ring"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

func (e envelope) toCatalog() ([]catalog.Feature, error) {
	features := make([]catalog.Feature, 0, len(e.Features))
	for _, rf := range e.Features {
		f, err := rf.toCatalog()
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

func (rf remoteFeature) toCatalog() (catalog.Feature, error) {
	created, err := parseTimestamp(rf.Created)
	if err != nil {
		return catalog.Feature{}, fmt.Errorf("feature %d: created: %w", rf.ID, err)
	}
	modified, err := parseTimestamp(rf.Modified)
	if err != nil {
		return catalog.Feature{}, fmt.Errorf("feature %d: modified: %w", rf.ID, err)
	}

	availabilities := make([]catalog.Availability, 0, len(rf.Availabilities))
	for _, a := range rf.Availabilities {
		availabilities = append(availabilities, catalog.Availability{
			Ring:  a.Ring,
			Year:  a.Year,
			Month: a.Month,
		})
	}

	return catalog.Feature{
		ID:             rf.ID,
		Title:          rf.Title,
		Description:    rf.Description,
		Status:         rf.Status,
		GADate:         rf.GADate,
		PreviewDate:    rf.PreviewDate,
		Created:        created,
		Modified:       modified,
		Products:       rf.Products,
		Platforms:      rf.Platforms,
		CloudInstances: rf.CloudInstances,
		ReleaseRings:   rf.ReleaseRings,
		Availabilities: availabilities,
	}, nil
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds; the
// feed is not consistent about which it emits.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
