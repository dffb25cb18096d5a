package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/avl-events/internal/pipeline"
)

// SortOrder represents the available sorting options for venue reports
type SortOrder string

const (
	SortByVenue    SortOrder = "venue"
	SortByInserted SortOrder = "inserted"
	SortByFailed   SortOrder = "failed"
)

// ParseSortOrder validates a --sort value; empty keeps report order
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case "", SortByVenue, SortByInserted, SortByFailed:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'venue', 'inserted' or 'failed')", s)
	}
}

// sortVenues returns a sorted copy of venues; the report itself is not modified
func sortVenues(venues []pipeline.VenueReport, order SortOrder) []pipeline.VenueReport {
	sorted := make([]pipeline.VenueReport, len(venues))
	copy(sorted, venues)

	switch order {
	case SortByVenue:
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareByVenue(sorted[i], sorted[j])
		})
	case SortByInserted:
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Inserted != sorted[j].Inserted {
				return sorted[i].Inserted > sorted[j].Inserted
			}
			return compareByVenue(sorted[i], sorted[j])
		})
	case SortByFailed:
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Failed() != sorted[j].Failed() {
				return sorted[i].Failed()
			}
			return compareByVenue(sorted[i], sorted[j])
		})
	}

	return sorted
}

// compareByVenue orders by venue name ignoring case and a leading "The"
func compareByVenue(i, j pipeline.VenueReport) bool {
	return sortName(i.Venue) < sortName(j.Venue)
}

func sortName(name string) string {
	name = strings.ToLower(name)
	return strings.TrimPrefix(name, "the ")
}
