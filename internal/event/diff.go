package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DuplicateWindow is how close two same-titled events must start to count as one listing
const DuplicateWindow = 24 * time.Hour

// RejectKind classifies why a scraped record was not inserted
type RejectKind string

const (
	RejectDate    RejectKind = "date"
	RejectInvalid RejectKind = "invalid"
	RejectStorage RejectKind = "storage"
)

// Rejection records a scraped event that was dropped and why
type Rejection struct {
	Title string     `json:"title"`
	Kind  RejectKind `json:"kind"`
	Err   error      `json:"-"`
}

// Error implements error so rejections can be logged directly
func (r Rejection) Error() string {
	return fmt.Sprintf("%s (%s): %v", r.Title, r.Kind, r.Err)
}

// Plan is the outcome of reconciling one venue's scraped events
type Plan struct {
	Insert     []*Event    // new events to create, in scrape order
	Duplicates []*Event    // scraped events matching a stored or already-planned event
	Rejected   []Rejection // records that could not be turned into events
}

// IsDuplicate reports whether an event titled title starting at start matches any of
// existing: identical title (case-sensitive) and start dates less than DuplicateWindow apart.
func IsDuplicate(title string, start time.Time, existing []*Event) bool {
	for _, evt := range existing {
		if evt.Title != title {
			continue
		}
		delta := evt.StartDate.Sub(start)
		if delta < 0 {
			delta = -delta
		}
		if delta < DuplicateWindow {
			return true
		}
	}
	return false
}

// Reconcile compares a venue's freshly scraped events against its stored events and
// returns which ones to insert. Duplicates are skipped, never merged. Events planned
// earlier in the same batch count as existing, so a page listing the same show twice
// yields one insert.
func Reconcile(venue *Venue, scraped []ScrapedEvent, existing []*Event, norm *Normalizer) *Plan {
	plan := &Plan{
		Insert:     make([]*Event, 0),
		Duplicates: make([]*Event, 0),
		Rejected:   make([]Rejection, 0),
	}

	known := make([]*Event, 0, len(existing)+len(scraped))
	known = append(known, existing...)

	for _, s := range scraped {
		// Extractors already drop these, but a partial record must never be stored
		if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Date) == "" {
			plan.Rejected = append(plan.Rejected, Rejection{
				Title: s.Title,
				Kind:  RejectInvalid,
				Err:   errors.New("title and date are required"),
			})
			continue
		}

		start, err := norm.Normalize(s.Date, s.Time)
		if err != nil {
			plan.Rejected = append(plan.Rejected, Rejection{Title: s.Title, Kind: RejectDate, Err: err})
			continue
		}

		candidate := NewEvent(venue.ID, s, start)

		if IsDuplicate(candidate.Title, candidate.StartDate, known) {
			plan.Duplicates = append(plan.Duplicates, candidate)
			continue
		}

		plan.Insert = append(plan.Insert, candidate)
		known = append(known, candidate)
	}

	return plan
}
