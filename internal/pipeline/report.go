package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// RecordError is a single scraped listing that was not stored
type RecordError = event.Rejection

// VenueReport is the outcome of one venue's pipeline in a cycle
type VenueReport struct {
	Venue      string
	URL        string
	Scraped    int
	Inserted   int
	Duplicates int
	Rejected   []RecordError
	Err        error // set when the venue was abandoned for this cycle
	Duration   time.Duration
}

// Failed reports whether the venue was abandoned
func (v VenueReport) Failed() bool {
	return v.Err != nil
}

type recordJSON struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type venueReportJSON struct {
	Venue      string       `json:"venue"`
	URL        string       `json:"url"`
	Scraped    int          `json:"scraped"`
	Inserted   int          `json:"inserted"`
	Duplicates int          `json:"duplicates"`
	Rejected   []recordJSON `json:"rejected"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// MarshalJSON renders errors as strings
func (v VenueReport) MarshalJSON() ([]byte, error) {
	out := venueReportJSON{
		Venue:      v.Venue,
		URL:        v.URL,
		Scraped:    v.Scraped,
		Inserted:   v.Inserted,
		Duplicates: v.Duplicates,
		Rejected:   make([]recordJSON, 0, len(v.Rejected)),
		DurationMS: v.Duration.Milliseconds(),
	}
	for _, r := range v.Rejected {
		rec := recordJSON{Title: r.Title, Kind: string(r.Kind)}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		out.Rejected = append(out.Rejected, rec)
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	return json.Marshal(out)
}

// CleanupFailure is an event cleanup could not retire
type CleanupFailure struct {
	EventID int64
	Title   string
	Err     error
}

// CleanupReport is the outcome of a retirement pass
type CleanupReport struct {
	Checked  int
	Retired  int
	Failures []CleanupFailure
	Err      error // set when events could not be listed at all
}

type cleanupJSON struct {
	Checked  int           `json:"checked"`
	Retired  int           `json:"retired"`
	Failures []failureJSON `json:"failures"`
	Error    string        `json:"error,omitempty"`
}

type failureJSON struct {
	EventID int64  `json:"event_id"`
	Title   string `json:"title"`
	Error   string `json:"error"`
}

// MarshalJSON renders errors as strings
func (c CleanupReport) MarshalJSON() ([]byte, error) {
	out := cleanupJSON{
		Checked:  c.Checked,
		Retired:  c.Retired,
		Failures: make([]failureJSON, 0, len(c.Failures)),
	}
	for _, f := range c.Failures {
		out.Failures = append(out.Failures, failureJSON{EventID: f.EventID, Title: f.Title, Error: f.Err.Error()})
	}
	if c.Err != nil {
		out.Error = c.Err.Error()
	}
	return json.Marshal(out)
}

// CycleReport summarizes one scrape cycle
type CycleReport struct {
	ID         uuid.UUID      `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Venues     []VenueReport  `json:"venues"`
	Cleanup    *CleanupReport `json:"cleanup,omitempty"`
}

// Failed returns the venues abandoned during the cycle
func (r *CycleReport) Failed() []VenueReport {
	failed := make([]VenueReport, 0)
	for _, v := range r.Venues {
		if v.Failed() {
			failed = append(failed, v)
		}
	}
	return failed
}

// TotalInserted is the number of events stored across all venues
func (r *CycleReport) TotalInserted() int {
	total := 0
	for _, v := range r.Venues {
		total += v.Inserted
	}
	return total
}

// OK reports whether every venue completed
func (r *CycleReport) OK() bool {
	return len(r.Failed()) == 0
}

// Duration is the wall time of the cycle
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
