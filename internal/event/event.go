package event

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a stored event
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusPast      Status = "past"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusPast, StatusCancelled:
		return true
	}
	return false
}

// ScrapedEvent is a raw listing produced by a site extractor. It has no identity
// until it has been reconciled against stored events.
type ScrapedEvent struct {
	Title          string `json:"title"`
	Date           string `json:"date"`
	Time           string `json:"time,omitempty"`
	Description    string `json:"description,omitempty"`
	Price          string `json:"price,omitempty"`
	TicketURL      string `json:"ticket_url,omitempty"`
	Genre          string `json:"genre,omitempty"`
	AgeRestriction string `json:"age_restriction,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	ArtistInfo     string `json:"artist_info,omitempty"`
}

// Venue is a physical location hosting events, looked up by its unique name
type Venue struct {
	ID          int64  `json:"id" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Address     string `json:"address" yaml:"address"`
	Website     string `json:"website,omitempty" yaml:"website"`
	Description string `json:"description,omitempty" yaml:"description"`
	Capacity    int    `json:"capacity,omitempty" yaml:"capacity"`
	ImageURL    string `json:"image_url,omitempty" yaml:"image_url"`
}

// Event is a stored listing belonging to a venue
type Event struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	VenueID        int64      `json:"venue_id"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	StartTime      string     `json:"start_time,omitempty"`
	EndTime        string     `json:"end_time,omitempty"`
	Price          string     `json:"price,omitempty"`
	TicketURL      string     `json:"ticket_url,omitempty"`
	Genre          string     `json:"genre,omitempty"`
	AgeRestriction string     `json:"age_restriction,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	ArtistInfo     string     `json:"artist_info,omitempty"`
	IsFeatured     bool       `json:"is_featured"`
	IsSoldOut      bool       `json:"is_sold_out"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsSoldOutPrice reports whether price text marks the event as sold out
func IsSoldOutPrice(price string) bool {
	return strings.Contains(strings.ToLower(price), "sold out")
}

// NewEvent builds an upcoming, non-featured Event for venueID from a scraped listing
// and its normalized start date.
func NewEvent(venueID int64, scraped ScrapedEvent, start time.Time) *Event {
	return &Event{
		Title:          scraped.Title,
		Description:    scraped.Description,
		VenueID:        venueID,
		StartDate:      start,
		StartTime:      scraped.Time,
		Price:          scraped.Price,
		TicketURL:      scraped.TicketURL,
		Genre:          scraped.Genre,
		AgeRestriction: scraped.AgeRestriction,
		ImageURL:       scraped.ImageURL,
		ArtistInfo:     scraped.ArtistInfo,
		IsFeatured:     false,
		IsSoldOut:      IsSoldOutPrice(scraped.Price),
		Status:         StatusUpcoming,
	}
}

// ShouldRetire reports whether cleanup moves the event to past: it started more
// than maxAge before now and is still upcoming. Cancelled events keep their status.
func (e *Event) ShouldRetire(now time.Time, maxAge time.Duration) bool {
	if e.Status != StatusUpcoming {
		return false
	}
	return e.StartDate.Before(now.Add(-maxAge))
}
