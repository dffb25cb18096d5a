package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// Memory is an in-process Store for tests and dry runs
type Memory struct {
	mu      sync.RWMutex
	venues  []*event.Venue
	events  []*event.Event
	venueID int64
	eventID int64
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

// VenueByName returns the venue with the exact name, or ErrNotFound
func (m *Memory) VenueByName(_ context.Context, name string) (*event.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.venues {
		if v.Name == name {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("venue %q: %w", name, ErrNotFound)
}

// AllVenues returns every venue ordered by name
func (m *Memory) AllVenues(_ context.Context) ([]*event.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*event.Venue, 0, len(m.venues))
	for _, v := range m.venues {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateVenue stores venue and returns it with its assigned ID
func (m *Memory) CreateVenue(_ context.Context, venue *event.Venue) (*event.Venue, error) {
	if venue.Name == "" {
		return nil, errors.New("venue name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.venues {
		if v.Name == venue.Name {
			return nil, fmt.Errorf("venue %q already exists", venue.Name)
		}
	}

	m.venueID++
	stored := *venue
	stored.ID = m.venueID
	m.venues = append(m.venues, &stored)

	cp := stored
	return &cp, nil
}

// EventsByVenue returns a venue's events, latest start first
func (m *Memory) EventsByVenue(_ context.Context, venueID int64) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*event.Event, 0)
	for _, e := range m.events {
		if e.VenueID == venueID {
			out = append(out, copyEvent(e))
		}
	}
	sortByStartDesc(out)
	return out, nil
}

// AllEvents returns every event, latest start first
func (m *Memory) AllEvents(_ context.Context) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*event.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, copyEvent(e))
	}
	sortByStartDesc(out)
	return out, nil
}

// CreateEvent stores evt and returns it with its ID and timestamps set
func (m *Memory) CreateEvent(_ context.Context, evt *event.Event) (*event.Event, error) {
	stored := copyEvent(evt)
	if stored.Status == "" {
		stored.Status = event.StatusUpcoming
	}
	if err := validateEvent(stored); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasVenue(stored.VenueID) {
		return nil, fmt.Errorf("inserting event %q: venue %d: %w", stored.Title, stored.VenueID, ErrNotFound)
	}

	m.eventID++
	now := m.now().UTC()
	stored.ID = m.eventID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.events = append(m.events, stored)

	return copyEvent(stored), nil
}

// UpdateEventStatus sets an event's status, or returns ErrNotFound
func (m *Memory) UpdateEventStatus(_ context.Context, id int64, status event.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid event status %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.ID == id {
			e.Status = status
			e.UpdatedAt = m.now().UTC()
			return nil
		}
	}
	return fmt.Errorf("event %d: %w", id, ErrNotFound)
}

func (m *Memory) hasVenue(id int64) bool {
	for _, v := range m.venues {
		if v.ID == id {
			return true
		}
	}
	return false
}

func copyEvent(e *event.Event) *event.Event {
	cp := *e
	if e.EndDate != nil {
		end := *e.EndDate
		cp.EndDate = &end
	}
	return &cp
}

func sortByStartDesc(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartDate.After(events[j].StartDate)
	})
}
