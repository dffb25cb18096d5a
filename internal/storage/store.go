package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// ErrNotFound is returned when a venue or event does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistence contract for venues and events
type Store interface {
	VenueByName(ctx context.Context, name string) (*event.Venue, error)
	AllVenues(ctx context.Context) ([]*event.Venue, error)
	CreateVenue(ctx context.Context, venue *event.Venue) (*event.Venue, error)

	EventsByVenue(ctx context.Context, venueID int64) ([]*event.Event, error)
	AllEvents(ctx context.Context) ([]*event.Event, error)
	CreateEvent(ctx context.Context, evt *event.Event) (*event.Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status event.Status) error

	Close() error
}

// Seed creates every venue in venues that the store does not already hold,
// matching by name. It returns the venues it created.
func Seed(ctx context.Context, store Store, venues []event.Venue) ([]*event.Venue, error) {
	created := make([]*event.Venue, 0)

	for i := range venues {
		v := venues[i]
		_, err := store.VenueByName(ctx, v.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, fmt.Errorf("looking up venue %q: %w", v.Name, err)
		}

		stored, err := store.CreateVenue(ctx, &v)
		if err != nil {
			return created, fmt.Errorf("creating venue %q: %w", v.Name, err)
		}
		created = append(created, stored)
	}

	return created, nil
}

// validateEvent checks the fields every stored event must carry
func validateEvent(evt *event.Event) error {
	if evt.Title == "" {
		return errors.New("event title is required")
	}
	if evt.VenueID == 0 {
		return errors.New("event venue is required")
	}
	if evt.StartDate.IsZero() {
		return errors.New("event start date is required")
	}
	if !evt.Status.Valid() {
		return fmt.Errorf("invalid event status %q", evt.Status)
	}
	return nil
}
