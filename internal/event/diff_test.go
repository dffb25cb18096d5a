package event

import (
	"errors"
	"testing"
	"time"
)

func testNormalizer() *Normalizer {
	n := NewNormalizer(DateOptions{YearPolicy: YearRollForward})
	n.Now = func() time.Time { return refDate }
	return n
}

func TestIsDuplicate(t *testing.T) {
	start := time.Date(2025, time.July, 20, 20, 0, 0, 0, time.UTC)
	existing := []*Event{
		{ID: 1, Title: "Jazz Night", StartDate: start},
	}

	tests := []struct {
		name  string
		title string
		start time.Time
		want  bool
	}{
		{"same title same time", "Jazz Night", start, true},
		{"same title 23h later", "Jazz Night", start.Add(23 * time.Hour), true},
		{"same title 23h earlier", "Jazz Night", start.Add(-23 * time.Hour), true},
		{"same title exactly 24h later", "Jazz Night", start.Add(24 * time.Hour), false},
		{"same title a week later", "Jazz Night", start.AddDate(0, 0, 7), false},
		{"title differs by case", "jazz night", start, false},
		{"different title", "Blues Night", start, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.title, tt.start, existing); got != tt.want {
				t.Errorf("IsDuplicate(%q, %v) = %v, want %v", tt.title, tt.start, got, tt.want)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	venue := &Venue{ID: 3, Name: "The Grey Eagle"}

	t.Run("inserts into empty venue", func(t *testing.T) {
		scraped := []ScrapedEvent{{Title: "Jazz Night", Date: "July 20, 2025", Price: "$15", Genre: "Music"}}

		plan := Reconcile(venue, scraped, nil, testNormalizer())

		if len(plan.Insert) != 1 {
			t.Fatalf("Insert = %d events, want 1", len(plan.Insert))
		}
		evt := plan.Insert[0]
		if evt.VenueID != venue.ID {
			t.Errorf("VenueID = %d, want %d", evt.VenueID, venue.ID)
		}
		if evt.IsSoldOut {
			t.Error("IsSoldOut = true, want false")
		}
		if evt.Status != StatusUpcoming {
			t.Errorf("Status = %q, want upcoming", evt.Status)
		}
		if evt.Genre != "Music" {
			t.Errorf("Genre = %q, want Music", evt.Genre)
		}
		want := time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)
		if !evt.StartDate.Equal(want) {
			t.Errorf("StartDate = %v, want %v", evt.StartDate, want)
		}
	})

	t.Run("sold out price", func(t *testing.T) {
		scraped := []ScrapedEvent{{Title: "Big Show", Date: "July 21, 2025", Price: "SOLD OUT"}}

		plan := Reconcile(venue, scraped, nil, testNormalizer())

		if len(plan.Insert) != 1 || !plan.Insert[0].IsSoldOut {
			t.Fatalf("want one sold-out insert, got %+v", plan.Insert)
		}
	})

	t.Run("idempotent under repeated scraping", func(t *testing.T) {
		scraped := []ScrapedEvent{
			{Title: "Jazz Night", Date: "July 20, 2025"},
			{Title: "Folk Fest", Date: "Sun, Jul 27 2025", Time: "7pm"},
		}

		first := Reconcile(venue, scraped, nil, testNormalizer())
		if len(first.Insert) != 2 {
			t.Fatalf("first pass Insert = %d, want 2", len(first.Insert))
		}

		second := Reconcile(venue, scraped, first.Insert, testNormalizer())
		if len(second.Insert) != 0 {
			t.Errorf("second pass Insert = %d, want 0", len(second.Insert))
		}
		if len(second.Duplicates) != 2 {
			t.Errorf("second pass Duplicates = %d, want 2", len(second.Duplicates))
		}
	})

	t.Run("same show listed twice on one page", func(t *testing.T) {
		scraped := []ScrapedEvent{
			{Title: "Jazz Night", Date: "July 20, 2025", Time: "7pm"},
			{Title: "Jazz Night", Date: "July 20, 2025", Time: "9:30pm"},
		}

		plan := Reconcile(venue, scraped, nil, testNormalizer())

		if len(plan.Insert) != 1 || len(plan.Duplicates) != 1 {
			t.Errorf("Insert = %d, Duplicates = %d, want 1 and 1", len(plan.Insert), len(plan.Duplicates))
		}
	})

	t.Run("same title on a different night is new", func(t *testing.T) {
		existing := []*Event{{ID: 9, Title: "Jazz Night", StartDate: time.Date(2025, time.July, 20, 0, 0, 0, 0, time.UTC)}}
		scraped := []ScrapedEvent{{Title: "Jazz Night", Date: "July 27, 2025"}}

		plan := Reconcile(venue, scraped, existing, testNormalizer())

		if len(plan.Insert) != 1 {
			t.Errorf("Insert = %d, want 1", len(plan.Insert))
		}
	})

	t.Run("bad date skips only that record", func(t *testing.T) {
		scraped := []ScrapedEvent{
			{Title: "Mystery Show", Date: "TBA"},
			{Title: "Jazz Night", Date: "July 20, 2025"},
			{Title: "", Date: "July 22, 2025"},
		}

		plan := Reconcile(venue, scraped, nil, testNormalizer())

		if len(plan.Insert) != 1 || plan.Insert[0].Title != "Jazz Night" {
			t.Fatalf("Insert = %+v, want only Jazz Night", plan.Insert)
		}
		if len(plan.Rejected) != 2 {
			t.Fatalf("Rejected = %d, want 2", len(plan.Rejected))
		}
		if plan.Rejected[0].Kind != RejectDate || !errors.Is(plan.Rejected[0].Err, ErrDateParse) {
			t.Errorf("Rejected[0] = %+v, want a date rejection", plan.Rejected[0])
		}
		if plan.Rejected[1].Kind != RejectInvalid {
			t.Errorf("Rejected[1].Kind = %q, want %q", plan.Rejected[1].Kind, RejectInvalid)
		}
	})
}
