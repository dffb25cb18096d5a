package event

import (
	"testing"
	"time"
)

func TestIsSoldOutPrice(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"SOLD OUT", true},
		{"$25 - Sold Out", true},
		{"sold out!", true},
		{"$15", false},
		{"", false},
		{"Soldout", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			if got := IsSoldOutPrice(tt.price); got != tt.want {
				t.Errorf("IsSoldOutPrice(%q) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	start := time.Date(2025, time.July, 20, 20, 0, 0, 0, time.UTC)
	scraped := ScrapedEvent{
		Title:          "Jazz Night",
		Date:           "July 20, 2025",
		Time:           "8pm",
		Description:    "Quartet",
		Price:          "$15",
		TicketURL:      "https://www.etix.com/ticket/p/1",
		Genre:          "Music",
		AgeRestriction: "Ages 18+",
	}

	evt := NewEvent(7, scraped, start)

	if evt.VenueID != 7 {
		t.Errorf("VenueID = %d, want 7", evt.VenueID)
	}
	if evt.Status != StatusUpcoming {
		t.Errorf("Status = %q, want %q", evt.Status, StatusUpcoming)
	}
	if evt.IsFeatured {
		t.Error("IsFeatured = true, want false")
	}
	if evt.IsSoldOut {
		t.Error("IsSoldOut = true, want false")
	}
	if !evt.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", evt.StartDate, start)
	}
	if evt.StartTime != "8pm" {
		t.Errorf("StartTime = %q, want 8pm", evt.StartTime)
	}
	if evt.EndDate != nil {
		t.Errorf("EndDate = %v, want nil", evt.EndDate)
	}
	if evt.Genre != "Music" || evt.AgeRestriction != "Ages 18+" || evt.TicketURL != scraped.TicketURL {
		t.Errorf("optional fields not copied: %+v", evt)
	}
}

func TestEvent_ShouldRetire(t *testing.T) {
	now := time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * 24 * time.Hour

	tests := []struct {
		name   string
		age    time.Duration
		status Status
		want   bool
	}{
		{"45 days old upcoming", 45 * 24 * time.Hour, StatusUpcoming, true},
		{"45 days old cancelled stays cancelled", 45 * 24 * time.Hour, StatusCancelled, false},
		{"45 days old already past", 45 * 24 * time.Hour, StatusPast, false},
		{"10 days old upcoming", 10 * 24 * time.Hour, StatusUpcoming, false},
		{"exactly 30 days old", maxAge, StatusUpcoming, false},
		{"future event", -5 * 24 * time.Hour, StatusUpcoming, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &Event{StartDate: now.Add(-tt.age), Status: tt.status}
			if got := evt.ShouldRetire(now, maxAge); got != tt.want {
				t.Errorf("ShouldRetire() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusUpcoming, StatusPast, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false, want true", s)
		}
	}
	if Status("archived").Valid() {
		t.Error(`"archived".Valid() = true, want false`)
	}
}
