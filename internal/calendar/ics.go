// Package calendar renders stored events as an iCalendar (RFC 5545) feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// ProdID identifies the generator in every feed
const ProdID = "-//avl-events//avl-events//EN"

// DefaultDuration is the length given to events with no end date
const DefaultDuration = 3 * time.Hour

// Feed writes events into one VCALENDAR
type Feed struct {
	Name   string                 // X-WR-CALNAME, optional
	Venues map[int64]*event.Venue // venue lookup for LOCATION and URL
	Now    func() time.Time       // DTSTAMP clock
}

// NewFeed creates a feed over venues
func NewFeed(name string, venues []*event.Venue) *Feed {
	byID := make(map[int64]*event.Venue, len(venues))
	for _, v := range venues {
		byID[v.ID] = v
	}
	return &Feed{Name: name, Venues: byID, Now: time.Now}
}

// Write renders events to w; events are written in the order given
func (f *Feed) Write(w io.Writer, events []*event.Event) error {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:" + ProdID + "\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if f.Name != "" {
		ics.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(f.Name)))
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	stamp := formatICSTime(now())

	for _, evt := range events {
		f.writeEvent(&ics, evt, stamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")

	_, err := io.WriteString(w, ics.String())
	return err
}

func (f *Feed) writeEvent(ics *strings.Builder, evt *event.Event, stamp string) {
	venue := f.Venues[evt.VenueID]

	ics.WriteString("BEGIN:VEVENT\r\n")
	ics.WriteString(fmt.Sprintf("UID:event-%d@avl-events\r\n", evt.ID))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))

	end := evt.StartDate.Add(DefaultDuration)
	if evt.EndDate != nil && evt.EndDate.After(evt.StartDate) {
		end = *evt.EndDate
	}
	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(evt.StartDate)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(end)))

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(evt.Title)))

	if desc := description(evt); desc != "" {
		ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(desc)))
	}

	if venue != nil {
		location := venue.Name
		if venue.Address != "" {
			location = fmt.Sprintf("%s, %s", venue.Name, venue.Address)
		}
		ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(location)))
	}

	switch {
	case evt.TicketURL != "":
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", evt.TicketURL))
	case venue != nil && venue.Website != "":
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", venue.Website))
	}

	if evt.Genre != "" {
		ics.WriteString(fmt.Sprintf("CATEGORIES:%s\r\n", escapeICS(evt.Genre)))
	}

	status := "CONFIRMED"
	if evt.Status == event.StatusCancelled {
		status = "CANCELLED"
	}
	ics.WriteString(fmt.Sprintf("STATUS:%s\r\n", status))
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// description joins the descriptive fields of an event
func description(evt *event.Event) string {
	var parts []string
	if evt.Description != "" {
		parts = append(parts, evt.Description)
	}
	if evt.StartTime != "" {
		parts = append(parts, "Time: "+evt.StartTime)
	}
	if evt.Price != "" {
		parts = append(parts, "Price: "+evt.Price)
	}
	if evt.AgeRestriction != "" {
		parts = append(parts, evt.AgeRestriction)
	}
	if evt.IsSoldOut {
		parts = append(parts, "SOLD OUT")
	}
	return strings.Join(parts, "\n")
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes text values per RFC 5545
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
