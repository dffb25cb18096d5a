package scraper

import "github.com/pfrederiksen/avl-events/internal/event"

const OrangePeelURL = "https://theorangepeel.net/events/"

// OrangePeel extracts shows from The Orange Peel events page. Every show there is 18+.
type OrangePeel struct {
	url string
}

// NewOrangePeel creates the Orange Peel extractor
func NewOrangePeel() *OrangePeel {
	return &OrangePeel{url: OrangePeelURL}
}

func (o *OrangePeel) Venue() string { return "The Orange Peel" }

func (o *OrangePeel) URL() string { return o.url }

// Parse extracts events from the Orange Peel listing page
func (o *OrangePeel) Parse(page string) ([]event.ScrapedEvent, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	listings := extractListings(doc, o.url,
		[]string{".event-title", ".tribe-events-calendar-list__event-title a"},
		[]string{".event-description", ".tribe-events-calendar-list__event-description"},
		[]string{".event-cost", ".tribe-events-cost"},
	)

	events := make([]event.ScrapedEvent, 0, len(listings))
	for _, l := range listings {
		events = append(events, event.ScrapedEvent{
			Title:          l.title,
			Date:           l.date,
			Time:           l.time,
			Description:    l.description,
			Price:          l.price,
			TicketURL:      l.ticketURL,
			ImageURL:       l.imageURL,
			Genre:          "Music",
			AgeRestriction: "Ages 18+",
		})
	}

	return events, nil
}
