package scraper

import "github.com/pfrederiksen/avl-events/internal/event"

const GreyEagleURL = "https://www.thegreyeagle.com/calendar/"

// GreyEagle extracts shows from The Grey Eagle calendar
type GreyEagle struct {
	url string
}

// NewGreyEagle creates the Grey Eagle extractor
func NewGreyEagle() *GreyEagle {
	return &GreyEagle{url: GreyEagleURL}
}

func (g *GreyEagle) Venue() string { return "The Grey Eagle" }

func (g *GreyEagle) URL() string { return g.url }

// Parse extracts events from the Grey Eagle calendar page
func (g *GreyEagle) Parse(page string) ([]event.ScrapedEvent, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	listings := extractListings(doc, g.url,
		[]string{"h3 a", ".event-title a"},
		[]string{".event-description"},
		[]string{".event-cost"},
	)

	events := make([]event.ScrapedEvent, 0, len(listings))
	for _, l := range listings {
		events = append(events, event.ScrapedEvent{
			Title:       l.title,
			Date:        l.date,
			Time:        l.time,
			Description: l.description,
			Price:       l.price,
			TicketURL:   l.ticketURL,
			ImageURL:    l.imageURL,
			Genre:       "Music",
		})
	}

	return events, nil
}
