package scraper

import "github.com/pfrederiksen/avl-events/internal/event"

const MusicHallURL = "https://ashevillemusichall.com/all-shows/"

// MusicHall extracts shows from the Asheville Music Hall listing. The page
// publishes no prices, only ticket links.
type MusicHall struct {
	url string
}

// NewMusicHall creates the Asheville Music Hall extractor
func NewMusicHall() *MusicHall {
	return &MusicHall{url: MusicHallURL}
}

func (m *MusicHall) Venue() string { return "Asheville Music Hall" }

func (m *MusicHall) URL() string { return m.url }

// Parse extracts events from the Music Hall listing page
func (m *MusicHall) Parse(page string) ([]event.ScrapedEvent, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	listings := extractListings(doc, m.url,
		[]string{"h3 a", ".event-title a"},
		[]string{".event-description"},
		nil,
	)

	events := make([]event.ScrapedEvent, 0, len(listings))
	for _, l := range listings {
		events = append(events, event.ScrapedEvent{
			Title:       l.title,
			Date:        l.date,
			Time:        l.time,
			Description: l.description,
			TicketURL:   l.ticketURL,
			ImageURL:    l.imageURL,
			Genre:       "Music",
		})
	}

	return events, nil
}
