package scraper

import "github.com/pfrederiksen/avl-events/internal/event"

const OneWorldURL = "https://oneworldbrewing.com/events/"

// OneWorld extracts events from the One World Brewing events page. Shows there are
// free taproom sets, so no price or ticket link is read.
type OneWorld struct {
	url string
}

// NewOneWorld creates the One World Brewing extractor
func NewOneWorld() *OneWorld {
	return &OneWorld{url: OneWorldURL}
}

func (o *OneWorld) Venue() string { return "One World Brewing" }

func (o *OneWorld) URL() string { return o.url }

// Parse extracts events from the One World Brewing events page
func (o *OneWorld) Parse(page string) ([]event.ScrapedEvent, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	listings := extractListings(doc, o.url,
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
			ImageURL:    l.imageURL,
			Genre:       "Live Music",
		})
	}

	return events, nil
}
