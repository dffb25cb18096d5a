package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/avl-events/internal/event"
)

// Extractor turns one venue's listing page into scraped events.
//
// Parse must be pure. A page whose markup no longer matches returns an empty slice
// and no error; an error means the page could not be parsed at all.
type Extractor interface {
	// Venue is the venue name used to look the venue up in storage
	Venue() string
	// URL is the listing page to fetch
	URL() string
	// Parse extracts events from the fetched page
	Parse(page string) ([]event.ScrapedEvent, error)
}

// listingSelector matches both the legacy event cards and The Events Calendar list items
const listingSelector = ".event-item, .tribe-events-calendar-list__event"

var (
	dateSelectors = []string{
		".event-date",
		".tribe-events-calendar-list__event-date-tag",
		".tribe-event-date-start",
	}
	timeSelectors = []string{
		".event-time",
		".tribe-event-time",
		".tribe-event-date-start",
	}
	ticketSelector = `a[href*="etix"], a[href*="ticket"]`
	// The Events Calendar puts the full date on a time element inside the date tag
	datetimeSelector = "time[datetime]"
)

// DefaultExtractors returns one extractor per supported venue
func DefaultExtractors() []Extractor {
	return []Extractor{
		NewOrangePeel(),
		NewGreyEagle(),
		NewMusicHall(),
		NewOneWorld(),
	}
}

// Select keeps the extractors whose venue is in names, preserving order.
// It returns an error naming any venue that has no extractor.
func Select(extractors []Extractor, names []string) ([]Extractor, error) {
	byName := make(map[string]Extractor, len(extractors))
	for _, ex := range extractors {
		byName[ex.Venue()] = ex
	}

	selected := make([]Extractor, 0, len(names))
	var missing []string
	for _, name := range names {
		ex, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, ex)
	}

	if len(missing) > 0 {
		return selected, fmt.Errorf("no extractor for venue(s): %s", strings.Join(missing, ", "))
	}
	return selected, nil
}

// relocated serves an extractor's markup from a different address
type relocated struct {
	Extractor
	url string
}

func (r relocated) URL() string { return r.url }

// WithURL returns ex fetching from url instead of its default page. An empty url returns ex.
func WithURL(ex Extractor, url string) Extractor {
	if url == "" || url == ex.URL() {
		return ex
	}
	return relocated{Extractor: ex, url: url}
}

// parseDocument loads page into a goquery document
func parseDocument(page string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// collapse trims and squeezes runs of whitespace into single spaces
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText returns the first non-empty text among the nodes matched by selectors, tried in order
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = collapse(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// firstDate returns the first datetime attribute in sel, falling back to the text of
// dateSelectors. Text is joined across child elements so split markup such as
// <span>Fri</span><span>27</span> does not run together.
func firstDate(sel *goquery.Selection) string {
	if dt, ok := sel.Find(datetimeSelector).First().Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	for _, selector := range dateSelectors {
		var found string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = collapse(spacedText(s))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// spacedText returns the text of sel with a space between the text of sibling nodes
func spacedText(sel *goquery.Selection) string {
	var parts []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			parts = append(parts, c.Text())
			return
		}
		parts = append(parts, spacedText(c))
	})
	return strings.Join(parts, " ")
}

// ticketLink returns the first ticket-looking link in sel, resolved against base
func ticketLink(sel *goquery.Selection, base string) string {
	href, ok := sel.Find(ticketSelector).First().Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(base, href)
}

// imageSource returns the first image in sel, resolved against base
func imageSource(sel *goquery.Selection, base string) string {
	src, ok := sel.Find("img[src]").First().Attr("src")
	if !ok {
		return ""
	}
	return resolveURL(base, src)
}

// resolveURL makes ref absolute against base; unparseable refs are returned trimmed
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// listing holds the fields every venue extracts the same way
type listing struct {
	title       string
	date        string
	time        string
	description string
	price       string
	ticketURL   string
	imageURL    string
}

// extractListings walks the listing nodes of doc and reads the common fields. Title,
// description and price candidates are venue specific. Nodes without a title or a
// date are dropped.
func extractListings(doc *goquery.Document, base string, titleSelectors, descriptionSelectors, priceSelectors []string) []listing {
	listings := make([]listing, 0)

	doc.Find(listingSelector).Each(func(_ int, sel *goquery.Selection) {
		l := listing{
			title: firstText(sel, titleSelectors...),
			date:  firstDate(sel),
		}
		if l.title == "" || l.date == "" {
			return
		}

		l.time = firstText(sel, timeSelectors...)
		if len(descriptionSelectors) > 0 {
			l.description = firstText(sel, descriptionSelectors...)
		}
		if len(priceSelectors) > 0 {
			l.price = firstText(sel, priceSelectors...)
		}
		l.ticketURL = ticketLink(sel, base)
		l.imageURL = imageSource(sel, base)

		listings = append(listings, l)
	})

	return listings
}
