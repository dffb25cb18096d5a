// Package scraper provides HTTP fetching and HTML parsing for Asheville venue calendars.
//
// A single Fetcher retrieves listing pages with a browser User-Agent and a fixed timeout.
// Each venue has its own Extractor that knows the venue's markup and turns a fetched page
// into event.ScrapedEvent records. Extractors are pure: they never touch the network, so
// they can be tested against saved HTML.
package scraper
