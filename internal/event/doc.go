// Package event provides the data model, date normalization and reconciliation rules
// for venue events.
//
// Scraped listings arrive as ScrapedEvent values holding free-text dates. The Normalizer
// turns those dates into timestamps using a pinned reference date and an explicit year
// inference policy, and Reconcile decides which scraped events are new for a venue and
// which duplicate an event that is already stored.
package event
