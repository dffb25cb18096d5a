// Package cli implements the command-line interface for avl-events.
//
// The cli package provides the Cobra-based commands: serve runs the scheduler and the
// admin HTTP server until a signal arrives, scrape runs one cycle and prints its
// report (text or JSON), cleanup retires stale events, seed stores the configured
// venues and export writes stored events as an iCalendar feed. It wires config,
// storage, scraper, pipeline and scheduler together.
package cli
