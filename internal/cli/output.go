package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
}

// ReportOutput is the JSON shape of a scrape run
type ReportOutput struct {
	*pipeline.CycleReport
	Inserted     int  `json:"inserted"`
	FailedVenues int  `json:"failed_venues"`
	OK           bool `json:"ok"`
}

// WriteReport writes a cycle report in the specified format
func WriteReport(w io.Writer, report *pipeline.CycleReport, format OutputFormat, order SortOrder, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, ReportOutput{
			CycleReport:  report,
			Inserted:     report.TotalInserted(),
			FailedVenues: len(report.Failed()),
			OK:           report.OK(),
		})
	case FormatText:
		return writeReportText(w, report, order, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteCleanup writes a cleanup report in the specified format
func WriteCleanup(w io.Writer, report pipeline.CleanupReport, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		writeCleanupText(w, report)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteSeed writes the venues created by seeding
func WriteSeed(w io.Writer, created []*event.Venue, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, map[string]interface{}{"created": created, "count": len(created)})
	case FormatText:
		if len(created) == 0 {
			fmt.Fprintln(w, "All venues already exist.")
			return nil
		}
		for _, v := range created {
			fmt.Fprintf(w, "Created venue: %s (%s)\n", v.Name, v.Address)
		}
		fmt.Fprintf(w, "\nTotal: %d venues created\n", len(created))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeReportText outputs a cycle report as human-readable text
func writeReportText(w io.Writer, report *pipeline.CycleReport, order SortOrder, verbose bool) error {
	fmt.Fprintf(w, "Scrape cycle %s finished in %s\n\n", report.ID, report.Duration().Round(time.Millisecond))

	if len(report.Venues) == 0 {
		fmt.Fprintln(w, "No venues scraped.")
	}

	for _, v := range sortVenues(report.Venues, order) {
		if v.Failed() {
			fmt.Fprintf(w, "  %-22s FAILED: %v\n", v.Venue, v.Err)
			continue
		}
		fmt.Fprintf(w, "  %-22s scraped %d, new %d, duplicates %d", v.Venue, v.Scraped, v.Inserted, v.Duplicates)
		if len(v.Rejected) > 0 {
			fmt.Fprintf(w, ", skipped %d", len(v.Rejected))
		}
		fmt.Fprintln(w)

		if verbose {
			fmt.Fprintf(w, "       URL: %s\n", v.URL)
			fmt.Fprintf(w, "       Took: %s\n", v.Duration.Round(time.Millisecond))
			for _, r := range v.Rejected {
				fmt.Fprintf(w, "       Skipped %q (%s): %v\n", r.Title, r.Kind, r.Err)
			}
		}
	}

	if report.Cleanup != nil {
		fmt.Fprintln(w)
		writeCleanupText(w, *report.Cleanup)
	}

	failed := len(report.Failed())
	fmt.Fprintf(w, "\nTotal: %d new events", report.TotalInserted())
	if failed > 0 {
		fmt.Fprintf(w, ", %d of %d venues failed", failed, len(report.Venues))
	}
	fmt.Fprintln(w)

	return nil
}

// writeCleanupText outputs a cleanup report as human-readable text
func writeCleanupText(w io.Writer, report pipeline.CleanupReport) {
	if report.Err != nil {
		fmt.Fprintf(w, "Cleanup failed: %v\n", report.Err)
		return
	}
	fmt.Fprintf(w, "Cleanup: checked %d events, retired %d\n", report.Checked, report.Retired)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  could not retire %q (id %d): %v\n", f.Title, f.EventID, f.Err)
	}
}
