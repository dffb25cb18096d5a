package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/avl-events/internal/config"
	"github.com/pfrederiksen/avl-events/internal/storage"
)

const orangePeelPage = `
<html><body>
<div class="tribe-events-calendar-list">
  <article class="tribe-events-calendar-list__event">
    <div class="tribe-events-calendar-list__event-date-tag">Fri Jun 27</div>
    <h3 class="tribe-events-calendar-list__event-title"><a href="/event/jazz-night/">Jazz Night</a></h3>
    <span class="tribe-event-date-start">June 27 @ 8:00 pm</span>
    <span class="tribe-events-cost">$15</span>
  </article>
  <article class="tribe-events-calendar-list__event">
    <div class="tribe-events-calendar-list__event-date-tag">Sat Jun 28</div>
    <h3 class="tribe-events-calendar-list__event-title"><a href="/event/big-show/">Big Show</a></h3>
    <span class="tribe-events-cost">SOLD OUT</span>
  </article>
</div>
</body></html>`

// venueServer serves the Orange Peel page and fails every other path
func venueServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/orangepeel" {
			fmt.Fprint(w, orangePeelPage)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a config pointing two venues at srv and returns its path
func writeConfig(t *testing.T, srv *httptest.Server, dbPath string) string {
	t.Helper()

	// Keep the environment from overriding the file
	t.Setenv(config.EnvDBPath, dbPath)
	t.Setenv(config.EnvRedisURL, "")
	t.Setenv(config.EnvLogLevel, "info")
	t.Setenv(config.EnvAdminToken, "")

	yaml := fmt.Sprintf(`
database:
  path: %s
scraper:
  timeout_sec: 5
  fetch_attempts: 1
  retry_delay_ms: 0
schedule:
  startup_delay_sec: -1
  timezone: America/New_York
admin:
  addr: 127.0.0.1:0
venues:
  - name: The Orange Peel
    address: 101 Biltmore Ave, Asheville, NC 28801
    url: %s/orangepeel
  - name: The Grey Eagle
    address: 185 Clingman Ave, Asheville, NC 28801
    url: %s/greyeagle
  - name: Asheville Music Hall
    enabled: false
  - name: One World Brewing
    enabled: false
`, dbPath, srv.URL, srv.URL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestScrape_EndToEnd(t *testing.T) {
	srv := venueServer(t)
	dbPath := filepath.Join(t.TempDir(), "events.db")
	cfgPath := writeConfig(t, srv, dbPath)

	code, stdout, stderr := run(t, "scrape", "--config", cfgPath, "--format", "json")
	if code != ExitPartial {
		t.Fatalf("first scrape exit = %d, want %d (stderr: %s)", code, ExitPartial, stderr)
	}

	var out struct {
		Inserted     int  `json:"inserted"`
		FailedVenues int  `json:"failed_venues"`
		OK           bool `json:"ok"`
		Venues       []struct {
			Venue    string `json:"venue"`
			Scraped  int    `json:"scraped"`
			Inserted int    `json:"inserted"`
			Error    string `json:"error"`
		} `json:"venues"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if out.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", out.Inserted)
	}
	if out.FailedVenues != 1 || out.OK {
		t.Errorf("failed_venues = %d, ok = %v, want 1 and false", out.FailedVenues, out.OK)
	}
	if len(out.Venues) != 2 {
		t.Fatalf("got %d venue reports, want 2", len(out.Venues))
	}
	if out.Venues[0].Venue != "The Orange Peel" || out.Venues[0].Scraped != 2 {
		t.Errorf("venues[0] = %+v, want The Orange Peel with 2 scraped", out.Venues[0])
	}
	if !strings.Contains(out.Venues[1].Error, "403") {
		t.Errorf("venues[1].error = %q, want a 403 failure", out.Venues[1].Error)
	}

	// A second cycle finds only duplicates
	code, stdout, _ = run(t, "scrape", "--config", cfgPath, "--venue", "The Orange Peel")
	if code != ExitSuccess {
		t.Fatalf("second scrape exit = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(stdout, "new 0, duplicates 2") {
		t.Errorf("second scrape output missing duplicate counts:\n%s", stdout)
	}

	store, err := storage.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer store.Close()

	events, err := store.AllEvents(context.Background())
	if err != nil {
		t.Fatalf("AllEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("stored %d events, want 2", len(events))
	}
}

func TestScrape_DryRun(t *testing.T) {
	srv := venueServer(t)
	dbPath := filepath.Join(t.TempDir(), "events.db")
	cfgPath := writeConfig(t, srv, dbPath)

	code, stdout, stderr := run(t, "scrape", "--config", cfgPath, "--dry-run", "--venue", "The Orange Peel")
	if code != ExitSuccess {
		t.Fatalf("exit = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}
	if !strings.Contains(stdout, "Total: 2 new events") {
		t.Errorf("output missing total:\n%s", stdout)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("dry run created the database file (stat err = %v)", err)
	}
}

func TestScrape_UnknownVenue(t *testing.T) {
	srv := venueServer(t)
	cfgPath := writeConfig(t, srv, filepath.Join(t.TempDir(), "events.db"))

	code, _, stderr := run(t, "scrape", "--config", cfgPath, "--venue", "The Nowhere Club")
	if code != ExitError {
		t.Errorf("exit = %d, want %d", code, ExitError)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr missing error line: %s", stderr)
	}
}

func TestSeedAndCleanup(t *testing.T) {
	srv := venueServer(t)
	dbPath := filepath.Join(t.TempDir(), "events.db")
	cfgPath := writeConfig(t, srv, dbPath)

	code, stdout, _ := run(t, "seed", "--config", cfgPath)
	if code != ExitSuccess {
		t.Fatalf("seed exit = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(stdout, "Total: 4 venues created") {
		t.Errorf("first seed output:\n%s", stdout)
	}

	code, stdout, _ = run(t, "seed", "--config", cfgPath)
	if code != ExitSuccess || !strings.Contains(stdout, "All venues already exist.") {
		t.Errorf("second seed exit = %d, output:\n%s", code, stdout)
	}

	code, stdout, _ = run(t, "cleanup", "--config", cfgPath, "--format", "json", "--max-age-days", "7")
	if code != ExitSuccess {
		t.Fatalf("cleanup exit = %d, want %d", code, ExitSuccess)
	}
	var report struct {
		Checked int `json:"checked"`
		Retired int `json:"retired"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("cleanup output is not JSON: %v\n%s", err, stdout)
	}
	if report.Checked != 0 || report.Retired != 0 {
		t.Errorf("cleanup = %+v, want nothing checked on an empty database", report)
	}

	code, _, _ = run(t, "cleanup", "--config", cfgPath, "--max-age-days", "-1")
	if code != ExitError {
		t.Errorf("negative max age exit = %d, want %d", code, ExitError)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	srv := venueServer(t)
	cfgPath := writeConfig(t, srv, filepath.Join(t.TempDir(), "events.db"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := Run(ctx, []string{"serve", "--config", cfgPath}, &stdout, &stderr)
	if code != ExitSuccess {
		t.Fatalf("serve exit = %d, want %d (stderr: %s)", code, ExitSuccess, stderr.String())
	}
	if !strings.Contains(stderr.String(), "Service stopped") {
		t.Errorf("stderr missing shutdown log:\n%s", stderr.String())
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"scrape", "--format", "xml"}},
		{"bad sort", []string{"scrape", "--sort", "size"}},
		{"missing config", []string{"scrape", "--config", "/nonexistent/avl.yaml"}},
		{"unknown command", []string{"frobnicate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvDBPath, filepath.Join(t.TempDir(), "events.db"))
			t.Setenv(config.EnvRedisURL, "")

			code, _, _ := run(t, tt.args...)
			if code != ExitError {
				t.Errorf("exit = %d, want %d", code, ExitError)
			}
		})
	}
}

func TestExport(t *testing.T) {
	srv := venueServer(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, srv, filepath.Join(dir, "events.db"))

	if code, _, stderr := run(t, "scrape", "--config", cfgPath, "--venue", "The Orange Peel"); code != ExitSuccess {
		t.Fatalf("scrape exit = %d (stderr: %s)", code, stderr)
	}

	code, stdout, _ := run(t, "export", "--config", cfgPath)
	if code != ExitSuccess {
		t.Fatalf("export exit = %d, want %d", code, ExitSuccess)
	}
	if got := strings.Count(stdout, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("stdout feed has %d events, want 2", got)
	}
	// Earliest first
	if strings.Index(stdout, "SUMMARY:Jazz Night") > strings.Index(stdout, "SUMMARY:Big Show") {
		t.Error("events not ordered by start date")
	}

	out := filepath.Join(dir, "events.ics")
	code, _, _ = run(t, "export", "--config", cfgPath, "--venue", "The Grey Eagle", "-o", out)
	if code != ExitSuccess {
		t.Fatalf("export to file exit = %d, want %d", code, ExitSuccess)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if strings.Contains(string(data), "BEGIN:VEVENT") {
		t.Error("Grey Eagle export contains events from another venue")
	}

	code, _, _ = run(t, "export", "--config", cfgPath, "--venue", "The Nowhere Club")
	if code != ExitError {
		t.Errorf("unknown venue export exit = %d, want %d", code, ExitError)
	}
}
