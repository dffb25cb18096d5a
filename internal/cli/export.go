package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/avl-events/internal/calendar"
	"github.com/pfrederiksen/avl-events/internal/event"
	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/storage"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		venues []string
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored events as an iCalendar feed",
		Long: `Write stored events as an iCalendar (.ics) feed, earliest first.
Only upcoming events are included unless --all is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), opts, venues, output, all)
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Only export this venue (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&all, "all", false, "Include past and cancelled events")

	return cmd
}

func runExport(ctx context.Context, opts *rootOptions, venueNames []string, output string, all bool) error {
	cfg, l, _, err := opts.setup()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	events, venues, err := exportEvents(ctx, store, venueNames, all)
	if err != nil {
		return err
	}

	var w io.Writer = opts.stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := calendar.NewFeed("Asheville Live Music", venues).Write(w, events); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}

	l.Info("Calendar exported", logger.Fields{"events": len(events), "output": output})
	return nil
}

// exportEvents returns the events to export, earliest first, and every stored venue
func exportEvents(ctx context.Context, store storage.Store, venueNames []string, all bool) ([]*event.Event, []*event.Venue, error) {
	venues, err := store.AllVenues(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing venues: %w", err)
	}

	var events []*event.Event
	if len(venueNames) == 0 {
		if events, err = store.AllEvents(ctx); err != nil {
			return nil, nil, fmt.Errorf("listing events: %w", err)
		}
	} else {
		for _, name := range venueNames {
			venue, err := store.VenueByName(ctx, name)
			if err != nil {
				return nil, nil, fmt.Errorf("looking up venue %q: %w", name, err)
			}
			byVenue, err := store.EventsByVenue(ctx, venue.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("listing events for %q: %w", name, err)
			}
			events = append(events, byVenue...)
		}
	}

	selected := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if all || evt.Status == event.StatusUpcoming {
			selected = append(selected, evt)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].StartDate.Before(selected[j].StartDate)
	})

	return selected, venues, nil
}
