package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"sunshade/internal/models"
	"sunshade/internal/views"
)

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table."}

// withStore runs fn with an open store and closes it afterwards.
func withStore(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.close(); err != nil {
				rt.logger.Error("Failed to close event store", "error", err)
			}
		}()
		return fn(c, rt)
	}
}

func printList(c *cli.Context, rt *runtime, events []models.Event) error {
	if c.Bool("json") {
		return writeJSON(c.App.Writer, events)
	}
	return writeEvents(c.App.Writer, events, rt.cfg.Location())
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all events in date order.",
		Flags: []cli.Flag{
			jsonFlag,
			&cli.BoolFlag{Name: "today", Usage: "Only show events happening today."},
		},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			events, err := rt.store.GetAllEvents(c.Context)
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			now := time.Now().In(rt.cfg.Location())
			if c.Bool("today") {
				events = todayOnly(events, now)
			}
			if err := printList(c, rt, events); err != nil {
				return err
			}
			if !c.Bool("json") {
				fmt.Fprintf(c.App.Writer, "\n%d event(s) · %d today\n", len(events), views.TodayCount(events, now))
			}
			return nil
		}),
	}
}

func todayOnly(events []models.Event, now time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if views.TodayCount([]models.Event{e}, now) == 1 {
			out = append(out, e)
		}
	}
	return out
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the details of one event.",
		ArgsUsage: "EVENT_ID",
		Flags:     []cli.Flag{jsonFlag},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			ev, err := rt.store.GetEventByID(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to load event details: %w", err)
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, ev)
			}
			if err := writeEvent(c.App.Writer, *ev, rt.cfg.Location()); err != nil {
				return err
			}
			who := identity(rt.cfg)
			if who.UID != "" && ev.IsAttending(who.UID) {
				fmt.Fprintln(c.App.Writer, "\nYou're attending.")
			}
			return nil
		}),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find events by title, details, organizer or address.",
		ArgsUsage: "TERM",
		Flags:     []cli.Flag{jsonFlag},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			events, err := rt.store.SearchEvents(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to search events: %w", err)
			}
			return printList(c, rt, events)
		}),
	}
}

func organizerCommand() *cli.Command {
	return &cli.Command{
		Name:      "organizer",
		Usage:     "List the events of one organizer.",
		ArgsUsage: "NAME",
		Flags:     []cli.Flag{jsonFlag},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			events, err := rt.store.GetEventsByOrganizer(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to load events by organizer: %w", err)
			}
			return printList(c, rt, events)
		}),
	}
}

func mapCommand() *cli.Command {
	return &cli.Command{
		Name:  "map",
		Usage: "Print the map center and a maps link for every located event.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Value: "android", Usage: "Maps app to link to: ios or android."},
			&cli.StringFlag{Name: "selected", Usage: "Event id to highlight; defaults to the first event."},
		},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			events, err := rt.store.GetAllEvents(c.Context)
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			w := c.App.Writer
			center := views.MapCenter(events)
			fmt.Fprintf(w, "Center: %s\n", views.CoordinateLabel(&center))

			if sel, ok := views.DefaultSelection(events, c.String("selected")); ok {
				fmt.Fprintf(w, "Selected: %s (%s)\n", sel.Title, views.CoordinateLabel(sel.Location))
			}
			for _, e := range views.WithLocation(events) {
				fmt.Fprintf(w, "%s\t%s\n", e.Title, views.MapsURL(e, c.String("platform")))
			}
			return nil
		}),
	}
}

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "Print the share message and link of an event.",
		ArgsUsage: "EVENT_ID",
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			ev, err := rt.store.GetEventByID(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to load event: %w", err)
			}
			fmt.Fprintln(c.App.Writer, views.ShareMessage(*ev, rt.cfg.Location()))
			fmt.Fprintln(c.App.Writer, views.ShareURL(rt.cfg.ShareBaseURL, ev.ID))
			return nil
		}),
	}
}
