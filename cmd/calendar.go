package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"sunshade/internal/calendar"
	"sunshade/internal/models"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write events as an iCalendar (.ics) file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; stdout when empty."},
			&cli.StringFlag{Name: "organizer", Usage: "Only export this organizer's events."},
			&cli.BoolFlag{Name: "mine", Usage: "Only export events the signed-in user is attending."},
		},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			var events []models.Event
			var err error
			if org := c.String("organizer"); org != "" {
				events, err = rt.store.GetEventsByOrganizer(c.Context, org)
			} else {
				events, err = rt.store.GetAllEvents(c.Context)
			}
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			if c.Bool("mine") {
				events = attending(events, identity(rt.cfg).UID)
			}

			if err := writeCalendar(c.App.Writer, c.String("out"), events, rt.cfg.ShareBaseURL); err != nil {
				return err
			}
			rt.logger.Info("Exported events", "count", len(events))
			return nil
		}),
	}
}

// writeCalendar encodes events to the file out, or to stdout when out is empty.
func writeCalendar(stdout io.Writer, out string, events []models.Event, shareBase string) error {
	if out == "" {
		return calendar.Encode(stdout, events, shareBase)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := calendar.Encode(f, events, shareBase); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

func attending(events []models.Event, uid string) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if uid != "" && e.IsAttending(uid) {
			out = append(out, e)
		}
	}
	return out
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Add an event to your CalDAV calendar (iCloud by default).",
		ArgsUsage: "EVENT_ID",
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			ev, err := rt.store.GetEventByID(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to load event: %w", err)
			}
			p, err := calendar.NewPublisher(c.Context, rt.logger, calendar.PublisherOptions{
				Endpoint:     rt.cfg.CalDAV.Endpoint,
				Username:     rt.cfg.CalDAV.Username,
				Password:     rt.cfg.CalDAV.Password,
				CalendarName: rt.cfg.CalDAV.Calendar,
				ShareBase:    rt.cfg.ShareBaseURL,
			})
			if err != nil {
				return fmt.Errorf("failed to create caldav publisher: %w", err)
			}
			return p.Publish(c.Context, *ev)
		}),
	}
}
