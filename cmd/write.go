package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"sunshade/internal/models"
)

// eventFlags are shared by create and update.
func eventFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Required: required},
		&cli.StringFlag{Name: "date", Required: required, Usage: "Start time, ISO-8601 (e.g. 2025-03-01T18:30:00-06:00)."},
		&cli.Float64Flag{Name: "lat", Required: required},
		&cli.Float64Flag{Name: "lng", Required: required},
		&cli.StringFlag{Name: "address", Required: required},
		&cli.StringFlag{Name: "details", Required: required},
		&cli.StringFlag{Name: "organizer", Required: required},
		&cli.StringFlag{Name: "room"},
		&cli.StringFlag{Name: "image"},
		&cli.StringFlag{Name: "extra"},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new event as the signed-in user.",
		Flags: eventFlags(true),
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			payload := models.CreateEventPayload{
				Title:      c.String("title"),
				DateISO:    c.String("date"),
				Location:   &models.Location{Lat: c.Float64("lat"), Lng: c.Float64("lng")},
				Address:    c.String("address"),
				Details:    c.String("details"),
				Organizer:  c.String("organizer"),
				RoomNumber: models.StringPtr(c.String("room")),
				ImageURL:   models.StringPtr(c.String("image")),
				ExtraInfo:  models.StringPtr(c.String("extra")),
			}
			id, err := rt.store.CreateEvent(c.Context, payload, identity(rt.cfg))
			if err != nil {
				return fmt.Errorf("failed to create event: %w", err)
			}
			fmt.Fprintln(c.App.Writer, id)
			return nil
		}),
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of an event you created.",
		ArgsUsage: "EVENT_ID",
		Flags:     eventFlags(false),
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			var update models.EventUpdate
			str := func(flag string, dst **string) {
				if c.IsSet(flag) {
					v := c.String(flag)
					*dst = &v
				}
			}
			str("title", &update.Title)
			str("date", &update.DateISO)
			str("address", &update.Address)
			str("details", &update.Details)
			str("organizer", &update.Organizer)
			str("room", &update.RoomNumber)
			str("image", &update.ImageURL)
			str("extra", &update.ExtraInfo)
			if c.IsSet("lat") || c.IsSet("lng") {
				if !c.IsSet("lat") || !c.IsSet("lng") {
					return fmt.Errorf("--lat and --lng must be given together")
				}
				update.Location = &models.Location{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
			}

			id := c.Args().First()
			if err := rt.store.UpdateEvent(c.Context, id, update, identity(rt.cfg)); err != nil {
				return fmt.Errorf("failed to update event: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "Event %s updated\n", id)
			return nil
		}),
	}
}

func rsvpCommand() *cli.Command {
	return &cli.Command{
		Name:      "rsvp",
		Usage:     "Mark yourself as attending an event.",
		ArgsUsage: "EVENT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "User id to register; defaults to SUNSHADE_UID."},
		},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			who := identity(rt.cfg)
			userID := c.String("user")
			if userID == "" {
				userID = who.UID
			}
			id := c.Args().First()
			if err := rt.store.RSVPEvent(c.Context, id, userID, who); err != nil {
				return fmt.Errorf("failed to RSVP: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "RSVP successful for event %s\n", id)
			return nil
		}),
	}
}
