package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"sunshade/internal/models"
)

const dateLayout = "Mon Jan 2 2006 3:04 PM"

func formatDate(e models.Event, loc *time.Location) string {
	t, err := e.Time()
	if err != nil {
		return e.DateISO
	}
	return t.In(loc).Format(dateLayout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeEvents prints one event per row.
func writeEvents(w io.Writer, events []models.Event, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tORGANIZER\tGOING")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.ID, formatDate(e, loc), e.Title, e.Organizer, e.AttendCount)
	}
	return tw.Flush()
}

// writeEvent prints the detail view of one event.
func writeEvent(w io.Writer, e models.Event, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s\t%s\n", k, v)
		}
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	row("ID", e.ID)
	row("Title", e.Title)
	row("Date", formatDate(e, loc))
	row("Address", e.Address)
	row("Room", deref(e.RoomNumber))
	if e.Location != nil {
		row("Coordinates", fmt.Sprintf("%.5f, %.5f", e.Location.Lat, e.Location.Lng))
	}
	row("Organizer", e.Organizer)
	row("Created by", e.CreatedByName)
	row("Attending", fmt.Sprint(e.AttendCount))
	row("Details", e.Details)
	row("Extra info", deref(e.ExtraInfo))
	row("Image", deref(e.ImageURL))
	return tw.Flush()
}
