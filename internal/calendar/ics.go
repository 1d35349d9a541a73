// Package calendar exports events as iCalendar data and publishes them to a
// CalDAV calendar.
package calendar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"sunshade/internal/models"
	"sunshade/internal/views"
)

// DefaultDuration is used for DTEND since events only carry a start time.
const DefaultDuration = time.Hour

const productID = "-//sunshade//EN"

// UID returns the iCalendar UID of an event.
func UID(e models.Event) string {
	return e.ID + "@sunshade"
}

// NewCalendar builds a VCALENDAR holding one VEVENT per event. Events whose
// date cannot be parsed are skipped. shareBase is the prefix for event URLs.
func NewCalendar(events []models.Event, shareBase string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for _, e := range events {
		start, err := e.Time()
		if err != nil {
			continue
		}
		cal.Children = append(cal.Children, toVEvent(e, start, stamp, shareBase))
	}
	return cal
}

// Encode writes events to w in iCalendar format.
func Encode(w io.Writer, events []models.Event, shareBase string) error {
	if err := ical.NewEncoder(w).Encode(NewCalendar(events, shareBase)); err != nil {
		return fmt.Errorf("failed to encode events to iCal format: %w", err)
	}
	return nil
}

// toVEvent converts an Event to an ical.Component (VEvent).
func toVEvent(e models.Event, start, stamp time.Time, shareBase string) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(e))
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(DefaultDuration).UTC())

	if desc := description(e); desc != "" {
		ve.Props.SetText(ical.PropDescription, desc)
	}
	if where := place(e); where != "" {
		ve.Props.SetText(ical.PropLocation, where)
	}
	if e.Location != nil {
		geo := ical.NewProp("GEO")
		geo.Value = strconv.FormatFloat(e.Location.Lat, 'f', -1, 64) + ";" + strconv.FormatFloat(e.Location.Lng, 'f', -1, 64)
		ve.Props.Set(geo)
	}
	if e.ID != "" {
		u := ical.NewProp("URL")
		u.Value = views.ShareURL(shareBase, e.ID)
		ve.Props.Set(u)
	}
	return ve
}

func description(e models.Event) string {
	parts := make([]string, 0, 3)
	if e.Details != "" {
		parts = append(parts, e.Details)
	}
	if e.ExtraInfo != nil && *e.ExtraInfo != "" {
		parts = append(parts, *e.ExtraInfo)
	}
	if e.Organizer != "" {
		parts = append(parts, "Organizer: "+e.Organizer)
	}
	return strings.Join(parts, "\n\n")
}

func place(e models.Event) string {
	where := e.Address
	if e.RoomNumber != nil && *e.RoomNumber != "" {
		if where != "" {
			where += ", "
		}
		where += *e.RoomNumber
	}
	return where
}
