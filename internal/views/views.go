// Package views computes the derived values shown by the map and feed:
// today's count, the map center, search matches and share text.
package views

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sunshade/internal/models"
)

// DefaultCenter is the campus reference point used when no event has a location.
var DefaultCenter = models.Location{Lat: 41.8719, Lng: -87.6477}

// DefaultShareBase is the web prefix for event links.
const DefaultShareBase = "https://uic.sunshade.app/event/"

// TodayCount returns how many events start on now's calendar date, in now's location.
func TodayCount(events []models.Event, now time.Time) int {
	y, m, d := now.Date()
	n := 0
	for _, e := range events {
		t, err := e.Time()
		if err != nil {
			continue
		}
		ey, em, ed := t.In(now.Location()).Date()
		if ey == y && em == m && ed == d {
			n++
		}
	}
	return n
}

// WithLocation returns the events that can be placed on the map.
func WithLocation(events []models.Event) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Location != nil {
			out = append(out, e)
		}
	}
	return out
}

// MapCenter returns the midpoint of the bounding box around all located
// events, or DefaultCenter when there are none.
func MapCenter(events []models.Event) models.Location {
	located := WithLocation(events)
	if len(located) == 0 {
		return DefaultCenter
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, e := range located {
		minLat = math.Min(minLat, e.Location.Lat)
		maxLat = math.Max(maxLat, e.Location.Lat)
		minLng = math.Min(minLng, e.Location.Lng)
		maxLng = math.Max(maxLng, e.Location.Lng)
	}
	return models.Location{
		Lat: (maxLat + minLat) / 2,
		Lng: (maxLng + minLng) / 2,
	}
}

// Search returns the events whose title, details, organizer or address
// contains term, ignoring case. Input order is kept.
func Search(events []models.Event, term string) []models.Event {
	needle := strings.ToLower(term)
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if matches(e, needle) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e models.Event, needle string) bool {
	for _, field := range []string{e.Title, e.Details, e.Organizer, e.Address} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// DefaultSelection returns the event with selectedID, falling back to the
// first event. ok is false only when events is empty.
func DefaultSelection(events []models.Event, selectedID string) (models.Event, bool) {
	if len(events) == 0 {
		return models.Event{}, false
	}
	for _, e := range events {
		if selectedID != "" && e.ID == selectedID {
			return e, true
		}
	}
	return events[0], true
}

// CoordinateLabel formats a location for the map status bar.
func CoordinateLabel(loc *models.Location) string {
	if loc == nil {
		loc = &DefaultCenter
	}
	return fmt.Sprintf("%.5f, %.5f", loc.Lat, loc.Lng)
}

// MapsURL returns a deep link that opens the event in a maps application:
// Apple Maps when platform is "ios", Google Maps otherwise. It returns ""
// for events without a location.
func MapsURL(e models.Event, platform string) string {
	if e.Location == nil {
		return ""
	}
	lat := strconv.FormatFloat(e.Location.Lat, 'f', -1, 64)
	lng := strconv.FormatFloat(e.Location.Lng, 'f', -1, 64)

	if strings.EqualFold(platform, "ios") {
		label := e.Title
		if label == "" {
			label = "Event"
		}
		return fmt.Sprintf("http://maps.apple.com/?ll=%s,%s&q=%s", lat, lng, encodeComponent(label))
	}
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s", lat, lng)
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ShareURL returns the public link to an event.
func ShareURL(base, id string) string {
	if base == "" {
		base = DefaultShareBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.PathEscape(id)
}

// ShareMessage builds the text shared with friends. Dates are shown in loc.
func ShareMessage(e models.Event, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	date := e.DateISO
	if t, err := e.Time(); err == nil {
		date = t.In(loc).Format("1/2/2006, 3:04:05 PM")
	}
	where := e.Address
	if e.RoomNumber != nil && *e.RoomNumber != "" {
		where += " • " + *e.RoomNumber
	}
	return fmt.Sprintf("Check out \"%s\" on Sunshade Mobile!\n\nDate: %s\nLocation: %s\n\nJoin us!", e.Title, date, where)
}
