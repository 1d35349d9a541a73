package models

import (
	"fmt"
	"time"
)

// isoLayout is the canonical dateISO layout: UTC with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Location is a point on the map.
type Location struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// Event represents a campus event.
// This is the canonical representation, independent of the backend it was read from.
type Event struct {
	ID              string           `json:"id"`                        // Assigned by the backend on creation
	Title           string           `json:"title"`                     // Event title
	DateISO         string           `json:"dateISO"`                   // Start time as an ISO-8601 string
	Location        *Location        `json:"location,omitempty"`        // Nil when the event has no map position
	Address         string           `json:"address"`                   // Street address
	RoomNumber      *string          `json:"roomNumber,omitempty"`      // Room inside the building
	ImageURL        *string          `json:"imageUrl,omitempty"`        // Cover image
	CreatorPhotoURL *string          `json:"creatorPhotoUrl,omitempty"` // Avatar of the creator
	Details         string           `json:"details"`                   // Free-form description
	ExtraInfo       *string          `json:"extraInfo,omitempty"`       // Additional notes
	Organizer       string           `json:"organizer"`                 // Organizing group
	CreatedBy       string           `json:"createdBy"`                 // UID of the creator
	CreatedByName   string           `json:"createdByName"`             // Display name of the creator
	AttendCount     int              `json:"attendCount"`               // Number of attendees
	Attendees       map[string]int64 `json:"attendees"`                 // UID -> join time in epoch millis
}

// Time parses the event's DateISO.
func (e Event) Time() (time.Time, error) {
	return ParseISO(e.DateISO)
}

// IsAttending reports whether uid has RSVP'd to the event.
func (e Event) IsAttending(uid string) bool {
	_, ok := e.Attendees[uid]
	return ok
}

// ParseISO parses an ISO-8601 timestamp with or without fractional seconds.
func ParseISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatISO renders t in the canonical dateISO form, e.g. 2025-03-01T18:30:00.000Z.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// CanonicalISO re-renders an ISO-8601 string in the canonical form.
func CanonicalISO(s string) (string, error) {
	t, err := ParseISO(s)
	if err != nil {
		return "", err
	}
	return FormatISO(t), nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
