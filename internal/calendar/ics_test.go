package calendar

import (
	"bytes"
	"strings"
	"testing"

	"sunshade/internal/models"
)

func TestEncode(t *testing.T) {
	room := "Room 201"
	events := []models.Event{
		{
			ID:         "abc",
			Title:      "Hack Night",
			DateISO:    "2025-03-01T18:30:00.000Z",
			Location:   &models.Location{Lat: 41.87, Lng: -87.65},
			Address:    "SEL",
			RoomNumber: &room,
			Details:    "Bring a laptop",
			Organizer:  "ACM",
		},
		{ID: "skip", Title: "Undated", DateISO: "whenever"},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, events, "https://x.test/event/"); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:-//sunshade//EN",
		"UID:abc@sunshade",
		"SUMMARY:Hack Night",
		"DTSTART:20250301T183000Z",
		"DTEND:20250301T193000Z",
		"GEO:41.87;-87.65",
		"URL:https://x.test/event/abc",
		"Organizer: ACM",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Undated") {
		t.Errorf("Expected event without a valid date to be skipped")
	}
	if strings.Count(out, "BEGIN:VEVENT") != 1 {
		t.Errorf("Expected exactly one VEVENT")
	}
}

func TestPlaceAndDescription(t *testing.T) {
	room := "201"
	extra := "Free pizza"
	e := models.Event{Address: "SEL", RoomNumber: &room, Details: "Talks", ExtraInfo: &extra}
	if got := place(e); got != "SEL, 201" {
		t.Errorf("Unexpected place %q", got)
	}
	if got := description(e); got != "Talks\n\nFree pizza" {
		t.Errorf("Unexpected description %q", got)
	}
	if got := place(models.Event{RoomNumber: &room}); got != "201" {
		t.Errorf("Unexpected place without address %q", got)
	}
}
