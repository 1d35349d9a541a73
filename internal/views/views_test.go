package views

import (
	"strings"
	"testing"
	"time"

	"sunshade/internal/models"
)

func TestMapCenter(t *testing.T) {
	if got := MapCenter(nil); got != DefaultCenter {
		t.Errorf("Expected default center for no events, got %+v", got)
	}
	if got := MapCenter([]models.Event{{ID: "x"}}); got.Lat != 41.8719 || got.Lng != -87.6477 {
		t.Errorf("Expected default center for events without location, got %+v", got)
	}

	single := []models.Event{{Location: &models.Location{Lat: 41.9, Lng: -87.6}}}
	if got := MapCenter(single); got.Lat != 41.9 || got.Lng != -87.6 {
		t.Errorf("Expected center at the only event, got %+v", got)
	}

	events := []models.Event{
		{Location: &models.Location{Lat: 40, Lng: -88}},
		{Location: &models.Location{Lat: 42, Lng: -86}},
		{Location: &models.Location{Lat: 41.5, Lng: -87.5}},
		{},
	}
	if got := MapCenter(events); got.Lat != 41 || got.Lng != -87 {
		t.Errorf("Expected bounding box midpoint (41,-87), got %+v", got)
	}
}

func TestTodayCount(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, chicago)
	events := []models.Event{
		{DateISO: "2025-03-01T15:00:00.000Z"}, // 9am local
		{DateISO: "2025-03-02T05:59:00.000Z"}, // 11:59pm local
		{DateISO: "2025-03-02T06:00:00.000Z"}, // midnight next day
		{DateISO: "2025-03-01T05:00:00.000Z"}, // 11pm the day before
		{DateISO: "not a date"},
	}
	if got := TodayCount(events, now); got != 2 {
		t.Errorf("Expected 2 events today, got %d", got)
	}
	if got := TodayCount(nil, now); got != 0 {
		t.Errorf("Expected 0 for no events, got %d", got)
	}
}

func TestSearch(t *testing.T) {
	events := []models.Event{
		{ID: "1", Title: "Robotics Demo", Organizer: "Engineering Council"},
		{ID: "2", Title: "Open Mic", Details: "bring your guitar"},
		{ID: "3", Title: "Career Fair", Address: "UIC Forum"},
		{ID: "4", Title: "Hack Night", Organizer: "ACM"},
	}
	cases := map[string][]string{
		"engineering": {"1"},
		"ENGINEERING": {"1"},
		"Guitar":      {"2"},
		"forum":       {"3"},
		"":            {"1", "2", "3", "4"},
		"zzz":         {},
	}
	for term, want := range cases {
		got := Search(events, term)
		if len(got) != len(want) {
			t.Errorf("Search(%q): expected %v, got %d results", term, want, len(got))
			continue
		}
		for i, e := range got {
			if e.ID != want[i] {
				t.Errorf("Search(%q): expected %v at %d, got %s", term, want[i], i, e.ID)
			}
		}
	}
}

func TestDefaultSelection(t *testing.T) {
	if _, ok := DefaultSelection(nil, "x"); ok {
		t.Errorf("Expected no selection for empty list")
	}
	events := []models.Event{{ID: "a"}, {ID: "b"}}
	if e, _ := DefaultSelection(events, "b"); e.ID != "b" {
		t.Errorf("Expected selected event b, got %s", e.ID)
	}
	if e, _ := DefaultSelection(events, "missing"); e.ID != "a" {
		t.Errorf("Expected fallback to first event, got %s", e.ID)
	}
	if e, _ := DefaultSelection(events, ""); e.ID != "a" {
		t.Errorf("Expected first event without a selection, got %s", e.ID)
	}
}

func TestMapsURL(t *testing.T) {
	e := models.Event{Title: "Spring Mixer", Location: &models.Location{Lat: 41.87, Lng: -87.65}}
	if got := MapsURL(e, "ios"); got != "http://maps.apple.com/?ll=41.87,-87.65&q=Spring%20Mixer" {
		t.Errorf("Unexpected iOS URL %q", got)
	}
	if got := MapsURL(e, "android"); got != "https://www.google.com/maps/search/?api=1&query=41.87,-87.65" {
		t.Errorf("Unexpected Google URL %q", got)
	}
	e.Title = ""
	if got := MapsURL(e, "IOS"); !strings.HasSuffix(got, "&q=Event") {
		t.Errorf("Expected Event label fallback, got %q", got)
	}
	if got := MapsURL(models.Event{}, "ios"); got != "" {
		t.Errorf("Expected empty URL without location, got %q", got)
	}
}

func TestShare(t *testing.T) {
	if got := ShareURL("", "abc"); got != "https://uic.sunshade.app/event/abc" {
		t.Errorf("Unexpected share URL %q", got)
	}
	if got := ShareURL("https://x.test/e", "a b"); got != "https://x.test/e/a%20b" {
		t.Errorf("Unexpected share URL %q", got)
	}

	room := "Room 201"
	e := models.Event{Title: "Hack Night", DateISO: "2025-03-01T18:30:00.000Z", Address: "SEL", RoomNumber: &room}
	msg := ShareMessage(e, time.UTC)
	want := "Check out \"Hack Night\" on Sunshade Mobile!\n\nDate: 3/1/2025, 6:30:00 PM\nLocation: SEL • Room 201\n\nJoin us!"
	if msg != want {
		t.Errorf("Unexpected share message:\n%s\nwant:\n%s", msg, want)
	}
}

func TestCoordinateLabel(t *testing.T) {
	if got := CoordinateLabel(nil); got != "41.87190, -87.64770" {
		t.Errorf("Unexpected default label %q", got)
	}
	if got := CoordinateLabel(&models.Location{Lat: 1.5, Lng: 2}); got != "1.50000, 2.00000" {
		t.Errorf("Unexpected label %q", got)
	}
}
