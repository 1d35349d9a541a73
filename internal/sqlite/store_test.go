package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sunshade/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "events.db") + "?mode=rwc"
	s, err := Open(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), dsn)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func payload(title, date, organizer string) models.CreateEventPayload {
	return models.CreateEventPayload{
		Title:     title,
		DateISO:   date,
		Location:  &models.Location{Lat: 41.87, Lng: -87.65},
		Address:   "750 S Halsted St",
		Details:   "Details for " + title,
		Organizer: organizer,
	}
}

var owner = models.Identity{UID: "owner", DisplayName: "Olive Owner", PhotoURL: "https://img/o.png"}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := payload("Spring Mixer", "2025-03-01T12:30:00-06:00", "Student Center")
	room := "Room 201"
	p.RoomNumber = &room
	id, err := s.CreateEvent(ctx, p, owner)
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if id == "" {
		t.Fatalf("Expected a generated id")
	}

	ev, err := s.GetEventByID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get event: %v", err)
	}
	if ev.ID != id || ev.Title != "Spring Mixer" {
		t.Errorf("Unexpected event %+v", ev)
	}
	if ev.DateISO != "2025-03-01T18:30:00.000Z" {
		t.Errorf("Expected canonical date, got %q", ev.DateISO)
	}
	if ev.Location == nil || ev.Location.Lat != 41.87 {
		t.Errorf("Unexpected location %+v", ev.Location)
	}
	if ev.CreatedBy != "owner" || ev.CreatedByName != "Olive Owner" {
		t.Errorf("Unexpected creator %q %q", ev.CreatedBy, ev.CreatedByName)
	}
	if ev.CreatorPhotoURL == nil || *ev.CreatorPhotoURL != "https://img/o.png" {
		t.Errorf("Unexpected creator photo %v", ev.CreatorPhotoURL)
	}
	if ev.RoomNumber == nil || *ev.RoomNumber != room || ev.ImageURL != nil {
		t.Errorf("Unexpected optional fields room=%v image=%v", ev.RoomNumber, ev.ImageURL)
	}
	if ev.AttendCount != 1 || !ev.IsAttending("owner") {
		t.Errorf("Expected creator as first attendee, got %d %v", ev.AttendCount, ev.Attendees)
	}
}

func TestCreateRejects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateEvent(ctx, payload("x", "2025-03-01T10:00:00Z", "o"), models.Identity{}); !errors.Is(err, models.ErrAuth) {
		t.Errorf("Expected ErrAuth without user, got %v", err)
	}
	if _, err := s.CreateEvent(ctx, payload("", "2025-03-01T10:00:00Z", "o"), owner); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation without title, got %v", err)
	}
	if _, err := s.CreateEvent(ctx, payload("x", "someday", "o"), owner); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for bad date, got %v", err)
	}
}

func TestListOrderAndOrganizer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []models.CreateEventPayload{
		payload("Third", "2025-03-03T10:00:00Z", "ACM"),
		payload("First", "2025-03-01T10:00:00Z", "Chess Club"),
		payload("Second", "2025-03-02T04:00:00-06:00", "ACM"),
	} {
		if _, err := s.CreateEvent(ctx, p, owner); err != nil {
			t.Fatalf("Failed to create %s: %v", p.Title, err)
		}
	}

	all, err := s.GetAllEvents(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	for i, want := range []string{"First", "Second", "Third"} {
		if all[i].Title != want {
			t.Errorf("Expected %s at %d, got %s", want, i, all[i].Title)
		}
	}

	acm, err := s.GetEventsByOrganizer(ctx, "ACM")
	if err != nil {
		t.Fatalf("Failed to list by organizer: %v", err)
	}
	if len(acm) != 2 || acm[0].Title != "Second" || acm[1].Title != "Third" {
		t.Errorf("Unexpected organizer events %v", acm)
	}
	none, err := s.GetEventsByOrganizer(ctx, "acm")
	if err != nil || len(none) != 0 {
		t.Errorf("Expected exact organizer match, got %d (%v)", len(none), err)
	}

	found, err := s.SearchEvents(ctx, "chess CLUB")
	if err != nil || len(found) != 1 || found[0].Title != "First" {
		t.Errorf("Unexpected search result %v (%v)", found, err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetEventByID(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.CreateEvent(ctx, payload("Old", "2025-03-01T10:00:00Z", "ACM"), owner)
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	title := "New"
	date := "2025-04-01T10:00:00Z"
	update := models.EventUpdate{Title: &title, DateISO: &date, Location: &models.Location{Lat: 1, Lng: 2}}
	if err := s.UpdateEvent(ctx, id, update, owner); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	ev, _ := s.GetEventByID(ctx, id)
	if ev.Title != "New" || ev.DateISO != "2025-04-01T10:00:00.000Z" || ev.Location.Lat != 1 {
		t.Errorf("Update not applied: %+v", ev)
	}
	if ev.Details != "Details for Old" {
		t.Errorf("Unset field changed: %q", ev.Details)
	}

	if err := s.UpdateEvent(ctx, id, update, models.Identity{UID: "intruder"}); !errors.Is(err, models.ErrAuth) {
		t.Errorf("Expected ErrAuth for non-owner, got %v", err)
	}
	if err := s.UpdateEvent(ctx, "missing", update, owner); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateEvent(ctx, id, models.EventUpdate{}, owner); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation for empty update, got %v", err)
	}
}

func TestRSVPEventIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.CreateEvent(ctx, payload("Party", "2025-03-01T10:00:00Z", "ACM"), owner)
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.RSVPEvent(ctx, id, "guest", models.Identity{UID: "guest"}); err != nil {
			t.Fatalf("RSVP %d failed: %v", i, err)
		}
	}
	ev, _ := s.GetEventByID(ctx, id)
	if ev.AttendCount != 2 || len(ev.Attendees) != 2 || !ev.IsAttending("guest") {
		t.Errorf("Expected owner and guest once each, got %d %v", ev.AttendCount, ev.Attendees)
	}

	if err := s.RSVPEvent(ctx, "missing", "guest", models.Identity{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.RSVPEvent(ctx, id, "", models.Identity{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

// TestConcurrentRSVP fires many RSVPs at once, half of them repeats, and
// checks that the count matches the number of distinct users.
func TestConcurrentRSVP(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.CreateEvent(ctx, payload("Rush", "2025-03-01T10:00:00Z", "ACM"), owner)
	if err != nil {
		t.Fatalf("Failed to create test event: %v", err)
	}

	numRequests := 50
	distinct := 25
	var errorCount int32
	var wg sync.WaitGroup
	wg.Add(numRequests)
	for i := 0; i < numRequests; i++ {
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("gopher%d", n%distinct)
			if err := s.RSVPEvent(ctx, id, user, models.Identity{UID: user}); err != nil {
				t.Logf("Unexpected error for request %d: %v", n, err)
				atomic.AddInt32(&errorCount, 1)
			}
		}(i)
	}
	wg.Wait()

	if errorCount != 0 {
		t.Fatalf("Expected no errors, got %d", errorCount)
	}
	ev, err := s.GetEventByID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to reload event: %v", err)
	}
	if ev.AttendCount != distinct+1 || len(ev.Attendees) != distinct+1 {
		t.Errorf("Expected %d attendees, got count=%d map=%d", distinct+1, ev.AttendCount, len(ev.Attendees))
	}
}
