// Package store defines the event store capability shared by every backend.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sunshade/internal/models"
)

// Store is the event access contract. The HTTP API, Firestore and the local
// SQLite database all implement it; callers should depend on this interface
// only. Errors wrap one of the kinds in the models package.
type Store interface {
	// GetAllEvents returns every event ordered by dateISO ascending.
	GetAllEvents(ctx context.Context) ([]models.Event, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	// CreateEvent stores a new event owned by who and returns its id.
	CreateEvent(ctx context.Context, payload models.CreateEventPayload, who models.Identity) (string, error)
	UpdateEvent(ctx context.Context, id string, update models.EventUpdate, who models.Identity) error
	// RSVPEvent registers userID as attending. Repeating it is a no-op.
	RSVPEvent(ctx context.Context, id, userID string, who models.Identity) error
	// SearchEvents returns events matching term, case-insensitively.
	SearchEvents(ctx context.Context, term string) ([]models.Event, error)
	// GetEventsByOrganizer returns events whose organizer equals name, ordered by dateISO.
	GetEventsByOrganizer(ctx context.Context, name string) ([]models.Event, error)
}

// SortByDate orders events by dateISO ascending. Events whose date does not
// parse go last, ordered by their raw string. The sort is stable.
func SortByDate(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, errI := events[i].Time()
		tj, errJ := events[j].Time()
		switch {
		case errI == nil && errJ == nil:
			return ti.Before(tj)
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return events[i].DateISO < events[j].DateISO
		}
	})
}

// FilterByOrganizer keeps events whose organizer equals name exactly.
func FilterByOrganizer(events []models.Event, name string) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Organizer == name {
			out = append(out, e)
		}
	}
	return out
}

// CheckID rejects an empty event id.
func CheckID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty event id", models.ErrNotFound)
	}
	return nil
}

// CheckRSVP rejects an RSVP without an event or user id.
func CheckRSVP(id, userID string) error {
	if err := CheckID(id); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", models.ErrValidation)
	}
	return nil
}
