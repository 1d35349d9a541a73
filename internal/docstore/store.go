// Package docstore implements the event store on Firestore documents.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sunshade/internal/models"
	"sunshade/internal/normalize"
	"sunshade/internal/rsvp"
	"sunshade/internal/store"
	"sunshade/internal/views"
)

const eventsCollection = "events"

// Store is the event store backed directly by a Firestore database.
// Calls carry no explicit timeout beyond what ctx imposes.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewClient connects to the Firestore database of projectID.
// FIRESTORE_EMULATOR_HOST is honored by the underlying client.
func NewClient(ctx context.Context, logger *slog.Logger, projectID string, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is empty")
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(logger, client), nil
}

// New wraps an existing Firestore client.
func New(logger *slog.Logger, client *firestore.Client) *Store {
	return &Store{client: client, logger: logger, now: time.Now}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) events() *firestore.CollectionRef {
	return s.client.Collection(eventsCollection)
}

// GetAllEvents returns every event ordered by dateISO.
func (s *Store) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	s.logger.Debug("Fetching all events from Firestore")
	events, err := s.query(ctx, s.events().OrderBy("dateISO", firestore.Asc))
	if err != nil {
		err = wrap(err, "failed to list events")
		s.logger.Error("Failed to fetch events from Firestore", "error", err)
		return nil, err
	}
	s.logger.Info("Successfully fetched events from Firestore", "count", len(events))
	return events, nil
}

// GetEventsByOrganizer returns the events of one organizer ordered by dateISO.
// The query needs a composite index on (organizer, dateISO).
func (s *Store) GetEventsByOrganizer(ctx context.Context, name string) ([]models.Event, error) {
	q := s.events().Where("organizer", "==", name).OrderBy("dateISO", firestore.Asc)
	events, err := s.query(ctx, q)
	if err != nil {
		err = wrap(err, "failed to list events by organizer")
		s.logger.Error("Failed to fetch events by organizer", "organizer", name, "error", err)
		return nil, err
	}
	return events, nil
}

// SearchEvents filters all events client-side; Firestore has no substring query.
func (s *Store) SearchEvents(ctx context.Context, term string) ([]models.Event, error) {
	events, err := s.GetAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return views.Search(events, term), nil
}

func (s *Store) query(ctx context.Context, q firestore.Query) ([]models.Event, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var events []models.Event
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ev, err := normalize.Event(snap.Data(), snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if events == nil {
		events = []models.Event{}
	}
	// Firestore orders by value type before value, so string dates written by
	// other clients would trail every timestamp.
	store.SortByDate(events)
	return events, nil
}

// GetEventByID fetches a single event.
func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	snap, err := s.events().Doc(id).Get(ctx)
	if err != nil {
		err = wrap(err, "failed to get event "+id)
		s.logger.Error("Failed to fetch event from Firestore", "id", id, "error", err)
		return nil, err
	}
	ev, err := normalize.Event(snap.Data(), snap.Ref.ID)
	if err != nil {
		s.logger.Error("Failed to read event", "id", id, "error", err)
		return nil, err
	}
	return &ev, nil
}

// CreateEvent adds a new event owned by who, who is also its first attendee.
func (s *Store) CreateEvent(ctx context.Context, payload models.CreateEventPayload, who models.Identity) (string, error) {
	if who.UID == "" {
		err := fmt.Errorf("%w: no signed-in user", models.ErrAuth)
		s.logger.Error("Refusing to create event", "error", err)
		return "", err
	}
	payload = payload.WithIdentity(who)
	if err := payload.Validate(); err != nil {
		s.logger.Error("Refusing to create event", "title", payload.Title, "error", err)
		return "", err
	}
	start, _ := models.ParseISO(payload.DateISO)

	doc := map[string]any{
		"title":         payload.Title,
		"dateISO":       start.UTC(),
		"location":      map[string]any{"lat": payload.Location.Lat, "lng": payload.Location.Lng},
		"address":       payload.Address,
		"details":       payload.Details,
		"organizer":     payload.Organizer,
		"createdBy":     payload.UID,
		"createdByName": payload.DisplayName,
		"attendCount":   1,
		"attendees":     map[string]int64{payload.UID: s.now().UnixMilli()},
		"createdAt":     firestore.ServerTimestamp,
		"updatedAt":     firestore.ServerTimestamp,
	}
	setOptional(doc, "roomNumber", payload.RoomNumber)
	setOptional(doc, "imageUrl", payload.ImageURL)
	setOptional(doc, "extraInfo", payload.ExtraInfo)
	setOptional(doc, "creatorPhotoUrl", payload.PhotoURL)

	ref, _, err := s.events().Add(ctx, doc)
	if err != nil {
		err = wrap(err, "failed to add event")
		s.logger.Error("Failed to create event in Firestore", "title", payload.Title, "error", err)
		return "", err
	}
	s.logger.Info("Successfully created event in Firestore", "id", ref.ID, "title", payload.Title)
	return ref.ID, nil
}

func setOptional(doc map[string]any, key string, v *string) {
	if v != nil {
		doc[key] = *v
	}
}

// UpdateEvent replaces the set fields of update and stamps updatedAt.
func (s *Store) UpdateEvent(ctx context.Context, id string, update models.EventUpdate, who models.Identity) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	if err := update.Check(); err != nil {
		s.logger.Error("Refusing to update event", "id", id, "error", err)
		return err
	}

	fields := update.Fields()
	if update.DateISO != nil {
		t, _ := models.ParseISO(*update.DateISO)
		fields["dateISO"] = t.UTC()
	}
	if update.Location != nil {
		fields["location"] = map[string]any{"lat": update.Location.Lat, "lng": update.Location.Lng}
	}

	updates := make([]firestore.Update, 0, len(fields)+1)
	for path, v := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: v})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	if _, err := s.events().Doc(id).Update(ctx, updates); err != nil {
		err = wrap(err, "failed to update event "+id)
		s.logger.Error("Failed to update event in Firestore", "id", id, "error", err)
		return err
	}
	s.logger.Info("Successfully updated event in Firestore", "id", id, "fields", len(fields))
	return nil
}

// RSVPEvent adds userID to the attendees inside a transaction, so the
// add-to-set and the counter increment land together.
func (s *Store) RSVPEvent(ctx context.Context, id, userID string, who models.Identity) error {
	if err := store.CheckRSVP(id, userID); err != nil {
		return err
	}
	ref := s.events().Doc(id)

	var changed bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		cur, err := normalize.Event(snap.Data(), snap.Ref.ID)
		if err != nil {
			return err
		}

		var next rsvp.Attendance
		next, changed = rsvp.Apply(rsvp.Attendance{Attendees: cur.Attendees, Count: cur.AttendCount}, userID, s.now())
		if !changed {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "attendees", Value: next.Attendees},
			{Path: "attendCount", Value: next.Count},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		err = wrap(err, "failed to RSVP to event "+id)
		s.logger.Error("Failed to RSVP in Firestore", "id", id, "userId", userID, "error", err)
		return err
	}

	if changed {
		s.logger.Info("RSVP recorded", "id", id, "userId", userID)
	} else {
		s.logger.Debug("User already attending, nothing to do", "id", id, "userId", userID)
	}
	return nil
}

// wrap attaches an error kind derived from the gRPC status of err.
// Errors that already carry a kind are returned as is.
func wrap(err error, msg string) error {
	if models.Kind(err) != nil {
		return err
	}
	kind := models.ErrFetch
	switch status.Code(err) {
	case codes.NotFound:
		kind = models.ErrNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = models.ErrAuth
	case codes.InvalidArgument:
		kind = models.ErrValidation
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}
