// Package sqlite implements the event store on an embedded SQLite database.
// It backs offline development and integration tests with the same contract
// as the remote stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sunshade/internal/models"
	"sunshade/internal/normalize"
	"sunshade/internal/rsvp"
	"sunshade/internal/store"
	"sunshade/internal/views"
)

// DefaultDSN keeps the database next to the binary.
const DefaultDSN = "file:sunshade.db?cache=shared&mode=rwc"

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	date_iso          TEXT NOT NULL DEFAULT '',
	lat               REAL,
	lng               REAL,
	address           TEXT NOT NULL DEFAULT '',
	room_number       TEXT,
	image_url         TEXT,
	creator_photo_url TEXT,
	details           TEXT NOT NULL DEFAULT '',
	extra_info        TEXT,
	organizer         TEXT NOT NULL DEFAULT '',
	created_by        TEXT NOT NULL DEFAULT '',
	created_by_name   TEXT NOT NULL DEFAULT '',
	attend_count      INTEGER NOT NULL DEFAULT 0 CHECK (attend_count >= 0),
	attendees         TEXT NOT NULL DEFAULT '{}',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_date_iso ON events(date_iso);
CREATE INDEX IF NOT EXISTS idx_events_organizer ON events(organizer, date_iso);
`

const selectColumns = `id, title, date_iso, lat, lng, address, room_number, image_url,
	creator_photo_url, details, extra_info, organizer, created_by, created_by_name,
	attend_count, attendees`

// columns maps wire field names to table columns for updates.
var columns = map[string]string{
	"title":           "title",
	"dateISO":         "date_iso",
	"address":         "address",
	"roomNumber":      "room_number",
	"imageUrl":        "image_url",
	"creatorPhotoUrl": "creator_photo_url",
	"details":         "details",
	"extraInfo":       "extra_info",
	"organizer":       "organizer",
	"createdBy":       "created_by",
	"createdByName":   "created_by_name",
	"attendCount":     "attend_count",
}

// Store is the SQLite event store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn and creates the schema if needed.
func Open(ctx context.Context, logger *slog.Logger, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers, which keeps RSVP read-modify-write atomic.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAllEvents returns every event ordered by dateISO.
func (s *Store) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.list(ctx, `SELECT `+selectColumns+` FROM events ORDER BY date_iso ASC, id ASC`)
	if err != nil {
		s.logger.Error("Failed to fetch events from database", "error", err)
		return nil, err
	}
	s.logger.Debug("Fetched events from database", "count", len(events))
	return events, nil
}

// GetEventsByOrganizer returns the events of one organizer ordered by dateISO.
func (s *Store) GetEventsByOrganizer(ctx context.Context, name string) ([]models.Event, error) {
	events, err := s.list(ctx, `SELECT `+selectColumns+` FROM events WHERE organizer = ? ORDER BY date_iso ASC, id ASC`, name)
	if err != nil {
		s.logger.Error("Failed to fetch events by organizer", "organizer", name, "error", err)
		return nil, err
	}
	return events, nil
}

// SearchEvents filters all events in memory.
func (s *Store) SearchEvents(ctx context.Context, term string) ([]models.Event, error) {
	events, err := s.GetAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return views.Search(events, term), nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query events: %w", models.ErrFetch, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read events: %w", models.ErrFetch, err)
	}
	return events, nil
}

// GetEventByID fetches a single event.
func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err != nil {
		s.logger.Error("Failed to fetch event from database", "id", id, "error", err)
		return nil, err
	}
	return &ev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEvent turns a row into a raw record and normalizes it.
func scanEvent(row scanner) (models.Event, error) {
	var id, title, dateISO, address, details string
	var organizer, createdBy, createdByName, attJS string
	var lat, lng sql.NullFloat64
	var room, image, photo, extra sql.NullString
	var attendCount int64
	err := row.Scan(&id, &title, &dateISO, &lat, &lng, &address, &room, &image,
		&photo, &details, &extra, &organizer, &createdBy, &createdByName,
		&attendCount, &attJS)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, fmt.Errorf("%w: no row", models.ErrNotFound)
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: failed to scan event: %w", models.ErrFetch, err)
	}

	raw := map[string]any{
		"title":         title,
		"dateISO":       dateISO,
		"address":       address,
		"details":       details,
		"organizer":     organizer,
		"createdBy":     createdBy,
		"createdByName": createdByName,
		"attendCount":   attendCount,
	}
	if lat.Valid && lng.Valid {
		raw["location"] = map[string]any{"lat": lat.Float64, "lng": lng.Float64}
	}
	for key, v := range map[string]sql.NullString{
		"roomNumber": room, "imageUrl": image, "creatorPhotoUrl": photo, "extraInfo": extra,
	} {
		if v.Valid {
			raw[key] = v.String
		}
	}

	dec := json.NewDecoder(strings.NewReader(attJS))
	dec.UseNumber()
	var attendees map[string]any
	if err := dec.Decode(&attendees); err == nil {
		raw["attendees"] = attendees
	}

	return normalize.Event(raw, id)
}

// CreateEvent inserts a new event owned by who, who is also its first attendee.
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

	now := s.now()
	dateISO, _ := models.CanonicalISO(payload.DateISO)
	attendees, err := json.Marshal(map[string]int64{payload.UID: now.UnixMilli()})
	if err != nil {
		return "", fmt.Errorf("failed to encode attendees: %w", err)
	}

	id := uuid.NewString()
	stamp := models.FormatISO(now)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, date_iso, lat, lng, address, room_number, image_url,
			creator_photo_url, details, extra_info, organizer, created_by, created_by_name,
			attend_count, attendees, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		id, payload.Title, dateISO, payload.Location.Lat, payload.Location.Lng, payload.Address,
		nullable(payload.RoomNumber), nullable(payload.ImageURL), nullable(payload.PhotoURL),
		payload.Details, nullable(payload.ExtraInfo), payload.Organizer, payload.UID,
		payload.DisplayName, string(attendees), stamp, stamp)
	if err != nil {
		err = fmt.Errorf("%w: failed to insert event: %w", models.ErrFetch, err)
		s.logger.Error("Failed to create event in database", "title", payload.Title, "error", err)
		return "", err
	}

	s.logger.Info("Successfully created event in database", "id", id, "title", payload.Title)
	return id, nil
}

func nullable(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// UpdateEvent replaces the set fields of update. Only the creator may update an event.
func (s *Store) UpdateEvent(ctx context.Context, id string, update models.EventUpdate, who models.Identity) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	if err := update.Check(); err != nil {
		s.logger.Error("Refusing to update event", "id", id, "error", err)
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT created_by FROM events WHERE id = ?`, id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read event owner: %w", models.ErrFetch, err)
		}
		if who.UID == "" || who.UID != owner {
			return fmt.Errorf("%w: only the creator can update event %s", models.ErrAuth, id)
		}

		sets, args, err := updateColumns(update)
		if err != nil {
			return err
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, models.FormatISO(s.now()), id)

		_, err = tx.ExecContext(ctx, `UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("%w: failed to update event: %w", models.ErrFetch, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update event in database", "id", id, "error", err)
		return err
	}
	s.logger.Info("Successfully updated event in database", "id", id)
	return nil
}

// updateColumns renders the SET clauses for update in a stable order.
func updateColumns(update models.EventUpdate) ([]string, []any, error) {
	fields := update.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sets []string
	var args []any
	for _, k := range keys {
		v := fields[k]
		switch k {
		case "location":
			loc := v.(models.Location)
			sets = append(sets, "lat = ?", "lng = ?")
			args = append(args, loc.Lat, loc.Lng)
		case "attendees":
			b, err := json.Marshal(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: failed to encode attendees: %w", models.ErrValidation, err)
			}
			sets = append(sets, "attendees = ?")
			args = append(args, string(b))
		case "dateISO":
			iso, _ := models.CanonicalISO(v.(string))
			sets = append(sets, "date_iso = ?")
			args = append(args, iso)
		default:
			sets = append(sets, columns[k]+" = ?")
			args = append(args, v)
		}
	}
	return sets, args, nil
}

// RSVPEvent adds userID to the attendees and bumps the count in one transaction.
func (s *Store) RSVPEvent(ctx context.Context, id, userID string, who models.Identity) error {
	if err := store.CheckRSVP(id, userID); err != nil {
		return err
	}

	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM events WHERE id = ?`, id)
		cur, err := scanEvent(row)
		if err != nil {
			return err
		}

		var next rsvp.Attendance
		next, changed = rsvp.Apply(rsvp.Attendance{Attendees: cur.Attendees, Count: cur.AttendCount}, userID, s.now())
		if !changed {
			return nil
		}
		b, err := json.Marshal(next.Attendees)
		if err != nil {
			return fmt.Errorf("failed to encode attendees: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE events SET attendees = ?, attend_count = ?, updated_at = ? WHERE id = ?`,
			string(b), next.Count, models.FormatISO(s.now()), id)
		if err != nil {
			return fmt.Errorf("%w: failed to record RSVP: %w", models.ErrFetch, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to RSVP in database", "id", id, "userId", userID, "error", err)
		return err
	}

	if changed {
		s.logger.Info("RSVP recorded", "id", id, "userId", userID)
	} else {
		s.logger.Debug("User already attending, nothing to do", "id", id, "userId", userID)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin tx: %w", models.ErrFetch, err)
	}
	defer tx.Rollback() // Safe to call even if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", models.ErrFetch, err)
	}
	return nil
}
