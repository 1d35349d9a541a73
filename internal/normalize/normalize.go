// Package normalize turns raw backend records into canonical events.
//
// It is the only place that knows about store-native value types: Firestore
// timestamps and geo points, JSON numbers, and SQLite row values all stop here.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/genproto/googleapis/type/latlng"

	"sunshade/internal/models"
)

// Event converts a raw record into an Event. The id is always docID; an "id"
// field inside raw is ignored.
func Event(raw map[string]any, docID string) (models.Event, error) {
	if raw == nil {
		return models.Event{}, fmt.Errorf("%w: no record for id %q", models.ErrNotFound, docID)
	}

	return models.Event{
		ID:              docID,
		Title:           str(raw["title"]),
		DateISO:         DateISO(raw["dateISO"]),
		Location:        location(raw["location"]),
		Address:         str(raw["address"]),
		RoomNumber:      optStr(raw["roomNumber"]),
		ImageURL:        optStr(raw["imageUrl"]),
		CreatorPhotoURL: optStr(raw["creatorPhotoUrl"]),
		Details:         str(raw["details"]),
		ExtraInfo:       optStr(raw["extraInfo"]),
		Organizer:       str(raw["organizer"]),
		CreatedBy:       str(raw["createdBy"]),
		CreatedByName:   str(raw["createdByName"]),
		AttendCount:     count(raw["attendCount"]),
		Attendees:       attendees(raw["attendees"]),
	}, nil
}

// DateISO converts a store timestamp to its ISO-8601 string. Strings pass
// through unchanged; unknown types yield "".
func DateISO(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return models.FormatISO(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return models.FormatISO(*t)
	default:
		return ""
	}
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func optStr(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		return s
	default:
		return nil
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func count(v any) int {
	f, ok := number(v)
	if !ok || f < 0 || math.IsNaN(f) {
		return 0
	}
	return int(f)
}

func location(v any) *models.Location {
	switch l := v.(type) {
	case *latlng.LatLng:
		if l == nil {
			return nil
		}
		return &models.Location{Lat: l.GetLatitude(), Lng: l.GetLongitude()}
	case models.Location:
		return &l
	case *models.Location:
		return l
	case map[string]any:
		lat, okLat := number(l["lat"])
		lng, okLng := number(l["lng"])
		if !okLat || !okLng {
			return nil
		}
		return &models.Location{Lat: lat, Lng: lng}
	default:
		return nil
	}
}

func attendees(v any) map[string]int64 {
	out := make(map[string]int64)
	switch m := v.(type) {
	case map[string]int64:
		for uid, ts := range m {
			out[uid] = ts
		}
	case map[string]any:
		for uid, raw := range m {
			if t, ok := raw.(time.Time); ok {
				out[uid] = t.UnixMilli()
				continue
			}
			if f, ok := number(raw); ok {
				out[uid] = int64(f)
			}
		}
	}
	return out
}
