// Package rsvp holds the attendance mutation shared by every store that
// applies RSVPs itself.
package rsvp

import "time"

// State of a user with respect to one event. The only transition is
// NotAttending -> Attending; there is no cancel.
type State int

const (
	NotAttending State = iota
	Attending
)

func (s State) String() string {
	if s == Attending {
		return "attending"
	}
	return "not attending"
}

// Attendance is the pair of fields an RSVP writes.
type Attendance struct {
	Attendees map[string]int64
	Count     int
}

// StateOf reports whether userID is in attendees.
func StateOf(attendees map[string]int64, userID string) State {
	if _, ok := attendees[userID]; ok {
		return Attending
	}
	return NotAttending
}

// Apply adds userID to cur with a join time of now and increments the count
// by one. If userID is already attending, cur is returned unchanged and
// changed is false. cur.Attendees is never modified.
func Apply(cur Attendance, userID string, now time.Time) (next Attendance, changed bool) {
	if StateOf(cur.Attendees, userID) == Attending {
		return cur, false
	}

	attendees := make(map[string]int64, len(cur.Attendees)+1)
	for uid, ts := range cur.Attendees {
		attendees[uid] = ts
	}
	attendees[userID] = now.UnixMilli()

	return Attendance{Attendees: attendees, Count: cur.Count + 1}, true
}
