package rsvp

import (
	"testing"
	"time"
)

func TestApplyAddsAttendee(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cur := Attendance{Attendees: map[string]int64{"owner": 1}, Count: 1}

	next, changed := Apply(cur, "u2", now)
	if !changed {
		t.Fatalf("Expected a change for a new attendee")
	}
	if next.Count != 2 {
		t.Errorf("Expected count 2, got %d", next.Count)
	}
	if next.Attendees["u2"] != now.UnixMilli() {
		t.Errorf("Expected join time %d, got %d", now.UnixMilli(), next.Attendees["u2"])
	}
	if _, ok := cur.Attendees["u2"]; ok {
		t.Errorf("Apply modified the input attendees")
	}
	if StateOf(next.Attendees, "u2") != Attending {
		t.Errorf("Expected u2 to be attending")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	now := time.Now()
	cur := Attendance{Attendees: map[string]int64{}, Count: 0}

	once, _ := Apply(cur, "u1", now)
	twice, changed := Apply(once, "u1", now.Add(time.Hour))
	if changed {
		t.Errorf("Expected no change on repeated RSVP")
	}
	if twice.Count != 1 || len(twice.Attendees) != 1 {
		t.Errorf("Expected one attendee, got %+v", twice)
	}
	if twice.Attendees["u1"] != now.UnixMilli() {
		t.Errorf("Repeated RSVP moved the join time")
	}
}

func TestApplyNilAttendees(t *testing.T) {
	next, changed := Apply(Attendance{}, "u1", time.Now())
	if !changed || next.Count != 1 || len(next.Attendees) != 1 {
		t.Errorf("Unexpected result from empty attendance: %+v", next)
	}
	if NotAttending.String() != "not attending" || Attending.String() != "attending" {
		t.Errorf("Unexpected state names")
	}
}
