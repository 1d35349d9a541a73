package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Identity is the authenticated user as supplied by the identity provider.
// IDToken is passed to backends as an opaque bearer credential.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	IDToken     string
}

// CreateEventPayload is the write-only shape sent when creating an event.
// The uid/email/displayName/photoURL fields come from the creator's Identity.
type CreateEventPayload struct {
	Title       string    `json:"title" validate:"required"`
	DateISO     string    `json:"dateISO" validate:"required,iso8601"`
	Location    *Location `json:"location" validate:"required"`
	UID         string    `json:"uid" validate:"required"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    *string   `json:"photoURL,omitempty"`
	Address     string    `json:"address" validate:"required"`
	RoomNumber  *string   `json:"roomNumber,omitempty"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Details     string    `json:"details" validate:"required"`
	ExtraInfo   *string   `json:"extraInfo,omitempty"`
	Organizer   string    `json:"organizer" validate:"required"`
}

// WithIdentity returns a copy of p with the creator fields taken from who.
func (p CreateEventPayload) WithIdentity(who Identity) CreateEventPayload {
	p.UID = who.UID
	p.Email = who.Email
	p.DisplayName = who.DisplayName
	p.PhotoURL = StringPtr(who.PhotoURL)
	return p
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
			_, err := ParseISO(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks the payload the way a backend would before accepting it.
// The returned error wraps ErrValidation.
func (p CreateEventPayload) Validate() error {
	err := payloadValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: field %s failed %q", ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// EventUpdate is a sparse set of Event fields. Nil fields are left untouched.
// AttendCount and Attendees are writable here, which bypasses the RSVP flow.
type EventUpdate struct {
	Title           *string          `json:"title,omitempty"`
	DateISO         *string          `json:"dateISO,omitempty"`
	Location        *Location        `json:"location,omitempty"`
	Address         *string          `json:"address,omitempty"`
	RoomNumber      *string          `json:"roomNumber,omitempty"`
	ImageURL        *string          `json:"imageUrl,omitempty"`
	CreatorPhotoURL *string          `json:"creatorPhotoUrl,omitempty"`
	Details         *string          `json:"details,omitempty"`
	ExtraInfo       *string          `json:"extraInfo,omitempty"`
	Organizer       *string          `json:"organizer,omitempty"`
	CreatedBy       *string          `json:"createdBy,omitempty"`
	CreatedByName   *string          `json:"createdByName,omitempty"`
	AttendCount     *int             `json:"attendCount,omitempty"`
	Attendees       map[string]int64 `json:"attendees,omitempty"`
}

// Fields returns the set fields keyed by their wire name.
func (u EventUpdate) Fields() map[string]any {
	out := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setString("title", u.Title)
	setString("dateISO", u.DateISO)
	setString("address", u.Address)
	setString("roomNumber", u.RoomNumber)
	setString("imageUrl", u.ImageURL)
	setString("creatorPhotoUrl", u.CreatorPhotoURL)
	setString("details", u.Details)
	setString("extraInfo", u.ExtraInfo)
	setString("organizer", u.Organizer)
	setString("createdBy", u.CreatedBy)
	setString("createdByName", u.CreatedByName)
	if u.Location != nil {
		out["location"] = *u.Location
	}
	if u.AttendCount != nil {
		out["attendCount"] = *u.AttendCount
	}
	if u.Attendees != nil {
		out["attendees"] = u.Attendees
	}
	return out
}

// IsEmpty reports whether no field is set.
func (u EventUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Check validates the fields that carry a format.
func (u EventUpdate) Check() error {
	if u.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if u.DateISO != nil {
		if _, err := ParseISO(*u.DateISO); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if u.AttendCount != nil && *u.AttendCount < 0 {
		return fmt.Errorf("%w: attendCount must not be negative", ErrValidation)
	}
	return nil
}
