package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/emersion/go-webdav/caldav"

	"sunshade/internal/models"
)

// DefaultCalDAVEndpoint is iCloud's CalDAV server.
const DefaultCalDAVEndpoint = "https://caldav.icloud.com/"

// basicAuthTransport handles adding Basic Auth and custom headers to requests.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "sunshade/1.0")
	return t.Transport.RoundTrip(req)
}

// Publisher writes events into one calendar of a CalDAV account, so RSVP'd
// events show up in the user's own calendar app.
type Publisher struct {
	client       *caldav.Client
	logger       *slog.Logger
	calendarPath string
	shareBase    string
}

// PublisherOptions configures NewPublisher.
type PublisherOptions struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
	ShareBase    string
}

// NewPublisher logs into the CalDAV server and locates the named calendar.
func NewPublisher(ctx context.Context, logger *slog.Logger, opts PublisherOptions) (*Publisher, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultCalDAVEndpoint
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  opts.Username,
		Password:  opts.Password,
		Transport: http.DefaultTransport,
	}}

	client, err := caldav.NewClient(httpClient, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	p := &Publisher{client: client, logger: logger, shareBase: opts.ShareBase}

	logger.Info("Finding CalDAV calendar", "calendarName", opts.CalendarName)
	calendarPath, err := p.findCalendar(ctx, opts.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
	}
	p.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return p, nil
}

// Publish creates or replaces the event in the calendar.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	if _, err := event.Time(); err != nil {
		return fmt.Errorf("event %s has no usable date: %w", event.ID, err)
	}
	p.logger.Debug("Publishing event to CalDAV", "eventTitle", event.Title, "uid", UID(event))

	cal := NewCalendar([]models.Event{event}, p.shareBase)
	objectPath := path.Join(p.calendarPath, event.ID+".ics")
	if _, err := p.client.PutCalendarObject(ctx, objectPath, cal); err != nil {
		return fmt.Errorf("failed to put event on CalDAV server: %w", err)
	}

	p.logger.Info("Successfully published event", "eventTitle", event.Title, "path", objectPath)
	return nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (p *Publisher) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := p.client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := p.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if strings.EqualFold(cal.Name, name) {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
