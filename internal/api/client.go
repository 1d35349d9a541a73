package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sunshade/internal/models"
	"sunshade/internal/normalize"
	"sunshade/internal/store"
	"sunshade/internal/views"
)

const (
	DefaultBaseURL   = "https://uic.sunshade.app/api"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "sunshade/1.0"
)

type tokenKey struct{}

// withToken attaches a bearer credential to ctx for authTransport.
func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// authTransport adds the User-Agent and, when present, the bearer token to each request.
type authTransport struct {
	UserAgent string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.UserAgent)
	if token, ok := req.Context().Value(tokenKey{}).(string); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.Transport.RoundTrip(req)
}

// Options configures the HTTP backend.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport overrides the underlying round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is the event store backed by the Sunshade REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

var _ store.Store = (*Client)(nil)

// NewClient creates a new REST API client. Every call is a single attempt
// bounded by opts.Timeout.
func NewClient(logger *slog.Logger, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &authTransport{UserAgent: opts.UserAgent, Transport: opts.Transport},
		},
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		logger:  logger,
	}, nil
}

type listResponse struct {
	Events []map[string]any `json:"events"`
}

type createResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetAllEvents fetches every event and returns them ordered by dateISO,
// whatever order the server used.
func (c *Client) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	c.logger.Debug("Fetching all events from API")
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/events", "", nil, &resp); err != nil {
		c.logger.Error("Failed to fetch events", "error", err)
		return nil, err
	}

	events := c.toInternalEvents(resp.Events)
	store.SortByDate(events)
	c.logger.Info("Successfully fetched events from API", "count", len(events))
	return events, nil
}

// toInternalEvents normalizes raw API records, skipping records without an id.
func (c *Client) toInternalEvents(records []map[string]any) []models.Event {
	events := make([]models.Event, 0, len(records))
	for _, raw := range records {
		id, _ := raw["id"].(string)
		if id == "" {
			c.logger.Warn("Skipping API record without id", "title", raw["title"])
			continue
		}
		ev, err := normalize.Event(raw, id)
		if err != nil {
			c.logger.Warn("Skipping unreadable API record", "id", id, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// GetEventByID fetches a single event.
func (c *Client) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(id), "", nil, &raw); err != nil {
		c.logger.Error("Failed to fetch event", "id", id, "error", err)
		return nil, err
	}
	ev, err := normalize.Event(raw, id)
	if err != nil {
		c.logger.Error("Failed to read event", "id", id, "error", err)
		return nil, err
	}
	return &ev, nil
}

// CreateEvent posts a new event on behalf of who.
func (c *Client) CreateEvent(ctx context.Context, payload models.CreateEventPayload, who models.Identity) (string, error) {
	if err := requireToken(who); err != nil {
		c.logger.Error("Refusing to create event", "error", err)
		return "", err
	}
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/events", who.IDToken, payload.WithIdentity(who), &resp); err != nil {
		c.logger.Error("Failed to create event", "title", payload.Title, "error", err)
		return "", err
	}
	if resp.ID == "" {
		err := fmt.Errorf("%w: create response carried no id", models.ErrFetch)
		c.logger.Error("Failed to create event", "title", payload.Title, "error", err)
		return "", err
	}
	c.logger.Info("Successfully created event", "id", resp.ID, "title", payload.Title)
	return resp.ID, nil
}

// UpdateEvent patches the set fields of update. Ownership is enforced by the server.
func (c *Client) UpdateEvent(ctx context.Context, id string, update models.EventUpdate, who models.Identity) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	if err := update.Check(); err != nil {
		c.logger.Error("Refusing to update event", "id", id, "error", err)
		return err
	}
	if err := requireToken(who); err != nil {
		c.logger.Error("Refusing to update event", "id", id, "error", err)
		return err
	}
	// Fields keeps set-but-empty values such as an empty attendees map.
	var resp messageResponse
	if err := c.do(ctx, http.MethodPatch, "/events/"+url.PathEscape(id), who.IDToken, update.Fields(), &resp); err != nil {
		c.logger.Error("Failed to update event", "id", id, "error", err)
		return err
	}
	c.logger.Info("Successfully updated event", "id", id, "message", resp.Message)
	return nil
}

// RSVPEvent registers userID as attending. The server applies the add-if-absent rule.
func (c *Client) RSVPEvent(ctx context.Context, id, userID string, who models.Identity) error {
	if err := store.CheckRSVP(id, userID); err != nil {
		return err
	}
	if err := requireToken(who); err != nil {
		c.logger.Error("Refusing to RSVP", "id", id, "error", err)
		return err
	}
	body := map[string]string{"userId": userID}
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/rsvp", who.IDToken, body, &resp); err != nil {
		c.logger.Error("Failed to RSVP to event", "id", id, "userId", userID, "error", err)
		return err
	}
	c.logger.Info("RSVP recorded", "id", id, "userId", userID, "message", resp.Message)
	return nil
}

// SearchEvents filters all events client-side.
func (c *Client) SearchEvents(ctx context.Context, term string) ([]models.Event, error) {
	events, err := c.GetAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return views.Search(events, term), nil
}

// GetEventsByOrganizer filters all events client-side on an exact organizer match.
func (c *Client) GetEventsByOrganizer(ctx context.Context, name string) ([]models.Event, error) {
	events, err := c.GetAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return store.FilterByOrganizer(events, name), nil
}

func requireToken(who models.Identity) error {
	if who.IDToken == "" {
		return fmt.Errorf("%w: missing bearer token", models.ErrAuth)
	}
	return nil
}

// do performs one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: failed to encode request: %w", models.ErrValidation, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(withToken(ctx, token), method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %w", models.ErrFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", models.ErrFetch, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to decode %s %s response: %w", models.ErrFetch, method, path, err)
	}
	return nil
}

// statusError maps an HTTP status to an error kind.
func statusError(method, path string, resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e errorResponse
	if json.Unmarshal(b, &e) == nil {
		if e.Error != "" {
			msg = e.Error
		} else if e.Message != "" {
			msg = e.Message
		}
	}

	kind := models.ErrFetch
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = models.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = models.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = models.ErrAuth
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", kind, method, path, resp.StatusCode, msg)
}
