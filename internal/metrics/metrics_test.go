package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sunshade/internal/models"
)

type stubStore struct {
	events []models.Event
	err    error
}

func (s stubStore) GetAllEvents(context.Context) ([]models.Event, error) { return s.events, s.err }
func (s stubStore) GetEventByID(context.Context, string) (*models.Event, error) {
	return nil, fmt.Errorf("%w: stub", models.ErrNotFound)
}
func (s stubStore) CreateEvent(context.Context, models.CreateEventPayload, models.Identity) (string, error) {
	return "", fmt.Errorf("%w: stub", models.ErrAuth)
}
func (s stubStore) UpdateEvent(context.Context, string, models.EventUpdate, models.Identity) error {
	return fmt.Errorf("%w: stub", models.ErrValidation)
}
func (s stubStore) RSVPEvent(context.Context, string, string, models.Identity) error { return nil }
func (s stubStore) SearchEvents(context.Context, string) ([]models.Event, error) {
	return s.events, s.err
}
func (s stubStore) GetEventsByOrganizer(context.Context, string) ([]models.Event, error) {
	return s.events, s.err
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	st := m.Instrument(stubStore{events: make([]models.Event, 3)}, "sqlite")
	ctx := context.Background()

	_, _ = st.GetAllEvents(ctx)
	_, _ = st.GetAllEvents(ctx)
	_, _ = st.GetEventByID(ctx, "x")
	_, _ = st.CreateEvent(ctx, models.CreateEventPayload{}, models.Identity{})
	_ = st.UpdateEvent(ctx, "x", models.EventUpdate{}, models.Identity{})
	_ = st.RSVPEvent(ctx, "x", "u", models.Identity{})

	checks := []struct {
		op, status string
		want       float64
	}{
		{"get_all", "ok", 2},
		{"get", "not_found", 1},
		{"create", "auth", 1},
		{"update", "validation", 1},
		{"rsvp", "ok", 1},
	}
	for _, c := range checks {
		got := testutil.ToFloat64(m.requests.WithLabelValues("sqlite", c.op, c.status))
		if got != c.want {
			t.Errorf("requests{op=%s,status=%s} = %v, want %v", c.op, c.status, got, c.want)
		}
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("sqlite")); got != 3 {
		t.Errorf("Expected events gauge 3, got %v", got)
	}
}

func TestFailedListingKeepsGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	st := m.Instrument(stubStore{err: fmt.Errorf("%w: down", models.ErrFetch)}, "http")
	_, _ = st.GetAllEvents(context.Background())

	if got := testutil.ToFloat64(m.requests.WithLabelValues("http", "get_all", "fetch")); got != 1 {
		t.Errorf("Expected one fetch failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("http")); got != 0 {
		t.Errorf("Expected untouched events gauge, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetToday(4)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sunshade_events_today 4") {
		t.Errorf("Expected today gauge in output, got:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Failed to check health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", resp.StatusCode)
	}
}
