// Package metrics instruments an event store with Prometheus counters and latencies.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sunshade/internal/models"
	"sunshade/internal/store"
)

// Metrics holds the collectors shared by instrumented stores.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.GaugeVec
	today    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunshade",
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Event store calls by backend, operation and outcome",
		}, []string{"backend", "op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sunshade",
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Event store call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		events: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sunshade",
			Name:      "events",
			Help:      "Number of events returned by the last full listing",
		}, []string{"backend"}),
		today: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sunshade",
			Name:      "events_today",
			Help:      "Number of events happening today as of the last refresh",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.events, m.today)
	return m
}

// SetToday records the latest today count.
func (m *Metrics) SetToday(n int) {
	m.today.Set(float64(n))
}

// Handler serves /metrics and /healthz for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Status labels an error by its kind.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrAuth):
		return "auth"
	default:
		return "fetch"
	}
}

// Instrument wraps next so every call is counted and timed under backend.
func (m *Metrics) Instrument(next store.Store, backend string) store.Store {
	return &instrumented{next: next, backend: backend, m: m}
}

type instrumented struct {
	next    store.Store
	backend string
	m       *Metrics
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.m.duration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	s.m.requests.WithLabelValues(s.backend, op, Status(err)).Inc()
}

func (s *instrumented) GetAllEvents(ctx context.Context) (events []models.Event, err error) {
	defer func(start time.Time) {
		s.observe("get_all", start, err)
		if err == nil {
			s.m.events.WithLabelValues(s.backend).Set(float64(len(events)))
		}
	}(time.Now())
	return s.next.GetAllEvents(ctx)
}

func (s *instrumented) GetEventByID(ctx context.Context, id string) (ev *models.Event, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.next.GetEventByID(ctx, id)
}

func (s *instrumented) CreateEvent(ctx context.Context, payload models.CreateEventPayload, who models.Identity) (id string, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())
	return s.next.CreateEvent(ctx, payload, who)
}

func (s *instrumented) UpdateEvent(ctx context.Context, id string, update models.EventUpdate, who models.Identity) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	return s.next.UpdateEvent(ctx, id, update, who)
}

func (s *instrumented) RSVPEvent(ctx context.Context, id, userID string, who models.Identity) (err error) {
	defer func(start time.Time) { s.observe("rsvp", start, err) }(time.Now())
	return s.next.RSVPEvent(ctx, id, userID, who)
}

func (s *instrumented) SearchEvents(ctx context.Context, term string) (events []models.Event, err error) {
	defer func(start time.Time) { s.observe("search", start, err) }(time.Now())
	return s.next.SearchEvents(ctx, term)
}

func (s *instrumented) GetEventsByOrganizer(ctx context.Context, name string) (events []models.Event, err error) {
	defer func(start time.Time) { s.observe("by_organizer", start, err) }(time.Now())
	return s.next.GetEventsByOrganizer(ctx, name)
}
