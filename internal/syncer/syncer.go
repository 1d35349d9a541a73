package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sunshade/internal/models"
	"sunshade/internal/store"
	"sunshade/internal/views"
)

// DefaultStateFile records which events were already published.
const DefaultStateFile = "sync-state.json"

// SyncState keeps track of which events have been published.
// The key is the event ID, and the value is the dateISO it was published with.
type SyncState map[string]string

// Publisher writes one event to a personal calendar.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Observer receives the result of each refresh, e.g. to update metrics.
type Observer interface {
	SetToday(n int)
}

// Options configures a Syncer.
type Options struct {
	Store     store.Store
	Publisher Publisher // optional; nil only refreshes
	Observer  Observer  // optional
	UserID    string    // events this user attends are published
	StateFile string
	DryRun    bool
	Location  *time.Location
}

// Syncer periodically refreshes the event feed and mirrors the events a
// user attends into their calendar.
type Syncer struct {
	logger    *slog.Logger
	store     store.Store
	publisher Publisher
	observer  Observer
	userID    string
	stateFile string
	state     SyncState
	dryRun    bool
	location  *time.Location
	now       func() time.Time
}

// Result summarizes one sync cycle.
type Result struct {
	Events    int
	Today     int
	Center    models.Location
	Published int
}

// NewSyncer creates a new Syncer, loading previous state if present.
func NewSyncer(logger *slog.Logger, opts Options) (*Syncer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("syncer needs an event store")
	}
	if opts.StateFile == "" {
		opts.StateFile = DefaultStateFile
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	state, err := loadState(opts.StateFile)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if os.IsNotExist(err) {
			logger.Info("No sync state file found, starting fresh.", "file", opts.StateFile)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:    logger,
		store:     opts.Store,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		userID:    opts.UserID,
		stateFile: opts.StateFile,
		state:     state,
		dryRun:    opts.DryRun,
		location:  opts.Location,
		now:       time.Now,
	}, nil
}

// Sync performs a full refresh cycle.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	s.logger.Info("Starting sync cycle.")

	events, err := s.store.GetAllEvents(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch events: %w", err)
	}

	res := Result{
		Events: len(events),
		Today:  views.TodayCount(events, s.now().In(s.location)),
		Center: views.MapCenter(events),
	}
	if s.observer != nil {
		s.observer.SetToday(res.Today)
	}
	s.logger.Info("Fetched all events.", "count", res.Events, "today", res.Today, "center", views.CoordinateLabel(&res.Center))

	if s.publisher != nil && s.userID != "" {
		for _, event := range events {
			published, err := s.syncEvent(ctx, event)
			if err != nil {
				s.logger.Error("Failed to publish event", "title", event.Title, "error", err)
				// Continue with the next event even if one fails.
				continue
			}
			if published {
				res.Published++
			}
		}

		if !s.dryRun {
			if err := s.saveState(); err != nil {
				s.logger.Error("Failed to save sync state", "error", err)
			}
		}
	}

	s.logger.Info("Sync cycle finished.", "published", res.Published)
	return res, nil
}

// syncEvent publishes one event if the user attends it and it is new or its date moved.
func (s *Syncer) syncEvent(ctx context.Context, event models.Event) (bool, error) {
	if !event.IsAttending(s.userID) {
		return false, nil
	}
	if date, exists := s.state[event.ID]; exists && date == event.DateISO {
		s.logger.Debug("Event already published, skipping.", "title", event.Title, "id", event.ID)
		return false, nil
	}

	if s.dryRun {
		s.logger.Info("[DRY RUN] Would publish event", "title", event.Title, "date", event.DateISO)
		return false, nil
	}

	s.logger.Info("Publishing attended event.", "title", event.Title)
	if err := s.publisher.Publish(ctx, event); err != nil {
		return false, err
	}

	// If successful, update the state.
	s.state[event.ID] = event.DateISO
	return true, nil
}

// loadState loads the sync state from the JSON file.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.stateFile, data, 0644)
}
