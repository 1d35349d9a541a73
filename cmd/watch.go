package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"sunshade/internal/calendar"
	"sunshade/internal/metrics"
	"sunshade/internal/syncer"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Refresh the event feed on a schedule and mirror attended events to CalDAV.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schedule", Value: "*/5 * * * *", Usage: "Cron schedule for refreshes."},
			&cli.BoolFlag{Name: "once", Usage: "Run a single cycle and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be published without making changes."},
			&cli.BoolFlag{Name: "publish", Usage: "Publish events you attend to the configured CalDAV calendar."},
			&cli.StringFlag{Name: "state", Value: syncer.DefaultStateFile, Usage: "Sync state file."},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve /metrics and /healthz on this address."},
		},
		Action: withStore(func(c *cli.Context, rt *runtime) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			st := m.Instrument(rt.store, rt.cfg.Backend)

			opts := syncer.Options{
				Store:     st,
				Observer:  m,
				UserID:    identity(rt.cfg).UID,
				StateFile: c.String("state"),
				DryRun:    c.Bool("dry-run"),
				Location:  rt.cfg.Location(),
			}
			if c.Bool("publish") {
				p, err := calendar.NewPublisher(ctx, rt.logger, calendar.PublisherOptions{
					Endpoint:     rt.cfg.CalDAV.Endpoint,
					Username:     rt.cfg.CalDAV.Username,
					Password:     rt.cfg.CalDAV.Password,
					CalendarName: rt.cfg.CalDAV.Calendar,
					ShareBase:    rt.cfg.ShareBaseURL,
				})
				if err != nil {
					return fmt.Errorf("failed to create caldav publisher: %w", err)
				}
				opts.Publisher = p
			}

			s, err := syncer.NewSyncer(rt.logger, opts)
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}

			if c.Bool("once") {
				rt.logger.Info("Running a single sync cycle.")
				if _, err := s.Sync(ctx); err != nil {
					return fmt.Errorf("single sync cycle failed: %w", err)
				}
				return nil
			}

			if addr := c.String("metrics-addr"); addr != "" {
				srv := &http.Server{
					Addr:         addr,
					Handler:      metrics.Handler(reg),
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 10 * time.Second,
				}
				go func() {
					rt.logger.Info("Serving metrics", "addr", addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						rt.logger.Error("Metrics server failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			sched := cron.New(cron.WithLocation(rt.cfg.Location()))
			if _, err := sched.AddFunc(c.String("schedule"), func() {
				if _, err := s.Sync(ctx); err != nil {
					rt.logger.Error("Sync cycle failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", c.String("schedule"), err)
			}

			rt.logger.Info("Starting watcher.", "schedule", c.String("schedule"))
			if _, err := s.Sync(ctx); err != nil {
				rt.logger.Error("Sync cycle failed", "error", err)
			}
			sched.Start()
			<-ctx.Done()
			<-sched.Stop().Done()
			rt.logger.Info("Watcher stopped.")
			return nil
		}),
	}
}
