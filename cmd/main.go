package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"

	"sunshade/internal/api"
	"sunshade/internal/auth"
	"sunshade/internal/config"
	"sunshade/internal/docstore"
	"sunshade/internal/models"
	"sunshade/internal/sqlite"
	"sunshade/internal/store"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "sunshade",
		Usage: "Browse, create and RSVP to campus events.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "Path to the YAML config file."},
			&cli.StringFlag{Name: "backend", Usage: "Event store to use: http, firestore or sqlite. Overrides the config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			listCommand(),
			showCommand(),
			searchCommand(),
			organizerCommand(),
			mapCommand(),
			shareCommand(),
			createCommand(),
			updateCommand(),
			rsvpCommand(),
			exportCommand(),
			publishCommand(),
			watchCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// runtime is what every command needs: config, logger and an open store.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	close  func() error
}

// setup loads the configuration and opens the configured event store.
func setup(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	st, closeFn, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Event store ready", "backend", cfg.Backend)
	return &runtime{cfg: cfg, logger: logger, store: st, close: closeFn}, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("backend"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore builds the store selected by cfg.Backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendHTTP:
		client, err := api.NewClient(logger, api.Options{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			UserAgent: cfg.API.UserAgent,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create api client: %w", err)
		}
		return client, noop, nil

	case config.BackendFirestore:
		opts, err := firestoreOptions(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		fs, err := docstore.NewClient(ctx, logger, cfg.Firestore.ProjectID, opts...)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, logger, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// firestoreOptions prefers a token saved by the auth command, then a service
// account file, then application default credentials.
func firestoreOptions(ctx context.Context, cfg *config.Config) ([]option.ClientOption, error) {
	if account := pickAccount(cfg); account != "" {
		oauthCfg, err := auth.OAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
		if err != nil {
			return nil, fmt.Errorf("failed to get google oauth config: %w", err)
		}
		tok, err := auth.LoadToken(auth.TokenFile(cfg.TokenDir, account))
		if err != nil {
			return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
		}
		return []option.ClientOption{auth.ClientOption(ctx, oauthCfg, tok)}, nil
	}
	if cfg.Firestore.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.Firestore.CredentialsFile)}, nil
	}
	return nil, nil
}

// pickAccount returns the configured account, or the only saved one.
func pickAccount(cfg *config.Config) string {
	if cfg.Account != "" {
		return cfg.Account
	}
	accounts, err := auth.Accounts(cfg.TokenDir)
	if err != nil || len(accounts) != 1 {
		return ""
	}
	return accounts[0]
}

// identity assembles the signed-in user from the environment, falling back
// to the ID token saved by the auth command.
func identity(cfg *config.Config) models.Identity {
	who := models.Identity{
		UID:         os.Getenv("SUNSHADE_UID"),
		Email:       os.Getenv("SUNSHADE_EMAIL"),
		DisplayName: os.Getenv("SUNSHADE_DISPLAY_NAME"),
		PhotoURL:    os.Getenv("SUNSHADE_PHOTO_URL"),
		IDToken:     os.Getenv("SUNSHADE_ID_TOKEN"),
	}
	if who.IDToken == "" {
		if account := pickAccount(cfg); account != "" {
			if tok, err := auth.LoadToken(auth.TokenFile(cfg.TokenDir, account)); err == nil {
				who.IDToken = auth.IDToken(tok)
			}
		}
	}
	return who
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
