// RateDeck CLI - Carrier Rate Deck Comparison
//
// Usage:
//
//	ratedeck compare carrier-a.csv carrier-b.csv [options]
//	ratedeck compare-us us-a.csv us-b.csv [options]
//	ratedeck adjust --rules rules.yaml deck.csv
//	ratedeck serve --port 8080
//	ratedeck runs list
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"ratedeck/api"
	"ratedeck/db/archive"
	"ratedeck/db/clickhouse"
	"ratedeck/db/postgres"
	"ratedeck/db/storage"
	"ratedeck/decision/worker"
	rderrors "ratedeck/pkg/errors"
	"ratedeck/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes for CI/CD integration
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitParseError   = 10
	ExitCompareError = 11
)

// Store backends
const (
	StoreNone       = "none"
	StoreMemory     = "memory"
	StoreClickHouse = "clickhouse"
	StorePostgres   = "postgres"
)

func main() {
	if !platform.GetEnvBool("RATEDECK_SKIP_DOTENV", false) {
		platform.LoadDotEnv(platform.GetEnv("RATEDECK_ENV_FILE", ".env"))
	}

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ratedeck",
		Usage:   "Compare carrier rate decks by dial code",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"RATEDECK_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log JSON lines instead of console output",
				EnvVars: []string{"RATEDECK_LOG_JSON"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   StoreNone,
				Usage:   "Report archive (none, memory, clickhouse, postgres)",
				EnvVars: []string{"RATEDECK_STORE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "ratedeck",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Value:   postgres.DefaultConfig().DSN,
				Usage:   "PostgreSQL connection string",
				EnvVars: []string{"DATABASE_URL"},
			},
		},

		Commands: []*cli.Command{
			compareCommand(),
			compareUSCommand(),
			adjustCommand(),
			serveCommand(),
			runsCommand(),
		},
	}
}

// exitCode maps an error to a process exit code
func exitCode(err error) int {
	var coder cli.ExitCoder
	switch {
	case errors.As(err, &coder):
		return coder.ExitCode()
	case errors.Is(err, rderrors.ErrParseFailed), errors.Is(err, rderrors.ErrInvalidRate), errors.Is(err, rderrors.ErrInvalidRule):
		return ExitParseError
	case errors.Is(err, rderrors.ErrInvalidInput):
		return ExitCompareError
	default:
		return ExitFailure
	}
}

func newLogger(c *cli.Context, console bool) zerolog.Logger {
	return platform.InitLogger(c.String("log-level"), console && !c.Bool("log-json"))
}

// =============================================================================
// STORE SELECTION
// =============================================================================

// openStore connects the configured report archive. It returns nil for "none".
func openStore(ctx context.Context, c *cli.Context) (storage.ReportStore, error) {
	switch kind := strings.ToLower(c.String("store")); kind {
	case StoreNone, "":
		return nil, nil
	case StoreMemory:
		return storage.NewMemoryStore(), nil
	case StoreClickHouse:
		store, err := clickhouse.NewStore(&clickhouse.Config{
			Host:      c.String("clickhouse-host"),
			Port:      c.Int("clickhouse-port"),
			Database:  c.String("clickhouse-database"),
			Username:  c.String("clickhouse-user"),
			Password:  c.String("clickhouse-password"),
			BatchSize: clickhouse.DefaultConfig().BatchSize,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case StorePostgres:
		cfg := postgres.DefaultConfig()
		cfg.DSN = c.String("postgres-dsn")
		store, err := postgres.NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the RateDeck API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "API server port",
				EnvVars: []string{"RATEDECK_PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"RATEDECK_CORS_ORIGINS"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require this key in the X-API-Key header",
				EnvVars: []string{"RATEDECK_API_KEY"},
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				Value:   api.DefaultConfig().RequestTimeout,
				Usage:   "Maximum time a comparison request may take",
				EnvVars: []string{"RATEDECK_REQUEST_TIMEOUT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logger := newLogger(c, false)

	store, err := openStore(c.Context, c)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	runner, err := worker.NewRunner(worker.ConfigFromEnv(), logger)
	if err != nil {
		return err
	}

	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.CORSOrigins = corsOrigins
	cfg.APIKey = c.String("api-key")
	cfg.RequestTimeout = c.Duration("request-timeout")

	server := api.NewServer(runner, store, logger, cfg)
	return server.StartWithGracefulShutdown()
}

// =============================================================================
// RUNS COMMAND
// =============================================================================

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect archived comparison runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of runs",
					},
					formatFlag(),
				},
				Action: runRunsList,
			},
			{
				Name:      "show",
				Usage:     "Show an archived run",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{formatFlag()},
				Action:    runRunsShow,
			},
		},
	}
}

func withArchiver(c *cli.Context, fn func(ctx context.Context, a *archive.Archiver) error) error {
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	if store == nil {
		return cli.Exit("no report store configured (use --store)", ExitFailure)
	}
	defer store.Close()

	return fn(ctx, archive.NewArchiver(store, newLogger(c, true)))
}

func runRunsList(c *cli.Context) error {
	return withArchiver(c, func(ctx context.Context, a *archive.Archiver) error {
		runs, err := a.List(ctx, c.Int("limit"))
		if err != nil {
			return err
		}
		return newPrinter(c.App.Writer, c.String("format")).Runs(runs)
	})
}

func runRunsShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ratedeck runs show <run-id>", ExitParseError)
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid run id: %v", err), ExitParseError)
	}

	return withArchiver(c, func(ctx context.Context, a *archive.Archiver) error {
		run, err := a.Get(ctx, id)
		if err != nil {
			return err
		}
		return newPrinter(c.App.Writer, c.String("format")).Reports(run.Reports, 0)
	})
}
