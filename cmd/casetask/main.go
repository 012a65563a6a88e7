package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/casetask/internal/config"
	"github.com/mtlprog/casetask/internal/handler"
	"github.com/mtlprog/casetask/internal/logger"
	"github.com/mtlprog/casetask/internal/middleware"
	"github.com/mtlprog/casetask/internal/refdata"
	"github.com/mtlprog/casetask/internal/report"
	"github.com/mtlprog/casetask/internal/service"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "casetask",
		Usage: "Event-sourced case task service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   config.DefaultLogFormat,
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   config.DefaultStore,
				Usage:   "Event store backend (postgres, sqlite)",
				EnvVars: []string{"STORE"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Value:   config.DefaultSQLitePath,
				Usage:   "SQLite database file",
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "reference-data",
				Usage:   "YAML file with work queue names",
				EnvVars: []string{"REFERENCE_DATA"},
			},
			&cli.IntFlag{
				Name:    "append-retries",
				Value:   config.DefaultAppendRetries,
				Usage:   "Attempts per command when the event stream moved underneath it",
				EnvVars: []string{"APPEND_RETRIES"},
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "HMAC secret for bearer tokens",
				EnvVars: []string{"JWT_SECRET"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), logger.ParseFormat(c.String("log-format")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: runMigrate,
			},
			{
				Name:      "history",
				Usage:     "Print a task record and its history",
				ArgsUsage: "<task-id>",
				Action:    runHistory,
			},
			{
				Name:      "events",
				Usage:     "Print the event stream of a task",
				ArgsUsage: "<task-id>",
				Action:    runEvents,
			},
			{
				Name:  "rebuild",
				Usage: "Rebuild task records from their event streams",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "task",
						Usage: "Rebuild only this task",
					},
				},
				Action: runRebuild,
			},
			{
				Name:  "token",
				Usage: "Issue a bearer token for a change author",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user-id",
						Usage:    "Change author id (UUID)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Change author display name",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Value: config.DefaultTokenTTL,
						Usage: "Token lifetime",
					},
				},
				Action: runToken,
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	secret := c.String("jwt-secret")
	if secret == "" {
		return errors.New("jwt secret is required to serve the API")
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := newTaskService(c, st)
	if err != nil {
		return err
	}

	h := handler.New(svc, st.pinger, middleware.NewAuthMiddleware(secret, slog.Default()), slog.Default())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port, "store", c.String("store"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// runMigrate applies migrations. Opening a store migrates it, so this only
// opens and closes.
func runMigrate(c *cli.Context) error {
	st, err := openStore(c.Context, c)
	if err != nil {
		return err
	}
	st.close()

	slog.Info("migrations applied", "store", c.String("store"))
	return nil
}

func runHistory(c *cli.Context) error {
	taskID, err := taskIDArg(c)
	if err != nil {
		return err
	}

	st, err := openStore(c.Context, c)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := newTaskService(c, st)
	if err != nil {
		return err
	}

	rec, err := svc.GetTask(c.Context, taskID)
	if err != nil {
		return err
	}

	report.WriteRecord(c.App.Writer, rec)
	return nil
}

func runEvents(c *cli.Context) error {
	taskID, err := taskIDArg(c)
	if err != nil {
		return err
	}

	st, err := openStore(c.Context, c)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := newTaskService(c, st)
	if err != nil {
		return err
	}

	envelopes, err := svc.GetEvents(c.Context, taskID)
	if err != nil {
		return err
	}

	report.WriteEvents(c.App.Writer, envelopes)
	return nil
}

func runRebuild(c *cli.Context) error {
	st, err := openStore(c.Context, c)
	if err != nil {
		return err
	}
	defer st.close()

	svc, err := newTaskService(c, st)
	if err != nil {
		return err
	}

	if taskID := c.String("task"); taskID != "" {
		rec, err := svc.RebuildTask(c.Context, taskID)
		if err != nil {
			return err
		}
		report.WriteRecord(c.App.Writer, rec)
		return nil
	}

	count, err := svc.RebuildAll(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "rebuilt %d task(s)\n", count)
	return nil
}

func runToken(c *cli.Context) error {
	secret := c.String("jwt-secret")
	if secret == "" {
		return errors.New("jwt secret is required to issue tokens")
	}

	token, err := middleware.NewAuthMiddleware(secret, slog.Default()).
		IssueToken(c.String("user-id"), c.String("name"), c.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func newTaskService(c *cli.Context, st *store) (*service.TaskService, error) {
	resolver := refdata.Empty()
	if path := c.String("reference-data"); path != "" {
		var err error
		resolver, err = refdata.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference data: %w", err)
		}
		slog.Info("loaded reference data", "path", path, "work_queues", resolver.Len())
	}

	return service.NewTaskService(st.events, st.records, resolver, service.Options{
		AppendAttempts: c.Int("append-retries"),
		Logger:         slog.Default(),
	}), nil
}

func taskIDArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one task id, got %d arguments", c.NArg())
	}
	return c.Args().First(), nil
}
