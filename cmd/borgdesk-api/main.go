package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/borgdesk/internal/api"
	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/config"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/db"
	"github.com/edvin/borgdesk/internal/logging"
	"github.com/edvin/borgdesk/internal/metrics"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/mount"
	"github.com/edvin/borgdesk/internal/platform"
	"github.com/edvin/borgdesk/internal/runner"
	"github.com/edvin/borgdesk/internal/scheduler"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "create-user":
			createUser(os.Args[2:])
			return
		case "create-api-key":
			createAPIKey(os.Args[2:])
			return
		}
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate("api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	var engine borg.Engine
	if cfg.MockBorg {
		logger.Warn().Msg("using mock backup engine")
		engine = borg.NewMockEngine()
	} else {
		engine = borg.NewClient(cfg.BorgPath, cfg.SubprocessTimeout)
	}

	services := core.NewServices(pool, cfg.AuthTokenSecret, cfg.AuthTokenIssuer)
	metrics.RegisterActiveMounts(prometheus.DefaultRegisterer, func() float64 {
		countCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := services.Mount.CountActive(countCtx)
		if err != nil {
			logger.Warn().Err(err).Msg("active mount count failed")
			return 0
		}
		return float64(n)
	})
	run := runner.New(engine, services, logger)
	mounts := mount.NewManager(cfg, engine, services, logger)

	cleaner := mount.NewCleaner(mounts)
	if err := cleaner.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start mount cleanup")
	}
	defer cleaner.Stop()

	dispatcher := scheduler.New(services, run, logger)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start schedule dispatcher")
	}
	defer dispatcher.Stop()

	srv := api.NewServer(logger, pool, services, run, mounts, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
		}

		logger.Info().Msg("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func createUser(args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "Username (required)")
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Password (required)")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: borgdesk-api create-user --username <name> --email <email> --password <password>")
		os.Exit(1)
	}

	_, services, cleanup := mustServices()
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash, err := core.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: hash password: %v\n", err)
		os.Exit(1)
	}
	user := &model.User{
		ID:           platform.NewID(),
		Username:     *username,
		Email:        *email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := services.User.Create(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "error: create user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	name := fs.String("name", "", "Name for the API key (generated when omitted)")
	userID := fs.String("user", "", "Owning user ID (required)")
	fs.Parse(args)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: borgdesk-api create-api-key --user <user-id> [--name <name>]")
		os.Exit(1)
	}

	_, services, cleanup := mustServices()
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, rawKey, err := services.APIKey.Create(ctx, *userID, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: create api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created API key %s (%s)\n", key.Name, key.ID)
	fmt.Printf("key: %s\n", rawKey)
	fmt.Println("store it now, it is not shown again")
}

func mustServices() (*config.Config, *core.Services, func()) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate("cli"); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	return cfg, core.NewServices(pool, cfg.AuthTokenSecret, cfg.AuthTokenIssuer), pool.Close
}
