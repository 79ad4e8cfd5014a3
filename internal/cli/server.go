package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/infra/bunstore"
	"assessment-service/internal/infra/memory"
	pgloader "assessment-service/internal/infra/postgres"
	rediscache "assessment-service/internal/infra/redis"
	"assessment-service/internal/seed"
	transport "assessment-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// adapters holds the wired infrastructure and how to release it.
type adapters struct {
	deps    app.Deps
	closers []func()
}

func (a *adapters) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildAdapters(ctx context.Context, cfg config.Config, logger *slog.Logger) (*adapters, error) {
	out := &adapters{deps: app.Deps{Logger: logger}}

	var loader memory.AssessmentLoader
	switch cfg.Database.Driver {
	case "":
		static := memory.NewStaticAssessmentLoader(seed.Assessments())
		loader = static
		out.deps.Catalog = static
		out.deps.Submissions = memory.NewSubmissionStore()
		logger.Info("using in-memory store with sample assessments")
	default:
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, func() { _ = db.Close() })
		store := bunstore.New(db)
		loader = store
		out.deps.Catalog = store
		out.deps.Submissions = store

		if cfg.Database.Driver == bunstore.DriverPostgres {
			pool, err := pgxpool.Connect(ctx, cfg.Database.URL)
			if err != nil {
				out.close()
				return nil, err
			}
			out.closers = append(out.closers, pool.Close)
			loader = pgloader.NewAssessmentLoader(pool)
		}
	}

	cacheTTL := config.TTLDuration(cfg.Assessments.CacheTTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		out.closers = append(out.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache reads will fall back to the store", "addr", cfg.Redis.Addr, "err", err)
		}
		out.deps.Assessments = rediscache.NewAssessmentRepository(client, loader, cacheTTL)
		out.deps.Results = rediscache.NewResultsCache(client, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		out.deps.Assessments = memory.NewAssessmentRepository(loader, cacheTTL)
	}
	return out, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	infra, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close()

	service := app.NewAssessmentService(infra.deps, app.Options{
		StoreTimeout: config.TTLDuration(cfg.Store.Timeout, 5*time.Second),
	})
	auth := transport.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer)
	if auth == nil {
		logger.Warn("auth.secret not set, bearer token guard disabled")
	}
	router := transport.NewRouter(service, auth, logger, transport.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		logger.Info("starting assessment service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
