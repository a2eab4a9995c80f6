package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/recshare/internal/api"
	"github.com/lalith-99/recshare/internal/cache"
	"github.com/lalith-99/recshare/internal/config"
	"github.com/lalith-99/recshare/internal/db"
	"github.com/lalith-99/recshare/internal/media"
	"github.com/lalith-99/recshare/internal/observ"
	"github.com/lalith-99/recshare/internal/ratelimit"
	"github.com/lalith-99/recshare/internal/repository/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	profileCacheTTL   = 5 * time.Minute
	limiterIdleTTL    = 10 * time.Minute
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var migrateFirst bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrateFirst)
		},
	}
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Apply pending migrations before listening")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	}

	rootCmd := &cobra.Command{
		Use:   "recshare",
		Short: "Movie and show recommendation sharing API",
		Long: `recshare serves the recommendation API: users post recommendations,
comment on them, follow each other and keep a watchlist.

Configuration comes from config.yaml (or $CONFIG_PATH) and environment
variables such as DATABASE_URL, REDIS_URL and JWT_SECRET.`,
		SilenceUsage: true,
		// Bare "recshare" behaves like "recshare serve".
		RunE: serveCmd.RunE,
	}
	rootCmd.AddCommand(serveCmd, migrateCmd)

	return rootCmd
}

// bootstrap loads config, builds the logger and opens the pool shared by
// both subcommands.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *db.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, logger, database, nil
}

func migrate(ctx context.Context) error {
	_, logger, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer database.Close()

	return applyMigrations(ctx, database, logger)
}

func applyMigrations(ctx context.Context, database *db.DB, logger *zap.Logger) error {
	applied, err := database.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", zap.Int("count", applied))
	return nil
}

func serve(ctx context.Context, migrateFirst bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer database.Close()

	if migrateFirst {
		if err := applyMigrations(ctx, database, logger); err != nil {
			return err
		}
	}

	profiles, closeCache, err := newProfileCache(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	avatars, err := media.NewAvatars(cfg.MediaDir, cfg.MediaURLPrefix)
	if err != nil {
		return fmt.Errorf("init avatar storage: %w", err)
	}

	authLimiter := ratelimit.New(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, limiterIdleTTL)
	defer authLimiter.Stop()

	// Stores share one pool; pgxpool is safe for concurrent use.
	pool := database.Pool()
	router := api.NewRouter(api.Deps{
		Users:           postgres.NewUserStore(pool),
		Tags:            postgres.NewTagStore(pool),
		Recommendations: postgres.NewRecommendationStore(pool),
		Comments:        postgres.NewCommentStore(pool),
		Follows:         postgres.NewFollowStore(pool),
		Saves:           postgres.NewSaveStore(pool),
		Profiles:        profiles,
		Avatars:         avatars,
		DB:              database,
		AuthLimiter:     authLimiter,
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.TokenTTL,
		MediaDir:        cfg.MediaDir,
		MediaURLPrefix:  cfg.MediaURLPrefix,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting recshare",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newProfileCache connects to Redis when a URL is configured and falls
// back to a no-op cache otherwise.
func newProfileCache(ctx context.Context, redisURL string, logger *zap.Logger) (cache.ProfileCache, func(), error) {
	if redisURL == "" {
		logger.Info("REDIS_URL not set, profile cache disabled")
		return cache.NopProfileCache{}, func() {}, nil
	}

	client, err := cache.NewRedis(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	return cache.NewRedisProfileCache(client, profileCacheTTL), closeFn, nil
}
