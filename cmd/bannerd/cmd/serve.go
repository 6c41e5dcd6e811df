package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openhood/bannerd/internal/config"
	"github.com/openhood/bannerd/internal/database"
	internalhttp "github.com/openhood/bannerd/internal/http"
	"github.com/openhood/bannerd/internal/http/handlers"
	"github.com/openhood/bannerd/internal/repository"
	"github.com/openhood/bannerd/internal/resolver"
	"github.com/openhood/bannerd/internal/scheduler"
	"github.com/openhood/bannerd/internal/service"
	"github.com/openhood/bannerd/internal/storage"
	"github.com/openhood/bannerd/internal/version"
	"github.com/openhood/bannerd/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bannerd server",
	Long: `Start the bannerd HTTP server and API.

The server provides:
- REST API for managing banner slides and their media resolution
- Direct media endpoint, object-storage proxy, and static uploads routes
- Health check endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "bannerd.db", "Database DSN")
	serveCmd.Flags().String("data-dir", "./data", "Data directory for cached media and uploads")

	// Scheduler flags
	serveCmd.Flags().Bool("scheduler", true, "Enable background prune and sweep jobs")

	// Bind flags to viper
	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("scheduler.enabled", serveCmd.Flags().Lookup("scheduler"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize database and run migrations
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialize repositories
	slideRepo := repository.NewBannerSlideRepository(db.DB)

	// Initialize storage
	mediaCache, err := storage.NewMediaCache(cfg.Storage.MediaPath())
	if err != nil {
		return fmt.Errorf("initializing media cache: %w", err)
	}

	uploads, err := storage.NewSandbox(cfg.Storage.UploadsPath())
	if err != nil {
		return fmt.Errorf("initializing uploads storage: %w", err)
	}

	// HTTP client for media downloads. Breakers come from the default manager
	// so the health endpoint can report them.
	fetchConfig := httpclient.DefaultConfig()
	fetchConfig.Timeout = cfg.Resolver.FetchTimeout
	fetchConfig.RetryAttempts = cfg.Resolver.RetryAttempts
	fetchConfig.RetryDelay = cfg.Resolver.RetryDelay
	fetchConfig.UserAgent = version.UserAgent()
	fetchConfig.Logger = logger
	fetchBreaker := httpclient.DefaultManager.GetOrCreate("fetch",
		fetchConfig.CircuitThreshold, fetchConfig.CircuitTimeout, fetchConfig.CircuitHalfOpenMax)
	fetchClient := httpclient.NewWithBreaker(fetchConfig, fetchBreaker)

	mediaService := service.NewMediaService(mediaCache).
		WithHTTPClient(fetchClient.StandardClient()).
		WithMaxSize(cfg.Storage.MaxMediaSize.Bytes()).
		WithLogger(logger)

	if err := mediaService.LoadIndex(context.Background()); err != nil {
		return fmt.Errorf("loading media index: %w", err)
	}

	// HTTP client for candidate probes with 200 and 404 as acceptable statuses
	// (missing candidates are expected and shouldn't trip the circuit breaker)
	probeConfig := httpclient.DefaultConfig()
	probeConfig.Timeout = cfg.Resolver.ProbeTimeout
	probeConfig.AcceptableStatusCodes = httpclient.MustParseStatusCodes("200-299,404")
	probeConfig.UserAgent = version.UserAgent()
	probeConfig.Logger = logger
	probeBreaker := httpclient.DefaultManager.GetOrCreate("probe",
		probeConfig.CircuitThreshold, probeConfig.CircuitTimeout, probeConfig.CircuitHalfOpenMax)
	probeClient := httpclient.NewWithBreaker(probeConfig, probeBreaker)

	resolverOpts := resolver.Options{
		PathMarkers:     cfg.Resolver.PathMarkers,
		DirectEndpoint:  cfg.Resolver.DirectEndpoint,
		ProxyPrefix:     cfg.Resolver.ProxyPrefix,
		Buckets:         cfg.Resolver.Buckets,
		UploadsPath:     cfg.Resolver.UploadsPath,
		PlaceholderPath: cfg.Resolver.PlaceholderPath,
		AttemptCap:      cfg.Resolver.AttemptCap,
		AttemptDelay:    cfg.Resolver.AttemptDelay,
		ForceReload:     cfg.Resolver.ForceReload,
	}

	bannerService := service.NewBannerService(slideRepo).
		WithResolverOptions(resolverOpts).
		WithProbeClient(probeClient.StandardClient()).
		WithBaseURL(cfg.Resolver.BaseURL).
		WithLogger(logger)

	// Initialize HTTP server
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	// Register API handlers
	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB)
	healthHandler.Register(server.API())

	bannerHandler := handlers.NewBannerHandler(bannerService)
	bannerHandler.Register(server.API())

	mediaHandler := handlers.NewMediaHandler(mediaService)
	mediaHandler.Register(server.API())
	mediaHandler.RegisterFileServer(server.Router(), cfg.Resolver.DirectEndpoint)

	// Register the plain routes the fallback cascade probes against
	proxyHandler := handlers.NewProxyHandler(cfg.Resolver.ObjectStoreURL, cfg.Resolver.Buckets, logger).
		WithTimeout(cfg.Resolver.FetchTimeout)
	proxyHandler.RegisterRoutes(server.Router(), cfg.Resolver.ProxyPrefix)

	staticHandler := handlers.NewStaticHandler(uploads)
	staticHandler.RegisterRoutes(server.Router(), cfg.Resolver.UploadsPath)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start background jobs
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(bannerService, mediaService).
			WithLogger(logger).
			WithPruneSchedule(cfg.Scheduler.PruneCron).
			WithSweepSchedule(cfg.Scheduler.SweepCron).
			WithRetention(cfg.Storage.MediaRetention)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Start server
	logger.Info("starting bannerd server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
