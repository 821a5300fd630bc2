package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/isaackogan/TikTokLive-Server/internal/manager"
	"github.com/isaackogan/TikTokLive-Server/internal/room"
	"github.com/isaackogan/TikTokLive-Server/internal/roomsession"
	api "github.com/isaackogan/TikTokLive-Server/pkg/restapi"
	"github.com/isaackogan/TikTokLive-Server/pkg/webcast"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Listen to termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Initialize config.
	config, err := LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("config cannot be loaded")
	}

	// Initialize logger.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid log level")
	}

	zlog.Logger = zlog.Logger.Level(lvl)
	logger := zlog.Logger

	// Initialize the upstream webcast client.
	webcastCli, err := webcast.NewClient(webcast.Config{
		SignAPIURL: config.Webcast.SignAPIURL,
		SignAPIKey: config.Webcast.SignAPIKey,
		SessionID:  config.Webcast.SessionID,
		Proxies:    config.Webcast.Proxies,
		MaxRPS:     config.Webcast.MaxRPS,
	}, logger)
	if err != nil {
		zlog.Fatal().Err(err).Msg("webcast client cannot be created")
	}

	// Initialize the session recorder.
	var sessionRepo roomsession.Repository
	var recorder room.SessionRecorder
	if config.AWS.SessionsTableName != "" {
		var awsOpts []func(*awsconf.LoadOptions) error
		if config.AWS.AccessKeyID != "" {
			// Load AWS config with credentials when AccessKeyID is not empty.
			// Otherwise, we let SDK to pick credentials from available sources automatically.
			awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
		}

		awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

		awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to load AWS config")
		}

		repo := roomsession.NewRepository(ctx, dynamodb.NewFromConfig(awsConfig), config.AWS.SessionsTableName)
		sessionRepo = repo
		recorder = roomsession.NewRecorder(logger, repo)
	}

	// Create the room pool and the manager.
	dial := func(ctx context.Context, uniqueID string) (room.Upstream, error) {
		return webcastCli.Connect(ctx, uniqueID)
	}

	pool := room.NewPool(ctx, logger, dial, room.PoolConfig{
		CleanupInterval: config.CleanupInterval,
	}, recorder)

	mgr := manager.New(logger, pool)
	mgr.Start()

	// Initialize the REST server.
	router := api.NewRouter(api.RouterOpts{
		Logger:   logger,
		Manager:  mgr,
		Sessions: sessionRepo,
		Timeout:  config.API.ServerTimeout,
	})

	srv := &http.Server{
		Addr:              config.API.ListeningAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Str("address", config.API.ListeningAddress).Msg("starting the server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	// Export Prometheus metrics.
	go func() {
		zlog.Info().Str("address", config.PrometheusExportAddress).Msg("starting the prometheus exporter")

		metricSrv := &http.Server{
			Addr:              config.PrometheusExportAddress,
			Handler:           http.DefaultServeMux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}

		http.DefaultServeMux.Handle("/metrics", promhttp.Handler())
		err := metricSrv.ListenAndServe()
		if err != nil {
			zlog.Error().Err(err).Msg("prometheus exporter failed")
		}
	}()

	<-stop
	cancel()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdown()

	err = mgr.Stop(shutdownCtx)
	if err != nil {
		zlog.Err(err).Msg("manager cannot be stopped")
	}

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}
