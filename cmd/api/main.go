package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genvoy/internal/fal"
	"genvoy/internal/generate"
	"genvoy/internal/http/handlers"
	"genvoy/internal/http/httpapi"
	"genvoy/internal/infra"
	"genvoy/internal/metrics"
	"genvoy/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	client, err := fal.NewClient(fal.Options{
		APIKey:   cfg.FalKey,
		BaseURL:  cfg.FalBaseURL,
		QueueURL: cfg.FalQueueURL,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build fal.ai client")
	}

	workspace, err := storage.NewWorkspace(cfg.WorkDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare working root")
	}
	downloader := storage.NewDownloader(workspace, storage.DownloaderOptions{
		Timeout: cfg.DownloadTimeout,
		Logger:  logger,
	})

	collector := metrics.NewCollector()
	generator := generate.NewService(client, workspace, downloader, generate.Options{
		AuthHeader:    cfg.FalKey,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		JobTimeout:    cfg.JobTimeout,
		FanoutTimeout: cfg.FanoutJobTimeout,
		PollInterval:  cfg.PollInterval,
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        logger,
		Metrics:       collector,
	})

	app := handlers.NewApp(logger, client, generator)
	router := httpapi.NewRouter(app, logger, cfg.RateLimitPerMin)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("work_dir", workspace.Root()).Msgf("genvoy listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
