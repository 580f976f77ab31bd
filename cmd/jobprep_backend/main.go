package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jobprep_backend/internal/auth"
	"jobprep_backend/internal/config"
	"jobprep_backend/internal/handler"
	"jobprep_backend/internal/metrics"
	"jobprep_backend/internal/oauth"
	"jobprep_backend/internal/resume"
	"jobprep_backend/internal/service"
	"jobprep_backend/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	shutdownTimeout = 10 * time.Second
	limiterIdleTTL  = 15 * time.Minute
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting jobprep backend", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//INIT DB
	pool, err := storage.Connect(ctx, cfg.DB.DbURL, cfg.DB.MaxConns)
	if err != nil {
		lgr.Error("failed to connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.Migrate {
		if err := storage.RunMigrations(ctx, pool); err != nil {
			lgr.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	st := storage.NewPostgresStorage(pool)

	//INIT SERVICES
	issuer, err := auth.NewTokenIssuer([]byte(cfg.Auth.SecretKey), cfg.Auth.TokenTTL)
	if err != nil {
		lgr.Error("failed to init token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	limiter := service.NewLoginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst, limiterIdleTTL, cfg.Auth.LoginMaxEntries)
	svc := service.NewService(st, auth.NewBcryptHasher(0), issuer, limiter, lgr)

	providers := setupProviders(cfg.OAuth, lgr)

	var ingestor handler.Ingestor
	if cfg.Storage.Bucket != "" {
		store, err := resume.NewS3Store(ctx, resume.S3Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Bucket:        cfg.Storage.Bucket,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			lgr.Error("failed to init object storage", slog.Any("error", err))
			os.Exit(1)
		}
		ingestor = resume.NewIngestor(store, lgr)
	} else {
		lgr.Info("storage bucket not configured, resume upload disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := handler.NewHandler(handler.Dependencies{
		Service:   svc,
		Tokens:    issuer,
		Providers: providers,
		Ingestor:  ingestor,
		DB:        st,
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
		Session: handler.SessionOptions{
			Secret: cfg.Session.SessionSecret,
			MaxAge: cfg.Session.MaxAge,
			Secure: cfg.Session.Secure,
		},
		CORSOrigins: cfg.HTTPServer.CORSOrigins,
	}, lgr)

	//INIT SERVER
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

// setupProviders builds both OAuth clients. Config validation has already
// guaranteed their credentials.
func setupProviders(cfg config.OAuth, lgr *slog.Logger) []oauth.Provider {
	opts := oauth.Options{Timeout: cfg.ProviderTimeout, Logger: lgr}

	return []oauth.Provider{
		oauth.NewGitHub(oauth.ProviderConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
		}, opts),
		oauth.NewGoogle(oauth.ProviderConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}, opts),
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
