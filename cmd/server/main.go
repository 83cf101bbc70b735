// Package main initializes and starts the Guard Pine API server, setting up
// configuration, logging, the database, repositories, services, handlers,
// metrics and, when configured, TLS.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/config"
	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/logger"
	"github.com/atinyakov/GuardPine/internal/metrics"
	"github.com/atinyakov/GuardPine/internal/models"
	"github.com/atinyakov/GuardPine/internal/repository"
	"github.com/atinyakov/GuardPine/internal/scraper"
	"github.com/atinyakov/GuardPine/internal/server/handler/http"
	"github.com/atinyakov/GuardPine/internal/service"
	"github.com/atinyakov/GuardPine/internal/wechat"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse .env, config file, flags and environment.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", firstNonZero(version, "N/A"))
	fmt.Printf("Build date: %s\n", firstNonZero(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log
	zap.ReplaceGlobals(zapLogger)

	if options.SecretKey == config.Defaults().SecretKey {
		zapLogger.Warn("using the default token secret, set SECRET_KEY in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and apply migrations.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Metrics: request and upstream counters, page views, Go runtime.
	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	wallClock := clock.WallClock
	outbound := &nethttp.Client{Timeout: options.UpstreamTimeout}

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	metaRepo := repository.NewPostgresMetaRepository(postgresDB)
	permissionRepo := repository.NewPostgresPermissionRepository(postgresDB)
	relationRepo := repository.NewPostgresRelationRepository(postgresDB)
	favoriteRepo := repository.NewPostgresFavoriteRepository(postgresDB)
	reminderRepo := repository.NewPostgresReminderRepository(postgresDB)
	activityRepo := repository.NewPostgresActivityRepository(postgresDB)

	// Upstream clients.
	scrapeClient, err := scraper.NewClient(scraper.Config{
		BaseURL:   options.ScraperBaseURL,
		SearchURL: options.SearchURL,
		Contact:   options.ScraperContact,
	}, outbound, collector, zapLogger.Named("scraper"))
	if err != nil {
		zapLogger.Fatal("invalid scraper configuration", zap.Error(err))
	}
	wechatClient := wechat.NewClient(wechat.Config{
		AppID:    options.WeChatAppID,
		Secret:   options.WeChatAppSecret,
		Endpoint: options.WeChatEndpoint,
		CacheTTL: options.OpenIDCacheTTL,
	}, outbound, wallClock, collector, zapLogger.Named("wechat"))

	// Initialize business-logic services.
	issuer := auth.NewIssuer([]byte(options.SecretKey), wallClock)
	identityService := service.NewIdentityService(userRepo, metaRepo, issuer, options.TokenTTL)
	permissionService := service.NewPermissionService(permissionRepo, userRepo)
	favoriteService := service.NewFavoriteService(favoriteRepo, userRepo, permissionService, scrapeClient, wallClock, zapLogger.Named("favorites"))
	reminderService := service.NewReminderService(reminderRepo, userRepo, permissionService, wallClock)
	activityService := service.NewActivityService(activityRepo, userRepo, permissionService, wallClock)
	relationService := service.NewRelationService(relationRepo, userRepo, permissionService).WithDetails(favoriteService, activityService)
	pairingService := service.NewPairingService(relationRepo, options.PairingCodeTTL, wallClock)
	wechatService := service.NewWeChatService(wechatClient, identityService)

	// Create HTTP handlers.
	tlsEnabled := options.TLSCert != "" && options.TLSKey != ""
	userHandler := &http.UserHandler{Identity: identityService, Permissions: permissionService, SecureCookie: tlsEnabled}
	handlers := http.Handlers{
		Users:       userHandler,
		Permissions: &http.PermissionHandler{Permissions: permissionService},
		Pairing:     &http.PairingHandler{Pairing: pairingService},
		WeChat:      &http.WeChatHandler{WeChat: wechatService, Users: userHandler},
		Info:        &http.InfoHandler{Scraper: scrapeClient},
		Home:        http.NewHomeHandler(scrapeClient, collector, options.HomeImageURL, options.ImageCacheTTL, wallClock),
		Resources: map[string]http.Mounter{
			"/relationship": http.NewRelationHandler(relationService),
			"/favorite":     &http.ResourceHandler[models.FavoriteView, models.Favorite, service.NewFavorite, service.FavoritePatch]{Service: favoriteService},
			"/reminder":     &http.ResourceHandler[models.Reminder, models.Reminder, service.NewReminder, service.ReminderPatch]{Service: reminderService},
			"/activity":     &http.ResourceHandler[models.Activity, models.Activity, service.NewActivity, service.ActivityPatch]{Service: activityService},
		},
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(handlers, http.RouterConfig{
		Auth:        issuer,
		Observer:    collector,
		Gatherer:    registry,
		CORSOrigins: options.CORSOrigins,
	}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if tlsEnabled {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// firstNonZero returns the first argument that is not the zero value
// (equivalent to cmp.Or, which requires Go 1.22).
func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
