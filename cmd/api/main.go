package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/chachabrian/hacktruck-backend/internal/cargo"
	"github.com/chachabrian/hacktruck-backend/internal/config"
	"github.com/chachabrian/hacktruck-backend/internal/database"
	"github.com/chachabrian/hacktruck-backend/internal/handlers"
	"github.com/chachabrian/hacktruck-backend/internal/logger"
	"github.com/chachabrian/hacktruck-backend/internal/middleware"
	"github.com/chachabrian/hacktruck-backend/internal/services"
	"github.com/chachabrian/hacktruck-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	zl, err := logger.Init(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize database", zap.Error(err))
	}

	var listings store.ListingStore = store.NewGormListingStore(db)
	redisClient, err := services.InitRedis(ctx, cfg.RedisURL)
	switch {
	case err != nil:
		zl.Warn("redis unavailable, listing cache disabled", zap.Error(err))
	case redisClient != nil:
		defer redisClient.Close()
		listings = store.NewCachedListingStore(listings, redisClient, cfg.ListingCacheTTL, zl)
		zl.Info("listing cache enabled", zap.Duration("ttl", cfg.ListingCacheTTL))
	}

	images, err := services.NewImageStore(cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize image storage", zap.Error(err))
	}

	notifier, err := services.NewNotifier(ctx, cfg.FirebaseServiceAccountPath, zl)
	if err != nil {
		zl.Warn("firebase initialization failed, push notifications disabled", zap.Error(err))
		notifier = services.NoopNotifier{}
	}

	var generator cargo.Generator = services.DisabledGenerator{}
	gemini, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		zl.Warn("gemini unavailable, recommendations use the local ranking", zap.Error(err))
	} else {
		defer gemini.Close()
		generator = gemini
	}

	hub := services.NewHub(cfg.CORSOrigins, zl)
	go hub.Run(ctx)

	recommender := cargo.NewRecommender(listings, cargo.NewComposer(generator, cfg.AITimeout, zl), zl)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(zl), middleware.RequestLogger(zl))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	uploadDir := ""
	if _, local := images.(*services.LocalImageStore); local {
		uploadDir = cfg.UploadDir
	}

	handlers.RegisterRoutes(r, handlers.RouteDeps{
		Auth: handlers.AuthConfig{
			JWTSecret:      cfg.JWTSecret,
			JWTExpiry:      cfg.JWTExpiry,
			GoogleClientID: cfg.GoogleClientID,
			VerifyGoogle:   idtoken.Validate,
			Logger:         zl,
		},
		Users: store.NewGormUserStore(db),
		Listings: handlers.ListingDeps{
			Store:     listings,
			Images:    images,
			Publisher: hub,
			Notifier:  notifier,
			Logger:    zl,
		},
		Recommender: recommender,
		RateLimiter: middleware.NewRateLimiter(cfg.RecommendRatePerMin, cfg.RecommendBurst, zl),
		Hub:         hub,
		Notifier:    notifier,
		Ping:        pinger(db),
		UploadDir:   uploadDir,
		Logger:      zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	zl.Info("server exited")
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return database.Ping(ctx, db)
	}
}
