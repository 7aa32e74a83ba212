// Command recipes runs the recipes service: recipe CRUD, voting and media
// uploads, mounted at /recetas, plus the public /uploads/ files when media
// is stored locally.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/welldanyogia/recetas/backend/internal/auth"
	"github.com/welldanyogia/recetas/backend/internal/config"
	"github.com/welldanyogia/recetas/backend/internal/database"
	"github.com/welldanyogia/recetas/backend/internal/health"
	"github.com/welldanyogia/recetas/backend/internal/logger"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/middleware"
	"github.com/welldanyogia/recetas/backend/internal/recipe"
	"github.com/welldanyogia/recetas/backend/internal/repository"
	"github.com/welldanyogia/recetas/backend/internal/revocation"
	"github.com/welldanyogia/recetas/backend/internal/server"
	"github.com/welldanyogia/recetas/backend/internal/storage"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load("3002")

	if cfg.JWT.AccessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET environment variable is required")
	}
	if cfg.JWT.RefreshSecret == "" {
		log.Fatal("JWT_REFRESH_SECRET environment variable is required")
	}

	appLog := logger.New(logger.DefaultConfig("recipes"))
	slog.SetDefault(appLog)

	ctx := context.Background()

	dbPool, err := database.NewPool(ctx, cfg.Database, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	sqlDB, err := database.NewSQLX(ctx, cfg.Database, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := database.NewRedis(ctx, cfg.Redis.URL, appLog)
	if err != nil {
		appLog.Warn("redis unavailable, revocation cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	media, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialise media storage: %v", err)
	}

	// The recipes service only reads the revocation list; the users
	// service writes and purges it.
	revOpts := []revocation.Option{revocation.WithLogger(appLog)}
	if redisClient != nil {
		revOpts = append(revOpts, revocation.WithRedis(redisClient))
	}
	revocations := revocation.NewList(repository.NewRevokedTokenRepository(dbPool), revOpts...)

	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSecret:       cfg.JWT.AccessSecret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
		Issuer:             cfg.JWT.Issuer,
	})
	authMiddleware := middleware.NewAuthMiddleware(tokenService, revocations, appLog)

	recipeService := recipe.NewService(repository.NewRecipeRepo(sqlDB), media, appLog)
	recipeHandler := recipe.NewHandler(recipeService, cfg.Storage.MaxUploadBytes, appLog)

	dbStats := metrics.NewDBStatsCollector(dbPool, sqlDB.DB)
	dbStats.Start(15 * time.Second)

	probes := health.NewHandler(health.Config{
		Service:     "recipes",
		DBPool:      dbPool,
		SQLDB:       sqlDB,
		RedisClient: redisClient,
		Version:     Version,
	})

	r := server.NewRouter(server.Options{
		Logger:         appLog,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         probes,
	})
	r.Route("/recetas", func(r chi.Router) {
		recipe.RegisterRoutes(r, recipeHandler, authMiddleware.Authenticate, authMiddleware.Optional)
	})

	if local, ok := media.(*storage.LocalStore); ok {
		r.Handle("/uploads/*", local.Handler())
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	if err := server.Run(addr, r, probes, appLog, dbStats.Stop); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
