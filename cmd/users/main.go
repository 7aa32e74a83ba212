// Command users runs the users service: registration, email verification,
// login with lockout, token refresh and revocation, password reset and
// public profiles, mounted at /users.
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
	"github.com/welldanyogia/recetas/backend/internal/mailer"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/middleware"
	"github.com/welldanyogia/recetas/backend/internal/repository"
	"github.com/welldanyogia/recetas/backend/internal/revocation"
	"github.com/welldanyogia/recetas/backend/internal/server"
	"github.com/welldanyogia/recetas/backend/internal/user"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load("3001")

	if cfg.JWT.AccessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET environment variable is required")
	}
	if cfg.JWT.RefreshSecret == "" {
		log.Fatal("JWT_REFRESH_SECRET environment variable is required")
	}

	appLog := logger.New(logger.DefaultConfig("users"))
	slog.SetDefault(appLog)

	ctx := context.Background()

	dbPool, err := database.NewPool(ctx, cfg.Database, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := database.NewRedis(ctx, cfg.Redis.URL, appLog)
	if err != nil {
		appLog.Warn("redis unavailable, revocation cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	revokedRepo := repository.NewRevokedTokenRepository(dbPool)

	revOpts := []revocation.Option{revocation.WithLogger(appLog)}
	if redisClient != nil {
		revOpts = append(revOpts, revocation.WithRedis(redisClient))
	}
	revocations := revocation.NewList(revokedRepo, revOpts...)

	// Services
	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSecret:       cfg.JWT.AccessSecret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
		VerifyTokenExpiry:  cfg.Auth.VerificationExpiry,
		ResetTokenExpiry:   cfg.Auth.ResetExpiry,
		Issuer:             cfg.JWT.Issuer,
	})

	authService := auth.NewAuthService(auth.AuthServiceConfig{
		UserRepo:          userRepo,
		TokenService:      tokenService,
		PasswordValidator: auth.NewPasswordValidator(cfg.Auth.BcryptCost),
		Revoker:           revocations,
		Mailer:            newMailer(cfg, appLog),
		MaxLoginAttempts:  cfg.Auth.MaxLoginAttempts,
		LockoutWindow:     cfg.Auth.LockoutWindow,
		Logger:            appLog,
	})
	userService := user.NewService(userRepo, appLog)

	// Handlers and middleware
	authHandler := auth.NewAuthHandler(authService, appLog)
	userHandler := user.NewHandler(userService, appLog)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, revocations, appLog)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	// Background jobs
	purgeConfig := revocation.DefaultPurgeJobConfig()
	purgeConfig.Interval = cfg.Cleanup.RevocationPurgeInterval
	purgeJob := revocation.NewPurgeJob(revocations, purgeConfig, appLog)
	if err := purgeJob.Start(); err != nil {
		appLog.Error("failed to start revocation purge job", "error", err)
	}

	dbStats := metrics.NewDBStatsCollector(dbPool, nil)
	dbStats.Start(15 * time.Second)

	probes := health.NewHandler(health.Config{
		Service:     "users",
		DBPool:      dbPool,
		RedisClient: redisClient,
		Version:     Version,
	})

	r := server.NewRouter(server.Options{
		Logger:         appLog,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         probes,
	})
	r.Route("/users", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler, auth.RouteMiddleware{
			Authenticate: authMiddleware.Authenticate,
			RateLimit:    limiter.Handler,
		})
		user.RegisterRoutes(r, userHandler, authMiddleware.Authenticate)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	if err := server.Run(addr, r, probes, appLog, purgeJob.Stop, limiter.Stop, dbStats.Stop); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// newMailer sends through SMTP when MAIL_HOST is set and logs links otherwise.
func newMailer(cfg *config.Config, log *slog.Logger) mailer.Sender {
	links := mailer.Links{
		FrontendURL:        cfg.Mail.FrontendURL,
		VerificationExpiry: mailer.FormatExpiry(cfg.Auth.VerificationExpiry),
		ResetExpiry:        mailer.FormatExpiry(cfg.Auth.ResetExpiry),
	}
	if cfg.Mail.Host == "" {
		log.Warn("MAIL_HOST not set, account emails will be logged instead of sent")
		return mailer.NewLogSender(links, log)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Links:    links,
	}, log)
}
