package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	portalapi "github.com/walletgate/walletgate/api/echo"
	"github.com/walletgate/walletgate/config"
	"github.com/walletgate/walletgate/discord"
	"github.com/walletgate/walletgate/internal/vault"
	"github.com/walletgate/walletgate/ledger"
	"github.com/walletgate/walletgate/mongodb"
	"github.com/walletgate/walletgate/ratelimit"
	"github.com/walletgate/walletgate/rolebot"
	"github.com/walletgate/walletgate/roles"
	"github.com/walletgate/walletgate/services"
	"github.com/walletgate/walletgate/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg)
	log.Info().Str("http_port", cfg.HTTPPort).Str("mongo_db", cfg.MongoDBName).Msg("Starting walletgate server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	db := mongodb.GetDB()

	sessionRepo, err := mongodb.NewWalletSessionRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize wallet session repository")
	}
	stateRepo, err := mongodb.NewOAuthStateRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize oauth state repository")
	}
	roleRepo, err := mongodb.NewRoleRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize role repository")
	}
	accountRepo, err := mongodb.NewLinkedAccountRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize linked account repository")
	}
	userSessionRepo, err := mongodb.NewUserSessionRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user session repository")
	}

	tokenVault, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ENCRYPTION_KEY")
	}

	sessionTTL := time.Duration(cfg.WalletSessionTTLMin) * time.Minute
	stateTTL := time.Duration(cfg.OAuthStateTTLMin) * time.Minute
	userSessionTTL := time.Duration(cfg.UserSessionTTLHour) * time.Hour
	roleCacheTTL := time.Duration(cfg.RoleCacheTTLMin) * time.Minute

	sessionService := services.NewSessionService(sessionRepo, sessionTTL)
	stateService := services.NewStateService(stateRepo, stateTTL, sessionTTL)
	authService := services.NewAuthService(userSessionRepo, accountRepo, cfg.AdminAPIKey, userSessionTTL)
	roleStore := roles.NewStore(roleRepo, roleCacheTTL)

	providerClient := discord.New(discord.Config{
		ClientID:     cfg.ProviderClientID,
		ClientSecret: cfg.ProviderClientSecret,
		BotToken:     cfg.ProviderBotToken,
		GuildID:      cfg.ProviderGuildID,
		APIBaseURL:   cfg.ProviderAPIBaseURL,
		RedirectURI:  cfg.BaseURL + "/api/auth/callback",
	})
	ledgerClient := ledger.New(cfg.LedgerAPIURL)
	granterClient := rolebot.New(cfg.RoleBotURL, cfg.RoleBotAPIKey)

	linkService := services.NewLinkService(
		sessionService,
		stateService,
		authService,
		accountRepo,
		roleStore,
		providerClient,
		ledgerClient,
		granterClient,
		tokenVault,
	)

	limiter := buildLimiter(cfg)

	api := portalapi.NewPortalAPI(
		sessionService,
		stateService,
		authService,
		linkService,
		roleStore,
		providerClient,
		limiter,
		cfg.BaseURL,
		mongodb.Ping,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger())
	api.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil {
			log.Info().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Hourly maintenance for consumed and expired sessions.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := sessionService.Cleanup(context.Background()); err != nil {
				log.Warn().Err(err).Msg("session cleanup failed")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown error")
	}
	roleStore.Stop()
	mongodb.CloseMongoDB(shutdownCtx)
}

func setupLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}

// buildLimiter prefers the shared Redis sliding log when a Redis URL is
// configured; otherwise the process-local fixed window is used.
func buildLimiter(cfg *config.ServerConfig) ratelimit.Limiter {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemory()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid REDIS_URL, falling back to in-memory rate limiting")
		return ratelimit.NewMemory()
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory rate limiting")
		return ratelimit.NewMemory()
	}

	log.Info().Msg("Using Redis-backed rate limiter")
	return ratelimit.NewRedisLimiter(client, "walletgate")
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}
			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Msg("HTTP request")

			return err
		}
	}
}
