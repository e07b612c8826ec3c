package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yoshi-pos/pos-web/internal/config"
	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	"github.com/yoshi-pos/pos-web/internal/handler"
	"github.com/yoshi-pos/pos-web/internal/metrics"
	"github.com/yoshi-pos/pos-web/internal/middleware"
	"github.com/yoshi-pos/pos-web/internal/repository/postgres"
	redisrepo "github.com/yoshi-pos/pos-web/internal/repository/redis"
	"github.com/yoshi-pos/pos-web/internal/service"
	"github.com/yoshi-pos/pos-web/internal/signin"
	"github.com/yoshi-pos/pos-web/internal/web"
	"github.com/yoshi-pos/pos-web/pkg/auth"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
	"github.com/yoshi-pos/pos-web/pkg/database"
	"github.com/yoshi-pos/pos-web/pkg/logger"
)

func main() {
	// .env необязателен: в production переменные приходят из окружения
	_ = godotenv.Load()

	isDev := os.Getenv("GIN_MODE") != gin.ReleaseMode
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !cfg.Server.IsRelease())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, logger.Named("Migrate")); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	m := metrics.New()

	// Репозитории
	userRepo := postgres.NewUserRepo(db)
	identityRepo := postgres.NewUserIdentityRepo(db)
	tokenRepo := postgres.NewVerificationTokenRepo(db)
	cacheRepo, err := redisrepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Fatal("failed to create cache repository", zap.Error(err))
	}
	sessionRepo := redisrepo.NewSessionRepo(cacheRepo)

	// Сервисы
	jwtService, err := auth.NewJWTService(cfg.Session.Secret, logger.Named("JWTService"))
	if err != nil {
		log.Fatal("failed to create jwt service", zap.Error(err))
	}
	cookies := manager.NewCookieManager(cfg.Session.CookieName, cfg.Session.Secure)
	sessionService, err := service.NewSessionService(sessionRepo, jwtService, cookies, cfg.Session.TTL, m, logger.L())
	if err != nil {
		log.Fatal("failed to create session service", zap.Error(err))
	}

	hashKey := cfg.Signin.TokenHashKey
	if hashKey == "" {
		hashKey = cfg.Session.Secret
	}
	hasher, err := service.NewTokenHasher(hashKey)
	if err != nil {
		log.Fatal("failed to create token hasher", zap.Error(err))
	}

	emailService := newEmailService(cfg, log)
	providers, buttons := newProviders(cfg, log)

	authService, err := service.NewAuthService(service.AuthServiceConfig{
		Users:      userRepo,
		Identities: identityRepo,
		Tokens:     tokenRepo,
		States:     service.NewOAuthStateStore(cacheRepo),
		Sessions:   sessionService,
		Email:      emailService,
		Hasher:     hasher,
		Providers:  providers,
		BaseURL:    cfg.Server.BaseURL,
		TokenTTL:   cfg.Signin.TokenTTL,
		Metrics:    m,
		Logger:     logger.L(),
	})
	if err != nil {
		log.Fatal("failed to create auth service", zap.Error(err))
	}
	userService := service.NewUserService(userRepo, logger.L())

	// Страница входа
	guard, forms := newSigninState(cfg, cacheRepo)
	page := signin.NewPage(signin.PageConfig{
		Auth:          authService,
		Sessions:      middleware.RequestSessionResolver{},
		Guard:         guard,
		Forms:         forms,
		Providers:     buttons,
		SubmitTimeout: cfg.Signin.SubmitTimeout,
		Metrics:       m,
		Logger:        logger.L(),
	})

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatal("failed to parse templates", zap.Error(err))
	}

	errorStore := middleware.NewErrorContextStore(cfg.Session.Secure)
	trustedProxies := []string{"127.0.0.1", "::1"}
	if cfg.Server.IsRelease() {
		// за балансировщиком добавьте его IP
		trustedProxies = nil
	}

	router := handler.NewRouter(handler.RouterConfig{
		Signin:         handler.NewSigninHandler(page, authService, sessionService, errorStore, cfg.Session.Secure, logger.L()),
		Onboarding:     handler.NewOnboardingHandler(userService, errorStore, cookies, logger.L()),
		Health:         handler.NewHealthHandler(healthChecks(db, redisClient)),
		Errors:         errorStore,
		Sessions:       middleware.NewSessionMiddleware(sessionService, errorStore, logger.L()),
		RateLimiter:    middleware.NewRateLimiter(redisClient, m, logger.L()),
		RateLimit:      middleware.SigninRateLimitConfig(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		Renderer:       renderer,
		Metrics:        m,
		AllowedOrigins: cfg.Server.Origins(),
		TrustedProxies: trustedProxies,
		Logger:         logger.L(),
	})

	go cleanupVerificationTokens(ctx, tokenRepo, logger.Named("TokenCleanup"))

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port), zap.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("server exited properly")
}

func newEmailService(cfg *config.Config, log *zap.Logger) service.EmailService {
	if cfg.Email.ResendAPIKey == "" {
		log.Warn("RESEND_API_KEY is not set, sign-in links are only logged")
		return service.NewNoopEmailService(logger.L())
	}
	svc, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, logger.L())
	if err != nil {
		log.Fatal("failed to create email service", zap.Error(err))
	}
	return svc
}

// newProviders builds the configured OAuth providers. The sign-in page always shows
// both buttons; an unconfigured provider fails with OAuthSignin.
func newProviders(cfg *config.Config, log *zap.Logger) (map[string]service.IdentityProvider, []signin.ProviderButton) {
	providers := map[string]service.IdentityProvider{}

	if google, err := service.NewGoogleProvider(cfg.Google, service.CallbackURL(cfg.Server.BaseURL, entity.ProviderGoogle)); err == nil {
		providers[entity.ProviderGoogle] = google
	} else {
		log.Warn("google sign-in disabled", zap.Error(err))
	}
	if line, err := service.NewLineProvider(cfg.Line, service.CallbackURL(cfg.Server.BaseURL, entity.ProviderLine)); err == nil {
		providers[entity.ProviderLine] = line
	} else {
		log.Warn("line sign-in disabled", zap.Error(err))
	}

	buttons := []signin.ProviderButton{
		{ID: entity.ProviderGoogle, Label: "Google"},
		{ID: entity.ProviderLine, Label: "LINE"},
	}
	return providers, buttons
}

func newSigninState(cfg *config.Config, cache repository.CacheRepository) (signin.Guard, signin.FormStateStore) {
	if cfg.Signin.GuardBackend == "local" {
		return signin.NewLocalGuard(), signin.NewMemoryFormStateStore()
	}
	return signin.NewRedisGuard(cache, cfg.Signin.SubmitTimeout), signin.NewRedisFormStateStore(cache, time.Hour)
}

func healthChecks(db *gorm.DB, client redis.UniversalClient) map[string]handler.HealthCheck {
	return map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error { return database.PingPostgres(ctx, db) },
		"redis":    func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// cleanupVerificationTokens удаляет просроченные и использованные ссылки входа раз в час
func cleanupVerificationTokens(ctx context.Context, repo repository.VerificationTokenRepository, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired()
			if err != nil {
				log.Warn("failed to delete expired verification tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired verification tokens deleted", zap.Int64("count", n))
			}
		}
	}
}
