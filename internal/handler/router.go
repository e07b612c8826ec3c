package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/metrics"
	"github.com/yoshi-pos/pos-web/internal/middleware"
	"github.com/yoshi-pos/pos-web/internal/signin"
)

// RouterConfig собирает зависимости роутера
type RouterConfig struct {
	Signin         *SigninHandler
	Onboarding     *OnboardingHandler
	Health         *HealthHandler
	Errors         *middleware.ErrorContextStore
	Sessions       *middleware.SessionMiddleware
	RateLimiter    *middleware.RateLimiter
	RateLimit      middleware.RateLimitConfig
	Renderer       render.HTMLRender
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	TrustedProxies []string
	Logger         *zap.Logger
}

// NewRouter создает gin.Engine со всеми маршрутами
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log, cfg.Metrics))
	router.HTMLRender = cfg.Renderer

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warn("failed to set trusted proxies", zap.Error(err))
	}

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", cfg.Health.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	pages := router.Group("/")
	pages.Use(cfg.Errors.Provider(), cfg.Sessions.Provider())
	{
		pages.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, signin.DashboardPath)
		})

		authGroup := pages.Group("/auth")
		{
			authGroup.GET("/signin", cfg.Signin.ShowSignin)
			authGroup.GET("/verify-request", cfg.Signin.VerifyRequest)
			authGroup.GET("/callback/:provider", cfg.Signin.Callback)
			authGroup.POST("/signout", cfg.Signin.SignOut)

			submit := authGroup.Group("/signin")
			if cfg.RateLimiter != nil {
				submit.Use(cfg.RateLimiter.Limit(cfg.RateLimit))
			}
			// /email регистрируется явно и имеет приоритет над :provider
			submit.POST("/email", cfg.Signin.SubmitEmail)
			submit.POST("/:provider", cfg.Signin.SignInWith)
		}

		authed := pages.Group("/")
		authed.Use(cfg.Sessions.RequireSession())
		{
			authed.GET("/dashboard", cfg.Onboarding.Dashboard)
			authed.GET("/onboarding", cfg.Onboarding.Onboarding)
			authed.POST("/onboarding/account", cfg.Onboarding.SaveAccount)
		}
	}

	return router
}
