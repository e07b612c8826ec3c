package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/pkg/logger"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Signin    SigninConfig    `mapstructure:"signin"`
	Google    OAuthClient     `mapstructure:"google"`
	Line      OAuthClient     `mapstructure:"line"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// AllowedOrigins: список origin через запятую для CORS
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// MigrationsPath: источник для golang-migrate
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// SessionConfig: подпись и время жизни cookie сессии
type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

// SigninConfig: параметры страницы входа
type SigninConfig struct {
	// TokenTTL: время жизни ссылки входа из письма
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// SubmitTimeout ограничивает вызов сервиса аутентификации и TTL блокировки формы
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	// GuardBackend: "redis" (по умолчанию) или "local"
	GuardBackend string `mapstructure:"guard_backend"`
	// TokenHashKey: ключ blake2b для хеширования токенов ссылок
	TokenHashKey string `mapstructure:"token_hash_key"`
}

// OAuthClient: учетные данные OAuth клиента (Google client / LINE channel)
type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled сообщает, настроен ли провайдер
func (o OAuthClient) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// RateLimitConfig: лимит POST /auth/signin/*
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// IsRelease сообщает, запущено ли приложение в режиме release
func (s ServerConfig) IsRelease() bool {
	return s.Mode == "release"
}

// Origins возвращает разобранный список CORS origin
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.base_url", "http://localhost:8080")
	vip.SetDefault("server.read_timeout", 10*time.Second)
	vip.SetDefault("server.write_timeout", 15*time.Second)

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("session.cookie_name", "pos_session")
	vip.SetDefault("session.ttl", 30*24*time.Hour)

	vip.SetDefault("signin.token_ttl", 24*time.Hour)
	vip.SetDefault("signin.submit_timeout", 15*time.Second)
	vip.SetDefault("signin.guard_backend", "redis")

	vip.SetDefault("email.from", "Yoshi POS <no-reply@yoshi-pos.example>")

	vip.SetDefault("ratelimit.max_requests", 10)
	vip.SetDefault("ratelimit.window", time.Minute)
}

// Load загружает конфигурацию из файла (если задан) и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)

	// Привязываем переменные окружения ЯВНО
	binds := map[string]string{
		"server.port":            "SERVER_PORT",
		"server.mode":            "GIN_MODE",
		"server.base_url":        "SERVER_BASE_URL",
		"server.allowed_origins": "SERVER_ALLOWED_ORIGINS",

		"database.host":            "DATABASE_HOST",
		"database.port":            "DATABASE_PORT",
		"database.user":            "DATABASE_USER",
		"database.password":        "DATABASE_PASSWORD",
		"database.dbname":          "DATABASE_DBNAME",
		"database.sslmode":         "DATABASE_SSLMODE",
		"database.migrations_path": "DATABASE_MIGRATIONS_PATH",

		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"session.secret":      "SESSION_SECRET",
		"session.cookie_name": "SESSION_COOKIE_NAME",
		"session.ttl":         "SESSION_TTL",
		"session.secure":      "SESSION_SECURE",

		"signin.token_ttl":       "SIGNIN_TOKEN_TTL",
		"signin.submit_timeout":  "SIGNIN_SUBMIT_TIMEOUT",
		"signin.guard_backend":   "SIGNIN_GUARD_BACKEND",
		"signin.token_hash_key":  "SIGNIN_TOKEN_HASH_KEY",
		"google.client_id":       "GOOGLE_CLIENT_ID",
		"google.client_secret":   "GOOGLE_CLIENT_SECRET",
		"line.client_id":         "LINE_CHANNEL_ID",
		"line.client_secret":     "LINE_CHANNEL_SECRET",
		"email.resend_api_key":   "RESEND_API_KEY",
		"email.from":             "EMAIL_FROM",
		"ratelimit.max_requests": "RATELIMIT_MAX_REQUESTS",
		"ratelimit.window":       "RATELIMIT_WINDOW",
	}
	for key, env := range binds {
		if err := vip.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	log := logger.Named("Config")
	if configPath != "" {
		vip.SetConfigFile(configPath)
		// файл необязателен, env переменных достаточно
		if err := vip.ReadInConfig(); err != nil {
			log.Warn("config file not read, using env and defaults", zap.String("path", configPath), zap.Error(err))
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// REDIS_ADDRS приходит строкой через запятую
	if len(cfg.Redis.Addrs) == 1 && strings.Contains(cfg.Redis.Addrs[0], ",") {
		cfg.Redis.Addrs = strings.Split(cfg.Redis.Addrs[0], ",")
	}

	if !cfg.Server.IsRelease() {
		log.Debug("configuration loaded",
			zap.String("database_host", cfg.Database.Host),
			zap.String("database_name", cfg.Database.DBName),
			zap.String("redis_addr", cfg.Redis.Addr),
			zap.String("redis_mode", cfg.Redis.Mode),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.String("guard_backend", cfg.Signin.GuardBackend),
			zap.Bool("google_enabled", cfg.Google.Enabled()),
			zap.Bool("line_enabled", cfg.Line.Enabled()),
			zap.Bool("resend_enabled", cfg.Email.ResendAPIKey != ""),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required (check SESSION_SECRET env var)")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Server.IsRelease() && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	switch c.Signin.GuardBackend {
	case "redis", "local":
	default:
		return fmt.Errorf("unsupported signin guard backend: %q", c.Signin.GuardBackend)
	}
	if c.Signin.SubmitTimeout <= 0 {
		return fmt.Errorf("signin submit timeout must be positive")
	}
	return nil
}
