package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string        `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv        string        `env:"APP_ENV" envDefault:"development"`
	AppBaseURL    string        `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	RunMigrations bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	JWTSecret        string        `env:"JWT_SECRET,required,notEmpty"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	BotAuthMaxAge    time.Duration `env:"BOT_AUTH_MAX_AGE" envDefault:"24h"`

	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"5s"`

	LoginPath         string `env:"LOGIN_PATH" envDefault:"/login"`
	PostLoginRedirect string `env:"POST_LOGIN_REDIRECT" envDefault:"/dashboard"`

	LoginRateLimitMax    int           `env:"LOGIN_RATE_LIMIT_MAX" envDefault:"10"`
	LoginRateLimitWindow time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW" envDefault:"15m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = strings.TrimRight(cfg.AppBaseURL, "/") + "/api/auth/callback/google"
	}
	return &cfg, nil
}

// LoadDatabaseConfig carga solo DATABASE_URL, para herramientas que no sirven HTTP.
func LoadDatabaseConfig() (*Config, error) {
	var dbCfg struct {
		DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	}
	if err := env.Parse(&dbCfg); err != nil {
		return nil, err
	}
	return &Config{DatabaseURL: dbCfg.DatabaseURL}, nil
}

// IsProduction indica si las cookies deben emitirse con Secure y SameSite=None.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}
