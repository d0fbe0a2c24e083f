package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup and passed
// by reference into each component constructor.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	APIPort     int    `env:"API_PORT" envDefault:"8080"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8081"`

	// Outbound HTTP
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	HTTPRetries int           `env:"HTTP_RETRIES" envDefault:"3"`

	// External providers
	IMDBAPIBase      string `env:"IMDBAPI_BASE" envDefault:"https://api.imdbapi.dev"`
	KinoCheckBase    string `env:"KINOCHECK_BASE" envDefault:"https://api.kinocheck.com"`
	KinoCheckAPIKey  string `env:"KINOCHECK_API_KEY"`
	WatchmodeBase    string `env:"WATCHMODE_BASE" envDefault:"https://api.watchmode.com/v1"`
	WatchmodeAPIKey  string `env:"WATCHMODE_API_KEY"`
	WatchmodeRegions string `env:"WATCHMODE_REGIONS" envDefault:"TR"`

	// Film cache
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// LLM (OpenAI-compatible chat completion endpoint)
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMBaseURL      string        `env:"LLM_BASE_URL" envDefault:"https://api.deepseek.com/v1"`
	LLMModel        string        `env:"LLM_MODEL" envDefault:"deepseek-chat"`
	LLMRateLimitRPS int           `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`
	RecoDeadline    time.Duration `env:"RECO_DEADLINE" envDefault:"120s"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
