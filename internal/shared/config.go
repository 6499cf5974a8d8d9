package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	SerpAPIBase string
	SerpAPIKey  string
	SourcesFile string

	HTTPTimeout time.Duration

	Workers        int
	FetchTimeout   time.Duration
	ConnectTimeout time.Duration
	FetchRPS       float64
	FetchAttempts  int

	GymCacheTTL     time.Duration
	ProductCacheTTL time.Duration
	CacheTTL        time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	secs := func(k string, def int) time.Duration {
		return time.Duration(atoi(k, def)) * time.Second
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/fitidea?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		SerpAPIBase: env("SERPAPI_BASE_URL", "https://serpapi.com"),
		SerpAPIKey:  env("SERPAPI_KEY", ""),
		SourcesFile: env("SOURCES_FILE", ""),

		HTTPTimeout: secs("HTTP_TIMEOUT_SECONDS", 30),

		Workers:        atoi("INGEST_WORKERS", 10),
		FetchTimeout:   secs("FETCH_TIMEOUT_SECONDS", 20),
		ConnectTimeout: secs("FETCH_CONNECT_TIMEOUT_SECONDS", 10),
		FetchRPS:       atof("FETCH_RPS", 0),
		FetchAttempts:  atoi("FETCH_ATTEMPTS", 2),

		GymCacheTTL:     secs("GYM_CACHE_TTL_SECONDS", 86400),
		ProductCacheTTL: secs("PRODUCT_CACHE_TTL_SECONDS", 86400),
		CacheTTL:        secs("CACHE_TTL_SECONDS", 900),
	}
	if c.SerpAPIKey == "" {
		log.Warn().Msg("SERPAPI_KEY is empty; offers search disabled, amazon falls back to HTML")
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
