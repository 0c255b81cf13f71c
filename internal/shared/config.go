package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	RequestTimeout time.Duration

	MySQLDSN       string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration

	FraudMinBody   int
	FraudWindow    time.Duration
	FraudMaxRecent int

	RematWorkers int
	RematRPS     int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4&loc=UTC"),
		DBMaxOpenConns: atoi("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: atoi("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLife:  time.Duration(atoi("DB_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 30)) * time.Second,
		FraudMinBody:   atoi("FRAUD_MIN_BODY", 10),
		FraudWindow:    time.Duration(atoi("FRAUD_WINDOW_HOURS", 24)) * time.Hour,
		FraudMaxRecent: atoi("FRAUD_MAX_RECENT", 3),
		RematWorkers:   atoi("REMAT_WORKERS", 4),
		RematRPS:       atoi("REMAT_RPS", 50),
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty; top5 read cache disabled")
	}
	return c
}

func env(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}
