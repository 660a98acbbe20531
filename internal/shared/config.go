package shared

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	OutscraperBase string
	OutscraperKey  string
	OutscraperRPS  int

	PollInterval   time.Duration
	FetchAllRounds int
	RecentRounds   int
	SubmitAttempts int
	SubmitPolicy   string
	RecentLimit    int
	Language       string
	Workers        int
}

// ConfigError lists every required setting that was empty.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

var required = []string{"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "OUTSCRAPER_API_KEY"}

// Load reads the environment, after merging a .env file if one exists.
// Variables already set in the environment win over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(getenv(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Config{}, &ConfigError{Missing: missing}
	}

	env := func(k, def string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return def
	}
	atoi := func(k string, def int) int {
		if v := getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: getenv("METRICS_ADDR"),

		DBDriver:   strings.ToLower(env("DB_DRIVER", "postgres")),
		DBHost:     getenv("DB_HOST"),
		DBPort:     getenv("DB_PORT"),
		DBName:     getenv("DB_NAME"),
		DBUser:     getenv("DB_USER"),
		DBPassword: getenv("DB_PASSWORD"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: getenv("REDIS_PASSWORD"),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		OutscraperBase: env("OUTSCRAPER_BASE_URL", "https://api.app.outscraper.com"),
		OutscraperKey:  getenv("OUTSCRAPER_API_KEY"),
		OutscraperRPS:  atoi("OUTSCRAPER_RPS", 5),

		PollInterval:   time.Duration(atoi("POLL_INTERVAL_SECONDS", 30)) * time.Second,
		FetchAllRounds: atoi("FETCH_ALL_ROUNDS", 10),
		RecentRounds:   atoi("FETCH_RECENT_ROUNDS", 20),
		SubmitAttempts: atoi("SUBMIT_ATTEMPTS", 3),
		SubmitPolicy:   env("SUBMIT_EXHAUSTED_POLICY", "propagate"),
		RecentLimit:    atoi("RECENT_REVIEWS_LIMIT", 50),
		Language:       env("REVIEWS_LANGUAGE", "en"),
		Workers:        atoi("INGEST_WORKERS", 1),
	}

	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c, nil
}

// DriverName is the database/sql driver registered for DBDriver.
func (c Config) DriverName() string {
	if c.DBDriver == "mysql" {
		return "mysql"
	}
	return "pgx"
}

func (c Config) DSN() string {
	if c.DBDriver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	return u.String()
}
