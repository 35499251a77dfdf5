package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"
)

// Store backends.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Grouped settings live in their own structs
// loaded by the sibling files of this package.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	StoreBackend string // "mysql" or "memory"
	SeedLots     bool   // insert the default campus lots when the lot table is empty
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	DBMaxConns   int    // connection pool size
	DBLockWait   int    // innodb_lock_wait_timeout in seconds
	JWTSecret    string // secret used to verify access tokens

	Engine    EngineConfig
	Forecast  ForecastConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
}

// EngineConfig tunes the reservation transaction manager.
type EngineConfig struct {
	RatePerHour      string        // hourly price, decimal string
	RetryMaxAttempts int           // attempts per operation including the first
	RetryBaseDelay   time.Duration // base of the exponential backoff
	AttemptTimeout   time.Duration // deadline for a single transaction attempt
	AcquireTimeout   time.Duration // wait for a pooled connection / tx slot
	LockTimeout      time.Duration // wait for a lot lock (memory store)
}

// Load reads configuration values from environment variables and returns a
// Config. Database settings are required only for the mysql backend;
// missing required values cause the program to exit with a fatal log.
func Load() Config {
	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		StoreBackend: strings.ToLower(envStr("STORE_BACKEND", StoreMySQL)),
		SeedLots:     envBool("SEED_LOTS", true),
		DBMaxConns:   envInt("DB_MAX_CONNS", 20),
		DBLockWait:   envInt("DB_LOCK_WAIT_TIMEOUT", 5),
		JWTSecret:    must("JWT_SECRET"),
		Engine:       LoadEngineConfig(),
		Forecast:     LoadForecastConfig(),
		Events:       LoadEventsConfig(),
		RateLimit:    LoadRateLimitConfig(),
	}
	if cfg.StoreBackend == StoreMySQL {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// LoadEngineConfig reads the ENGINE_* variables.
func LoadEngineConfig() EngineConfig {
	c := EngineConfig{
		RatePerHour:      envStr("ENGINE_RATE_PER_HOUR", "2.00"),
		RetryMaxAttempts: envInt("ENGINE_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   envDur("ENGINE_RETRY_BASE_DELAY", 100*time.Millisecond),
		AttemptTimeout:   envDur("ENGINE_ATTEMPT_TIMEOUT", 10*time.Second),
		AcquireTimeout:   envDur("ENGINE_ACQUIRE_TIMEOUT", 5*time.Second),
		LockTimeout:      envDur("ENGINE_LOCK_TIMEOUT", 5*time.Second),
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 1
	}
	return c
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envList(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
