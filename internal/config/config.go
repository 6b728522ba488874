package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store      string // "redis" | "sqlite" | "memory"
	SQLitePath string // database file for the sqlite store

	// Stream metadata
	MetadataURL      string        // metadata proxy base URL
	MetadataTimeout  time.Duration // per request
	MetadataCacheTTL time.Duration // login -> user id cache (redis store only)
	FlushMetaCache   bool          // drop cached lookups at startup (redis store only)
	PlatformHosts    []string      // hosts whose addresses are resolved

	// Sessions
	NavDebounce    time.Duration // coalesce navigation bursts
	SessionIdleTTL time.Duration // drop disconnected tabs idle for this long
	SessionGC      time.Duration // idle session collection interval

	// Archive files and maintenance
	ImportFile     string        // optional yaml archive merged into the store
	ImportInterval time.Duration // periodic re-import besides file events
	ExportFile     string        // optional yaml snapshot target
	ExportInterval time.Duration // periodic export
	SweepInterval  time.Duration // store repair sweep

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
	RedisTxRetries        int           // optimistic transaction retries per update

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "127.0.0.1/32")
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	RateBurst    int      // requests allowed in a burst per client IP
	RatePerMin   int      // sustained requests per minute per client IP
}

// Load reads the configuration from the environment. A .env file (or the
// file named by VODMARK_ENV_FILE) is loaded first without overriding
// variables that are already set.
func Load() *Config {
	loadDotenv(getenv("VODMARK_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("VODMARK_LISTEN_PORT", "127.0.0.1:8787"),
		ShutdownTimeout: mustDuration("VODMARK_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("VODMARK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("VODMARK_PRETTY_LOG", true),

		// Store
		Store:      strings.ToLower(getenv("VODMARK_STORE", StoreSQLite)),
		SQLitePath: getenv("VODMARK_SQLITE_PATH", "vodmark.db"),

		// Metadata
		MetadataURL:      getenv("VODMARK_METADATA_URL", "http://localhost:3000"),
		MetadataTimeout:  mustDuration("VODMARK_METADATA_TIMEOUT", 5*time.Second),
		MetadataCacheTTL: mustDuration("VODMARK_METADATA_CACHE_TTL", 24*time.Hour),
		FlushMetaCache:   mustBool("VODMARK_METADATA_CACHE_FLUSH", false),
		PlatformHosts:    splitAndTrim(getenv("VODMARK_PLATFORM_HOSTS", "twitch.tv,www.twitch.tv,m.twitch.tv")),

		// Sessions
		NavDebounce:    mustDuration("VODMARK_NAV_DEBOUNCE", 150*time.Millisecond),
		SessionIdleTTL: mustDuration("VODMARK_SESSION_IDLE_TTL", 6*time.Hour),
		SessionGC:      mustDuration("VODMARK_SESSION_GC_INTERVAL", 10*time.Minute),

		// Archive
		ImportFile:     getenv("VODMARK_IMPORT_FILE", ""), // Optional, empty = import disabled
		ImportInterval: mustDuration("VODMARK_IMPORT_INTERVAL", 24*time.Hour),
		ExportFile:     getenv("VODMARK_EXPORT_FILE", ""), // Optional, empty = export disabled
		ExportInterval: mustDuration("VODMARK_EXPORT_INTERVAL", 24*time.Hour),
		SweepInterval:  mustDuration("VODMARK_SWEEP_INTERVAL", 24*time.Hour),

		// Access restrictions
		AllowedHosts: parseList(getenv("VODMARK_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseList(getenv("VODMARK_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("VODMARK_TRUST_PROXY", false),
		RateBurst:    getenvInt("VODMARK_RATE_BURST", 60),
		RatePerMin:   getenvInt("VODMARK_RATE_PER_MIN", 600),
	}

	switch cfg.Store {
	case StoreRedis:
		cfg.loadRedis()
	case StoreSQLite, StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: VODMARK_STORE must be one of redis, sqlite, memory (got %q)", cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfgCopy.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (cfg *Config) loadRedis() {
	cfg.RedisAddr = requireEnv("VODMARK_REDIS_ADDR")
	cfg.RedisUser = getenv("VODMARK_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("VODMARK_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("VODMARK_REDIS_PASSWORD", "")
	cfg.RedisDB = getenvInt("VODMARK_REDIS_DB", 0)
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)
	cfg.RedisTxRetries = getenvInt("REDIS_TX_RETRIES", 8)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: VODMARK_REDIS_PASSWORD is required when VODMARK_REDIS_PASSWORD_REQUIRED=true")
	}
}

func loadDotenv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("❌ FATAL: cannot read env file %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseList(s string) []string {
	parts := splitAndTrim(s)
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
