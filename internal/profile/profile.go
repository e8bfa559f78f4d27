package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultSessionTTL   = 24 * time.Hour
	defaultStoreTimeout = 3 * time.Second
	defaultRateLimit    = 10.0
	defaultRedisPrefix  = "classfellow:"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where classfellow stores durable session records
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Ephemeral state store. An empty RedisAddr selects the in-process cache.
	RedisAddr     string        // CLASSFELLOW_REDIS_ADDR
	RedisPassword string        // CLASSFELLOW_REDIS_PASSWORD
	RedisDB       int           // CLASSFELLOW_REDIS_DB (default: 0)
	RedisPrefix   string        // CLASSFELLOW_REDIS_PREFIX (default: classfellow:)
	SessionTTL    time.Duration // CLASSFELLOW_SESSION_TTL (default: 24h)
	StoreTimeout  time.Duration // CLASSFELLOW_STORE_TIMEOUT (default: 3s)

	// RateLimit is the sustained chunk submissions per second allowed per session.
	RateLimit float64 // CLASSFELLOW_RATE_LIMIT (default: 10)

	// AI Configuration
	AIEnabled  bool   // CLASSFELLOW_AI_ENABLED
	AIProvider string // CLASSFELLOW_AI_PROVIDER (default: deepseek)
	AIAPIKey   string // CLASSFELLOW_AI_API_KEY
	AIBaseURL  string // CLASSFELLOW_AI_BASE_URL (default depends on provider)
	AIModel    string // CLASSFELLOW_AI_MODEL (default: deepseek-chat)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and an API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && p.AIAPIKey != ""
}

// UseRedis reports whether the ephemeral state store is backed by Redis.
func (p *Profile) UseRedis() bool {
	return p.RedisAddr != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads the store and AI configuration from CLASSFELLOW_* environment variables.
// Malformed numeric or duration values are logged and replaced by their defaults.
func (p *Profile) FromEnv() {
	getDuration := func(key string, defaultValue time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return defaultValue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultValue)
			return defaultValue
		}
		return d
	}

	p.RedisAddr = os.Getenv("CLASSFELLOW_REDIS_ADDR")
	p.RedisPassword = os.Getenv("CLASSFELLOW_REDIS_PASSWORD")
	p.RedisPrefix = getEnvOrDefault("CLASSFELLOW_REDIS_PREFIX", defaultRedisPrefix)
	if raw := os.Getenv("CLASSFELLOW_REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil && db >= 0 {
			p.RedisDB = db
		} else {
			slog.Warn("invalid redis db in environment, using 0", "value", raw)
		}
	}
	p.SessionTTL = getDuration("CLASSFELLOW_SESSION_TTL", defaultSessionTTL)
	p.StoreTimeout = getDuration("CLASSFELLOW_STORE_TIMEOUT", defaultStoreTimeout)

	p.RateLimit = defaultRateLimit
	if raw := os.Getenv("CLASSFELLOW_RATE_LIMIT"); raw != "" {
		if limit, err := strconv.ParseFloat(raw, 64); err == nil && limit > 0 {
			p.RateLimit = limit
		} else {
			slog.Warn("invalid rate limit in environment, using default", "value", raw, "default", defaultRateLimit)
		}
	}

	p.AIEnabled = os.Getenv("CLASSFELLOW_AI_ENABLED") == "true"
	p.AIProvider = getEnvOrDefault("CLASSFELLOW_AI_PROVIDER", "deepseek")
	p.AIAPIKey = os.Getenv("CLASSFELLOW_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("CLASSFELLOW_AI_BASE_URL", defaultBaseURL(p.AIProvider))
	p.AIModel = getEnvOrDefault("CLASSFELLOW_AI_MODEL", "deepseek-chat")
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "siliconflow":
		return "https://api.siliconflow.cn/v1"
	default:
		return "https://api.deepseek.com"
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only sqlite and postgres are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.SessionTTL <= 0 {
		p.SessionTTL = defaultSessionTTL
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = defaultStoreTimeout
	}
	if p.RateLimit <= 0 {
		p.RateLimit = defaultRateLimit
	}
	if p.RedisPrefix == "" {
		p.RedisPrefix = defaultRedisPrefix
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "classfellow")
		} else {
			p.Data = "/var/opt/classfellow"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("classfellow_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
