package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnv         = "development"
	defaultDBPath      = "./furniture.db"
	defaultPort        = "8080"
	defaultCalcTimeout = 5 * time.Second
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string
	DBPath        string
	Port          string
	CalcTimeout   time.Duration
	SeedReference bool
}

// IsDev reports whether the server runs in the development environment.
func (c Config) IsDev() bool {
	return c.Env == defaultEnv
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	return load(".env")
}

func load(dotenvPath string) Config {
	// A missing .env is fine; real deployments inject the environment.
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: read %s: %v", dotenvPath, err)
	}

	cfg := Config{
		Env:         strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV"))),
		DBPath:      os.Getenv("DB_PATH"),
		Port:        os.Getenv("PORT"),
		CalcTimeout: defaultCalcTimeout,
	}

	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if raw := os.Getenv("CALC_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Printf("warning: invalid CALC_TIMEOUT %q, using %s", raw, defaultCalcTimeout)
		} else {
			cfg.CalcTimeout = d
		}
	}

	cfg.SeedReference = cfg.IsDev()
	if raw := os.Getenv("SEED_REFERENCE"); raw != "" {
		cfg.SeedReference = parseBool(raw)
	}

	return cfg
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
