// Package config binds command-line flags and environment variables.
//
// Every flag is also read from the environment under its upper-snake name
// (--log-level ↔ LOG_LEVEL); an explicit flag wins over the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/robalobadob/wordle/apps/duel-server/internal/round"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the resolved server configuration.
type Config struct {
	Port           int
	LogLevel       string
	JWTSecret      string
	JWTExpiresDays int
	ClientOrigin   string
	PublicURL      string // base for invite links; defaults to ClientOrigin

	WordsAnswersFile string
	WordsAllowedFile string
	WordSalt         string

	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryDSN string

	SettleDelay       time.Duration
	ReleaseDelay      time.Duration
	FailsafeTimeout   time.Duration
	ReconcileInterval time.Duration
}

// Bind registers the flags on fs and fills cfg from flags or environment.
// Call Load after fs has been parsed.
func Bind(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	t := round.DefaultTiming()

	fs.IntVarP(&cfg.Port, "port", "p", 5175, "port to listen on (env: PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "zerolog level (env: LOG_LEVEL)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "dev_secret_change_me", "HS256 key for player tickets (env: JWT_SECRET)")
	fs.IntVar(&cfg.JWTExpiresDays, "jwt-expires-days", 14, "ticket lifetime in days (env: JWT_EXPIRES_DAYS)")
	fs.StringVar(&cfg.ClientOrigin, "client-origin", "http://localhost:5173", "allowed CORS and websocket origin (env: CLIENT_ORIGIN)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "base URL used in invite links (env: PUBLIC_URL)")

	fs.StringVar(&cfg.WordsAnswersFile, "words-answers-file", "", "answer list override (env: WORDS_ANSWERS_FILE)")
	fs.StringVar(&cfg.WordsAllowedFile, "words-allowed-file", "", "allowed guess list override (env: WORDS_ALLOWED_FILE)")
	fs.StringVar(&cfg.WordSalt, "word-salt", "duel", "salt mixing round ids into answers (env: WORD_SALT)")

	fs.StringVar(&cfg.Store, "store", StoreMemory, "shared room state backend: memory|redis (env: STORE)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "redis address (env: REDIS_ADDR)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password (env: REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database number (env: REDIS_DB)")

	fs.StringVar(&cfg.HistoryDSN, "history-dsn", "./data/history.db", "sqlite path or postgres URL; empty disables history (env: HISTORY_DSN)")

	fs.DurationVar(&cfg.SettleDelay, "settle-delay", t.Settle, "delay before a new round's data is cleared (env: SETTLE_DELAY)")
	fs.DurationVar(&cfg.ReleaseDelay, "release-delay", t.Release, "delay before the reset flag is released (env: RELEASE_DELAY)")
	fs.DurationVar(&cfg.FailsafeTimeout, "failsafe-timeout", t.Failsafe, "forced exit from a stuck reset (env: FAILSAFE_TIMEOUT)")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", t.Reconcile, "shared state poll period (env: RECONCILE_INTERVAL)")
}

// Load copies environment values into flags the user did not set.
func Load(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks ranges and combinations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret must not be empty")
	}
	if c.JWTExpiresDays < 1 {
		return fmt.Errorf("jwt expiry must be at least one day: %d", c.JWTExpiresDays)
	}
	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("--redis-addr is required with --store=redis")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory or redis)", c.Store)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis db: %d", c.RedisDB)
	}
	for name, d := range map[string]time.Duration{
		"settle-delay":       c.SettleDelay,
		"release-delay":      c.ReleaseDelay,
		"failsafe-timeout":   c.FailsafeTimeout,
		"reconcile-interval": c.ReconcileInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive: %s", name, d)
		}
	}
	if c.FailsafeTimeout <= c.SettleDelay+c.ReleaseDelay {
		return fmt.Errorf("--failsafe-timeout (%s) must exceed settle + release (%s)",
			c.FailsafeTimeout, c.SettleDelay+c.ReleaseDelay)
	}
	return nil
}

// Timing returns the round timings with the configured overrides.
func (c *Config) Timing() round.Timing {
	t := round.DefaultTiming()
	t.Settle = c.SettleDelay
	t.Release = c.ReleaseDelay
	t.Failsafe = c.FailsafeTimeout
	t.Reconcile = c.ReconcileInterval
	return t
}

// InviteBase is the URL invite links and QR codes point at.
func (c *Config) InviteBase() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return strings.TrimRight(c.ClientOrigin, "/")
}
