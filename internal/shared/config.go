package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	// MySQLDSN is optional; empty disables the sync journal.
	MySQLDSN string

	// RedisAddr is optional; empty disables the contact cache.
	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	CobotBaseURL string
	CobotToken   string

	ChatwootURL       string
	ChatwootAccountID string
	ChatwootToken     string

	// ProfileURLBase is the host used to build admin profile links on the
	// contact (cobot_profile_url).
	ProfileURLBase string

	// Timezone for display-formatted dates; empty means local time.
	Timezone string

	Workers         int
	CobotRPS        int
	ChatwootRPS     int
	MemberPageSize  int
	InvoicePageSize int

	// SyncInterval paces the bulk driver between members.
	SyncInterval time.Duration
}

func Load() Config {
	// A local .env is picked up when present; real env vars win.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	return Config{
		AppEnv:            env("APP_ENV", "prod"),
		HTTPAddr:          env("HTTP_ADDR", ":3002"),
		MetricsAddr:       env("METRICS_ADDR", ""),
		MySQLDSN:          env("MYSQL_DSN", ""),
		RedisAddr:         env("REDIS_ADDR", ""),
		RedisPass:         env("REDIS_PASSWORD", ""),
		RedisDB:           atoi("REDIS_DB", 0),
		CacheTTL:          time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		CobotBaseURL:      env("COBOT_BASE_URL", ""),
		CobotToken:        env("COBOT_ACCESS_TOKEN", ""),
		ChatwootURL:       env("CHATWOOT_API_URL", ""),
		ChatwootAccountID: env("CHATWOOT_ACCOUNT_ID", ""),
		ChatwootToken:     env("CHATWOOT_API_TOKEN", ""),
		ProfileURLBase:    env("PROFILE_URL_BASE", ""),
		Timezone:          env("TIMEZONE", ""),
		Workers:           atoi("SYNC_WORKERS", 1),
		CobotRPS:          atoi("COBOT_RPS", 2),
		ChatwootRPS:       atoi("CHATWOOT_RPS", 5),
		MemberPageSize:    atoi("SYNC_MEMBER_PAGE_SIZE", 200),
		InvoicePageSize:   atoi("SYNC_INVOICE_PAGE_SIZE", 5000),
		SyncInterval:      time.Duration(atoi("SYNC_INTERVAL_MS", 2000)) * time.Millisecond,
	}
}

// Validate enforces the variables both remote clients cannot run without.
func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"COBOT_BASE_URL", c.CobotBaseURL},
		{"COBOT_ACCESS_TOKEN", c.CobotToken},
		{"CHATWOOT_API_URL", c.ChatwootURL},
		{"CHATWOOT_ACCOUNT_ID", c.ChatwootAccountID},
		{"CHATWOOT_API_TOKEN", c.ChatwootToken},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required environment variable %s", r.name)
		}
	}
	return nil
}

// Location resolves the configured timezone, falling back to local time on
// unknown names.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
