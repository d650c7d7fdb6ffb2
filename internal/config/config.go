package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendSupabase}

type Config struct {
	// HTTP server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	StoreTimeout time.Duration

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Presentation
	Locale          string
	DefaultCurrency string

	// AMQP; an empty URL disables ledger events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger mirror
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	MirrorInterval           time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Rate limits per client per minute
	RateLimitPerMinute     int
	AuthRateLimitPerMinute int

	// Demo data for the memory backend
	SeedDemo         bool
	SeedDemoEmail    string
	SeedDemoPassword string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 7*time.Second),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),

		Locale:          getEnv("LOCALE", "en-US"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_mirror"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		MirrorInterval:           getEnvDuration("MIRROR_INTERVAL", 15*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RateLimitPerMinute:     getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AuthRateLimitPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 10),

		SeedDemo:         getEnvBool("SEED_DEMO", false),
		SeedDemoEmail:    getEnv("SEED_DEMO_EMAIL", "demo@fintrack.local"),
		SeedDemoPassword: getEnv("SEED_DEMO_PASSWORD", "demo1234"),
	}
}

// Validate checks the settings the web server needs and reports every
// problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
		}
	case BackendSupabase:
		problems = append(problems, c.validateSupabase()...)
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.StoreTimeout < 100*time.Millisecond || c.StoreTimeout > 2*time.Minute {
		problems = append(problems, fmt.Sprintf("invalid store timeout %v: must be between 100ms and 2m", c.StoreTimeout))
	}

	if c.SessionSecret == "" {
		if c.DataBackend != BackendMemory {
			problems = append(problems, "SESSION_SECRET is required unless using the memory backend")
		}
	} else if len(c.SessionSecret) < 32 {
		problems = append(problems, "SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if _, err := language.Parse(c.Locale); err != nil {
		problems = append(problems, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}
	if len(c.DefaultCurrency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid default currency '%s': must be an ISO 4217 code", c.DefaultCurrency))
	}

	problems = append(problems, c.validateAMQP()...)

	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}
	if c.RateLimitPerMinute < 1 || c.AuthRateLimitPerMinute < 1 {
		problems = append(problems, "rate limits must be at least 1 request per minute")
	}
	if c.SeedDemo && c.DataBackend != BackendMemory {
		problems = append(problems, "SEED_DEMO is only supported with the memory backend")
	}

	return combine(problems)
}

// ValidateWorker checks the settings the ledger mirror worker needs.
func (c *Config) ValidateWorker() error {
	var problems []string

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
		}
	case BackendSupabase:
		problems = append(problems, c.validateSupabase()...)
		if c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_SERVICE_KEY is required by the mirror worker")
		}
	default:
		problems = append(problems, fmt.Sprintf("mirror worker needs a persistent backend, got '%s'", c.DataBackend))
	}

	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required by the mirror worker")
	}
	problems = append(problems, c.validateAMQP()...)

	if c.GoogleSpreadsheetID == "" {
		problems = append(problems, "GOOGLE_SPREADSHEET_ID is required by the mirror worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		problems = append(problems, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); err != nil {
			problems = append(problems, fmt.Sprintf("service account file not readable: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.MirrorInterval < time.Minute || c.MirrorInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid mirror interval %v: must be between 1m and 24h", c.MirrorInterval))
	}

	return combine(problems)
}

func (c *Config) validateSupabase() []string {
	var problems []string
	if u, err := url.Parse(c.SupabaseURL); err != nil || c.SupabaseURL == "" || (u.Scheme != "https" && u.Scheme != "http") {
		problems = append(problems, fmt.Sprintf("invalid SUPABASE_URL '%s': must be an http(s) URL", c.SupabaseURL))
	}
	if c.SupabaseAnonKey == "" {
		problems = append(problems, "SUPABASE_ANON_KEY is required when using the supabase backend")
	}
	return problems
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var problems []string
	if u, err := url.Parse(c.AMQPURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
	}
	if c.AMQPExchange == "" {
		problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return problems
}

func combine(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
