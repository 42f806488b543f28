package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Mail         MailConfig
	Classifier   ClassifierConfig
	Escalation   EscalationConfig
	Notification NotificationConfig
	NATS         NATSConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	RunScheduler          bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	AppName        string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr selects the
// in-process lock and inbox.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	KeyPrefix      string
	LockTTLSeconds int
}

// LoggerConfig configures logging behavior. Service and Env are stamped on
// every record so worker and API output can be told apart.
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
	Env     string
}

// MailConfig controls mailbox polling and intake normalisation.
type MailConfig struct {
	Mailboxes              []string
	PollIntervalSeconds    int
	FetchLimit             int
	MaxConcurrentMailboxes int
	SubjectMaxLength       int
	BodyMaxLength          int
}

// ClassifierConfig points at the rule file and the decision gate thresholds.
type ClassifierConfig struct {
	RulesFile          string
	SecondaryThreshold float64
	GenericThreshold   float64
}

// EscalationConfig drives planning and dispatch.
type EscalationConfig struct {
	ContactsFile            string
	InternalEmails          []string
	InternalNumbers         []string
	WindowMinutes           []int
	LowIntervalMinutes      int
	EmailMaxRetries         int
	SMSMaxRetries           int
	SMSEnabled              bool
	RetryBackoffMinutes     int
	DispatchIntervalSeconds int
	DispatchPauseMillis     int
	BatchSize               int
	CompanyName             string
}

// NotificationConfig holds sender settings.
type NotificationConfig struct {
	EmailFrom        string
	SendConfirmation bool
}

// NATSConfig enables the event relay when URL is set.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	ClientName    string
}

// TelemetryConfig enables OTLP metric export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint              string
	Insecure              bool
	ExportIntervalSeconds int
}

var defaultWindowMinutes = []int{15, 60, 240}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))
	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 60)

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "aviation-mailbot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			RunScheduler:          getEnvAsBool("RUN_SCHEDULER", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			AppName:        getEnv("APP_NAME", "aviation-mailbot"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			KeyPrefix:      getEnv("REDIS_KEY_PREFIX", "mailbot"),
			LockTTLSeconds: getEnvAsInt("REDIS_LOCK_TTL_SECONDS", 120),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("APP_NAME", "aviation-mailbot"),
			Env:     getEnv("APP_ENV", "development"),
		},
		Mail: MailConfig{
			Mailboxes:              getEnvAsList("MAILBOXES", []string{"service"}),
			PollIntervalSeconds:    pollSeconds,
			FetchLimit:             getEnvAsInt("MAIL_FETCH_LIMIT", 50),
			MaxConcurrentMailboxes: getEnvAsInt("MAIL_MAX_CONCURRENT_MAILBOXES", 4),
			SubjectMaxLength:       getEnvAsInt("MAIL_SUBJECT_MAX_LENGTH", 200),
			BodyMaxLength:          getEnvAsInt("MAIL_BODY_MAX_LENGTH", 10000),
		},
		Classifier: ClassifierConfig{
			RulesFile:          os.Getenv("CLASSIFIER_RULES_FILE"),
			SecondaryThreshold: getEnvAsFloat("CLASSIFIER_SECONDARY_THRESHOLD", 0.7),
			GenericThreshold:   getEnvAsFloat("CLASSIFIER_GENERIC_THRESHOLD", 0.8),
		},
		Escalation: EscalationConfig{
			ContactsFile:            os.Getenv("ESCALATION_CONTACTS_FILE"),
			InternalEmails:          getEnvAsList("ESCALATION_INTERNAL_EMAILS", nil),
			InternalNumbers:         getEnvAsList("ESCALATION_INTERNAL_NUMBERS", nil),
			WindowMinutes:           parseWindows(os.Getenv("ESCALATION_WINDOW_MINUTES")),
			LowIntervalMinutes:      getEnvAsInt("ESCALATION_LOW_INTERVAL_MINUTES", 480),
			EmailMaxRetries:         getEnvAsInt("ESCALATION_EMAIL_MAX_RETRIES", 3),
			SMSMaxRetries:           getEnvAsInt("ESCALATION_SMS_MAX_RETRIES", 2),
			SMSEnabled:              getEnvAsBool("ESCALATION_SMS_ENABLED", false),
			RetryBackoffMinutes:     getEnvAsInt("ESCALATION_RETRY_BACKOFF_MINUTES", 5),
			DispatchIntervalSeconds: getEnvAsInt("ESCALATION_DISPATCH_INTERVAL_SECONDS", pollSeconds/2),
			DispatchPauseMillis:     getEnvAsInt("ESCALATION_DISPATCH_PAUSE_MILLIS", 500),
			BatchSize:               getEnvAsInt("ESCALATION_BATCH_SIZE", 100),
			CompanyName:             getEnv("COMPANY_NAME", "Embassy Aviation"),
		},
		Notification: NotificationConfig{
			EmailFrom:        getEnv("NOTIFY_EMAIL_FROM", "noreply@embassy-aviation.com"),
			SendConfirmation: getEnvAsBool("NOTIFY_SEND_CONFIRMATION", true),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "mailbot.events"),
			ClientName:    getEnv("NATS_CLIENT_NAME", "aviation-mailbot"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:              os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:              getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ExportIntervalSeconds: getEnvAsInt("OTEL_METRIC_EXPORT_INTERVAL_SECONDS", 30),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PollInterval is the mailbox polling period.
func (m MailConfig) PollInterval() time.Duration {
	if m.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// LockTTL bounds how long a crashed worker can hold a lock.
func (r RedisConfig) LockTTL() time.Duration {
	if r.LockTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// Interval returns the spacing between consecutive escalation contacts.
func (e EscalationConfig) Interval(p domain.Priority) time.Duration {
	windows := e.WindowMinutes
	if len(windows) != 3 {
		windows = defaultWindowMinutes
	}
	switch p {
	case domain.PriorityCritical:
		return time.Duration(windows[0]) * time.Minute
	case domain.PriorityHigh:
		return time.Duration(windows[1]) * time.Minute
	case domain.PriorityLow:
		if e.LowIntervalMinutes > 0 {
			return time.Duration(e.LowIntervalMinutes) * time.Minute
		}
		return 480 * time.Minute
	default:
		return time.Duration(windows[2]) * time.Minute
	}
}

// RetryBackoff is the fixed delay before a failed step is retried.
func (e EscalationConfig) RetryBackoff() time.Duration {
	if e.RetryBackoffMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(e.RetryBackoffMinutes) * time.Minute
}

// DispatchInterval is the escalation loop period, at least one second.
func (e EscalationConfig) DispatchInterval() time.Duration {
	if e.DispatchIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(e.DispatchIntervalSeconds) * time.Second
}

// DispatchPause is the gap between two sends in one dispatch cycle.
func (e EscalationConfig) DispatchPause() time.Duration {
	if e.DispatchPauseMillis < 0 {
		return 0
	}
	return time.Duration(e.DispatchPauseMillis) * time.Millisecond
}

// parseWindows reads "15,60,240"; anything malformed yields the defaults.
func parseWindows(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return append([]int(nil), defaultWindowMinutes...)
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return append([]int(nil), defaultWindowMinutes...)
	}
	out := make([]int, 0, 3)
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			return append([]int(nil), defaultWindowMinutes...)
		}
		out = append(out, v)
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
