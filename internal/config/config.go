package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string
	DBSSLMode  string

	// Zoom
	ZoomKey      string
	ZoomSecret   string
	ZoomBaseURL  string
	ZoomPageSize int
	ZoomTimeout  time.Duration
	ZoomSecretID string

	// Entity toggles
	SyncUsers    bool
	SyncAccounts bool
	SyncMeetings bool

	// Engine
	RetryAttempts     int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	ThrottlePause     time.Duration
	BulkThrottlePause time.Duration
	MeetingWindowDays int
	Timezone          string
	StudentGroup      string

	// Logging and notification
	Debug        bool
	LogFile      string
	LogRetention time.Duration
	SentryDSN    string
	Environment  string

	MailEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailTo       string

	// Raw page archive
	ArchiveBucket string
	ArchivePrefix string

	// Ops server
	Port           string
	AdminJWTSecret string
	RunInterval    time.Duration
	CORSOrigins    string
}

func Load() *Config {
	return &Config{
		DBType:     strings.ToLower(getEnv("DB_TYPE", "postgres")),
		DBHost:     getEnv("DB_SERVER", "localhost"),
		DBPort:     getEnv("DB_PORT", ""),
		DBName:     getEnv("DB", "zoom"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PWD", ""),
		DBSchema:   getEnv("DB_SCHEMA", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ZoomKey:      getEnv("ZOOM_KEY", ""),
		ZoomSecret:   getEnv("ZOOM_SECRET", ""),
		ZoomBaseURL:  getEnv("ZOOM_BASE_URL", "https://api.zoom.us/v2"),
		ZoomPageSize: parseInt(getEnv("ZOOM_PAGE_SIZE", "300"), 300),
		ZoomTimeout:  parseDuration(getEnv("ZOOM_TIMEOUT", "30s"), 30*time.Second),
		ZoomSecretID: getEnv("ZOOM_SECRET_ID", ""),

		SyncUsers:    parseBool(getEnv("SYNC_USERS", "true")),
		SyncAccounts: parseBool(getEnv("SYNC_ACCOUNTS", "false")),
		SyncMeetings: parseBool(getEnv("SYNC_MEETINGS", "true")),

		RetryAttempts:     parseInt(getEnv("RETRY_ATTEMPTS", "3"), 3),
		RetryInitial:      parseDuration(getEnv("RETRY_INITIAL", "4s"), 4*time.Second),
		RetryMax:          parseDuration(getEnv("RETRY_MAX", "10s"), 10*time.Second),
		ThrottlePause:     parseDuration(getEnv("THROTTLE_PAUSE", "10s"), 10*time.Second),
		BulkThrottlePause: parseDuration(getEnv("BULK_THROTTLE_PAUSE", "60s"), 60*time.Second),
		MeetingWindowDays: parseInt(getEnv("MEETING_WINDOW_DAYS", "30"), 30),
		Timezone:          getEnv("TIMEZONE", "America/Los_Angeles"),
		StudentGroup:      getEnv("STUDENT_GROUP", "Students"),

		Debug:        parseBool(getEnv("DEBUG_MODE", "false")),
		LogFile:      getEnv("LOG_FILE", ""),
		LogRetention: parseDuration(getEnv("LOG_RETENTION", "720h"), 30*24*time.Hour),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		Environment:  getEnv("APP_ENV", "production"),

		MailEnabled:  parseBool(getEnv("ENABLE_MAILER", "false")),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     parseInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PWD", ""),
		MailFrom:     getEnv("MAIL_FROM", ""),
		MailTo:       getEnv("MAIL_TO", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		ArchivePrefix: getEnv("ARCHIVE_PREFIX", "zoom"),

		Port:           getEnv("PORT", "8080"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		RunInterval:    parseDuration(getEnv("RUN_INTERVAL", "0"), 0),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
	}
}

// Validate reports every setting that cannot produce a working run.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBType {
	case "postgres", "mssql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_TYPE %q is not one of postgres, mssql, sqlite", c.DBType))
	}
	if c.ZoomKey == "" || c.ZoomSecret == "" {
		errs = append(errs, errors.New("ZOOM_KEY and ZOOM_SECRET are required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be at least 1"))
	}
	if c.MeetingWindowDays < 1 {
		errs = append(errs, errors.New("MEETING_WINDOW_DAYS must be at least 1"))
	}
	if c.MailEnabled && (c.SMTPHost == "" || c.MailTo == "" || c.MailFrom == "") {
		errs = append(errs, errors.New("ENABLE_MAILER requires SMTP_HOST, MAIL_FROM and MAIL_TO"))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the connection string for the configured dialect. For sqlite
// DB names the database file.
func (c *Config) DSN() string {
	switch c.DBType {
	case "mssql":
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     c.DBHost + ":" + c.port("1433"),
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	case "sqlite":
		return c.DBName
	default:
		return "host=" + c.DBHost +
			" user=" + c.DBUser +
			" password=" + c.DBPassword +
			" dbname=" + c.DBName +
			" port=" + c.port("5432") +
			" sslmode=" + c.DBSSLMode +
			" TimeZone=UTC"
	}
}

func (c *Config) port(fallback string) string {
	if c.DBPort != "" {
		return c.DBPort
	}
	return fallback
}

// MailRecipients splits MAIL_TO on commas.
func (c *Config) MailRecipients() []string {
	var out []string
	for _, addr := range strings.Split(c.MailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// parseBool accepts the forms the old deployment used ("1", "0") as well as
// strconv's.
func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
