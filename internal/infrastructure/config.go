package infrastructure

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Sources   SourcesConfig
	Stats     StatsConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Environment    string
	AllowedOrigins []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	SecretKey          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// SourcesConfig holds the upstream contest listing endpoints
type SourcesConfig struct {
	CodeforcesURL string
	AtCoderURL    string
	LeetCodeURL   string
	CodeChefURL   string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// StatsConfig holds the per-user statistics endpoints
type StatsConfig struct {
	CodeforcesBaseURL  string
	AtCoderBaseURL     string
	LeetCodeGraphQLURL string
	CodeChefBaseURL    string
	Timeout            time.Duration
}

// SchedulerConfig controls the reminder job
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

// NotifyConfig holds delivery transport credentials. Empty credentials leave
// the matching channel unregistered.
type NotifyConfig struct {
	EmailUser     string
	EmailPass     string
	SMTPHost      string
	SMTPPort      int
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	TwilioBaseURL string
	SMSDevLog     bool
}

// RedisConfig enables the shared scheduler lock when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	Environment     string
	OTLPEndpoint    string
	MetricsEndpoint string
	SampleRatio     float64
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 5000),
			ReadTimeout:  getEnvSeconds("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvSeconds("SERVER_WRITE_TIMEOUT", 30),
			Environment:  environment,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "contest_radar"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvSeconds("DB_CONN_MAX_LIFETIME", 300),
		},
		JWT: JWTConfig{
			SecretKey:          getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
			AccessTokenExpiry:  time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_MINUTES", 15)) * time.Minute,
			RefreshTokenExpiry: time.Duration(getEnvInt("JWT_REFRESH_EXPIRY_HOURS", 168)) * time.Hour, // 7 days
			Issuer:             getEnv("JWT_ISSUER", "contest-radar"),
		},
		Sources: SourcesConfig{
			CodeforcesURL: getEnv("CODEFORCES_API_URL", ""),
			AtCoderURL:    getEnv("ATCODER_API_URL", ""),
			LeetCodeURL:   getEnv("LEETCODE_API_URL", ""),
			CodeChefURL:   getEnv("CODECHEF_API_URL", ""),
			Timeout:       getEnvSeconds("SOURCE_TIMEOUT_SECONDS", 10),
			CacheTTL:      time.Duration(getEnvInt("CONTEST_CACHE_TTL_MINUTES", 60)) * time.Minute,
		},
		Stats: StatsConfig{
			CodeforcesBaseURL:  getEnv("CODEFORCES_BASE_URL", "https://codeforces.com"),
			AtCoderBaseURL:     getEnv("ATCODER_BASE_URL", "https://atcoder.jp"),
			LeetCodeGraphQLURL: getEnv("LEETCODE_GRAPHQL_URL", "https://leetcode.com/graphql"),
			CodeChefBaseURL:    getEnv("CODECHEF_BASE_URL", "https://www.codechef.com"),
			Timeout:            getEnvSeconds("STATS_TIMEOUT_SECONDS", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvBool("SCHEDULER_ENABLED", true),
			Interval: time.Duration(getEnvInt("SCHEDULER_INTERVAL_MINUTES", 60)) * time.Minute,
			LockTTL:  time.Duration(getEnvInt("SCHEDULER_LOCK_TTL_MINUTES", 50)) * time.Minute,
		},
		Notify: NotifyConfig{
			EmailUser:     getEnv("EMAIL_USER", ""),
			EmailPass:     getEnv("EMAIL_PASS", ""),
			SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			TwilioSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:    getEnv("TWILIO_PHONE_NUMBER", ""),
			TwilioBaseURL: getEnv("TWILIO_API_URL", "https://api.twilio.com"),
			SMSDevLog:     getEnvBool("SMS_DEV_LOG", environment != "production"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:         getEnvBool("TELEMETRY_ENABLED", true),
			ServiceName:     getEnv("SERVICE_NAME", "contest-radar-api"),
			ServiceVersion:  getEnv("SERVICE_VERSION", "1.0.0"),
			Environment:     environment,
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318"),
			MetricsEndpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
			SampleRatio:     getEnvFloat("OTEL_SAMPLE_RATIO", 0.1),
		},
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// EmailEnabled reports whether SMTP credentials are present
func (c *NotifyConfig) EmailEnabled() bool {
	return c.EmailUser != "" && c.EmailPass != ""
}

// TwilioEnabled reports whether Twilio credentials are present
func (c *NotifyConfig) TwilioEnabled() bool {
	return c.TwilioSID != "" && c.TwilioToken != "" && c.TwilioFrom != ""
}
