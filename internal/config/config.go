package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	cfg *APIConfig
	mu  sync.RWMutex
)

// APIConfig represents the root element.
type APIConfig struct {
	XMLName        xml.Name             `xml:"API"`
	RequestDump    bool                 `xml:"REQUEST_DUMP,attr"`
	Context        ContextConfig        `xml:"CONTEXT"`
	Authentication AuthenticationConfig `xml:"AUTHENTICATION"`
	Pagination     PaginationConfig     `xml:"PAGINATION"`
	DB             DBConfig             `xml:"DB"`
	Redis          RedisConfig          `xml:"REDIS"`
	Learning       LearningConfig       `xml:"LEARNING"`
	Session        SessionConfig        `xml:"SESSION"`
	Logging        LoggingConfig        `xml:"LOGGING"`
	Tracing        TracingConfig        `xml:"TRACING"`
	RateLimit      RateLimitConfig      `xml:"RATE_LIMIT"`
}

// ContextConfig holds basic server settings.
type ContextConfig struct {
	Port     int    `xml:"PORT"`
	Host     string `xml:"HOST"`
	Path     string `xml:"PATH"`
	TimeZone string `xml:"TIME_ZONE"`
	// ShutdownTimeout is in seconds.
	ShutdownTimeout int `xml:"SHUTDOWN_TIMEOUT"`
}

// AuthenticationConfig holds authentication settings.
type AuthenticationConfig struct {
	EnableTokenAuth bool   `xml:"ENABLE_TOKEN_AUTH"`
	AccessSecret    string `xml:"ACCESS_SECRET"`
	RefreshSecret   string `xml:"REFRESH_SECRET"`
	// Access token lifetime in minutes; refresh token lifetime in hours.
	AccessTTL  int `xml:"ACCESS_TTL"`
	RefreshTTL int `xml:"REFRESH_TTL"`
	// ClientKey is the bcrypt hash a client must match to be issued tokens.
	ClientKeyHash string `xml:"CLIENT_KEY_HASH"`
}

// PaginationConfig holds pagination settings.
type PaginationConfig struct {
	PageSize int `xml:"PAGE_SIZE"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Initialize bool         `xml:"INITIALIZE"`
	Driver     string       `xml:"DRIVER"`
	DSN        string       `xml:"DSN"`
	Host       string       `xml:"HOST"`
	Port       int          `xml:"PORT"`
	SSLMode    string       `xml:"SSL_MODE"`
	Names      DBNames      `xml:"NAMES"`
	Username   string       `xml:"USERNAME"`
	Password   DBPassword   `xml:"PASSWORD"`
	Pool       DBPoolConfig `xml:"POOL"`
}

// DBNames holds the names defined in the DB section.
type DBNames struct {
	Quiz string `xml:"QUIZ,attr"`
}

// DBPassword holds password details.
type DBPassword struct {
	Type  string `xml:"TYPE,attr"`
	Value string `xml:",chardata"`
}

// DBPoolConfig holds database connection pooling settings.
type DBPoolConfig struct {
	MaxOpenConns    int `xml:"MAX_OPEN_CONNS"`
	MaxIdleConns    int `xml:"MAX_IDLE_CONNS"`
	ConnMaxLifetime int `xml:"CONN_MAX_LIFETIME"`
}

// RedisConfig is optional. An empty Addr keeps session state and locks
// inside the database and the process.
type RedisConfig struct {
	Addr     string `xml:"ADDR"`
	Password string `xml:"PASSWORD"`
	DB       int    `xml:"DB"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// LearningConfig drives grading, progression and assessments.
type LearningConfig struct {
	MinLevel         int    `xml:"MIN_LEVEL"`
	MaxLevel         int    `xml:"MAX_LEVEL"`
	DefaultLevel     int    `xml:"DEFAULT_LEVEL"`
	DefaultTopic     string `xml:"DEFAULT_TOPIC"`
	AssessmentLength int    `xml:"ASSESSMENT_LENGTH"`
	StreakThreshold  int    `xml:"STREAK_THRESHOLD"`
	PromotionMode    string `xml:"PROMOTION_MODE"`
	RecentExclude    int    `xml:"RECENT_EXCLUDE"`
	// AssessmentIdleExpiry is in minutes; 0 disables expiry.
	AssessmentIdleExpiry int `xml:"ASSESSMENT_IDLE_EXPIRY_MINUTES"`
}

// SessionConfig covers the practice session store.
type SessionConfig struct {
	// Store is "db" or "redis".
	Store string `xml:"STORE"`
	// TTL is in minutes.
	TTL int `xml:"TTL"`
}

type LoggingConfig struct {
	Mode       string `xml:"MODE"`
	Dir        string `xml:"DIR"`
	MaxSizeMB  int    `xml:"MAX_SIZE_MB"`
	MaxBackups int    `xml:"MAX_BACKUPS"`
	MaxAgeDays int    `xml:"MAX_AGE_DAYS"`
}

type TracingConfig struct {
	// Exporter is "none", "stdout" or "otlphttp".
	Exporter    string  `xml:"EXPORTER"`
	Endpoint    string  `xml:"ENDPOINT"`
	ServiceName string  `xml:"SERVICE_NAME"`
	SampleRatio float64 `xml:"SAMPLE_RATIO"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `xml:"RPS"`
	Burst             int     `xml:"BURST"`
}

// Default returns a configuration that runs locally against SQLite.
func Default() *APIConfig {
	c := &APIConfig{}
	c.applyDefaults()
	return c
}

// Parse decodes an XML document, then applies defaults and environment overrides.
func Parse(data []byte) (*APIConfig, error) {
	var c APIConfig
	if err := xml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// LoadConfig loads and parses the XML configuration from the given file and
// makes it the process-wide configuration.
func LoadConfig(xmlPath string) (*APIConfig, error) {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", xmlPath, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	SetConfig(c)
	return c, nil
}

// FromEnv builds a configuration from defaults and environment variables only.
func FromEnv() *APIConfig {
	c := Default()
	c.applyEnvOverrides()
	SetConfig(c)
	return c
}

// GetConfig returns the loaded configuration.
func GetConfig() *APIConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

func SetConfig(c *APIConfig) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

func (c *APIConfig) applyDefaults() {
	if c.Context.Port == 0 {
		c.Context.Port = 8080
	}
	if c.Context.Host == "" {
		c.Context.Host = "0.0.0.0"
	}
	if c.Context.ShutdownTimeout == 0 {
		c.Context.ShutdownTimeout = 10
	}
	if c.Authentication.AccessTTL == 0 {
		c.Authentication.AccessTTL = 15
	}
	if c.Authentication.RefreshTTL == 0 {
		c.Authentication.RefreshTTL = 24 * 7
	}
	if c.Pagination.PageSize == 0 {
		c.Pagination.PageSize = 20
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.DSN == "" {
		c.DB.DSN = "quizcoach.db"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.DB.Pool.MaxOpenConns == 0 {
		c.DB.Pool.MaxOpenConns = 10
	}
	if c.DB.Pool.MaxIdleConns == 0 {
		c.DB.Pool.MaxIdleConns = 5
	}
	if c.DB.Pool.ConnMaxLifetime == 0 {
		c.DB.Pool.ConnMaxLifetime = 30
	}

	l := &c.Learning
	if l.MinLevel == 0 {
		l.MinLevel = 1
	}
	if l.MaxLevel == 0 {
		l.MaxLevel = 10
	}
	if l.DefaultLevel == 0 {
		l.DefaultLevel = 3
	}
	if l.DefaultTopic == "" {
		l.DefaultTopic = "vocabulary"
	}
	if l.AssessmentLength == 0 {
		l.AssessmentLength = 5
	}
	if l.StreakThreshold == 0 {
		l.StreakThreshold = 5
	}
	if l.PromotionMode == "" {
		l.PromotionMode = "immediate"
	}
	if l.RecentExclude == 0 {
		l.RecentExclude = 10
	}

	if c.Session.Store == "" {
		c.Session.Store = "db"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 60
	}

	if c.Logging.Mode == "" {
		c.Logging.Mode = "dev"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 28
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "quizcoach-backend"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}

	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}

// applyEnvOverrides lets QUIZ_* variables (usually from .env) win over the file.
func (c *APIConfig) applyEnvOverrides() {
	envString("QUIZ_HOST", &c.Context.Host)
	envInt("QUIZ_PORT", &c.Context.Port)
	envBool("QUIZ_REQUEST_DUMP", &c.RequestDump)

	envBool("QUIZ_ENABLE_TOKEN_AUTH", &c.Authentication.EnableTokenAuth)
	envString("QUIZ_ACCESS_SECRET", &c.Authentication.AccessSecret)
	envString("QUIZ_REFRESH_SECRET", &c.Authentication.RefreshSecret)
	envString("QUIZ_CLIENT_KEY_HASH", &c.Authentication.ClientKeyHash)

	envString("QUIZ_DB_DRIVER", &c.DB.Driver)
	envString("QUIZ_DB_DSN", &c.DB.DSN)
	envString("QUIZ_DB_HOST", &c.DB.Host)
	envInt("QUIZ_DB_PORT", &c.DB.Port)
	envString("QUIZ_DB_USER", &c.DB.Username)
	envString("QUIZ_DB_PASSWORD", &c.DB.Password.Value)
	envString("QUIZ_DB_NAME", &c.DB.Names.Quiz)

	envString("QUIZ_REDIS_ADDR", &c.Redis.Addr)
	envString("QUIZ_REDIS_PASSWORD", &c.Redis.Password)
	envInt("QUIZ_REDIS_DB", &c.Redis.DB)

	envString("QUIZ_DEFAULT_TOPIC", &c.Learning.DefaultTopic)
	envInt("QUIZ_ASSESSMENT_LENGTH", &c.Learning.AssessmentLength)
	envString("QUIZ_PROMOTION_MODE", &c.Learning.PromotionMode)
	envInt("QUIZ_ASSESSMENT_IDLE_EXPIRY_MINUTES", &c.Learning.AssessmentIdleExpiry)

	envString("QUIZ_SESSION_STORE", &c.Session.Store)
	envString("QUIZ_LOG_MODE", &c.Logging.Mode)
	envString("QUIZ_LOG_DIR", &c.Logging.Dir)
	envString("QUIZ_TRACING_EXPORTER", &c.Tracing.Exporter)
	envString("QUIZ_OTLP_ENDPOINT", &c.Tracing.Endpoint)
}

// Validate reports settings the service cannot start with.
func (c *APIConfig) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB driver %q", c.DB.Driver)
	}
	if c.Learning.MinLevel < 1 || c.Learning.MaxLevel < c.Learning.MinLevel {
		return fmt.Errorf("invalid level range [%d, %d]", c.Learning.MinLevel, c.Learning.MaxLevel)
	}
	if c.Learning.AssessmentLength < 1 {
		return fmt.Errorf("assessment length must be positive, got %d", c.Learning.AssessmentLength)
	}
	switch c.Session.Store {
	case "db":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("session store %q needs REDIS/ADDR", c.Session.Store)
		}
	default:
		return fmt.Errorf("unsupported session store %q", c.Session.Store)
	}
	if c.Authentication.EnableTokenAuth && c.Authentication.AccessSecret == "" {
		return fmt.Errorf("token auth enabled without ACCESS_SECRET")
	}
	return nil
}

// PostgresDSN assembles a DSN from the discrete DB fields when DSN is empty.
func (c *APIConfig) PostgresDSN() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	port := c.DB.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, port, c.DB.Username, c.DB.Password.Value, c.DB.Names.Quiz, c.DB.SSLMode)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
