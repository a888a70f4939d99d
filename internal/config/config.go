package config

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Cache  CacheConfig
	Store  StoreConfig
	Feed   FeedConfig
	Engine EngineConfig
	Geo    GeoConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port        int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	// WriteTimeout of 0 keeps event streams open.
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"fruition-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig selects the notification KV store and change broker.
// "memory" keeps both per process; "redis" shares them between instances.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"fruition"`
}

// StoreConfig holds the relational store settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"STORE_PATH" default:"./data/fruition.db"`

	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"0"`
	Name     string `envconfig:"STORE_NAME" default:"fruition"`
	User     string `envconfig:"STORE_USER" default:""`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`
}

// FeedConfig holds public feed settings. With Redis configured, events
// are buffered there and flushed to the feed repository in batches.
type FeedConfig struct {
	Enabled bool `envconfig:"FEED_ENABLED" default:"true"`
	// Backend is "store" (the relational store) or "mongodb".
	Backend         string        `envconfig:"FEED_BACKEND" default:"store"`
	MongoURI        string        `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string        `envconfig:"MONGODB_DATABASE" default:"fruition"`
	MongoCollection string        `envconfig:"MONGODB_COLLECTION" default:"public_feed"`
	FlushInterval   time.Duration `envconfig:"FEED_FLUSH_INTERVAL" default:"30s"`
}

// EngineConfig holds inventory engine settings.
type EngineConfig struct {
	DefaultTimeZone   string        `envconfig:"DEFAULT_TIME_ZONE" default:"UTC"`
	NotificationLimit int           `envconfig:"NOTIFICATION_LIMIT" default:"50"`
	CheckInterval     time.Duration `envconfig:"EXPIRY_CHECK_INTERVAL" default:"1h"`
	SessionIdle       time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	ReapInterval      time.Duration `envconfig:"SESSION_REAP_INTERVAL" default:"5m"`
	PresenceInterval  time.Duration `envconfig:"PRESENCE_INTERVAL" default:"5m"`
	StreamHeartbeat   time.Duration `envconfig:"STREAM_HEARTBEAT" default:"25s"`
	TokenTTL          time.Duration `envconfig:"STREAM_TOKEN_TTL" default:"10m"`
}

// GeoConfig holds the IP geolocation lookup settings.
type GeoConfig struct {
	Enabled bool          `envconfig:"GEO_ENABLED" default:"false"`
	BaseURL string        `envconfig:"GEO_BASE_URL" default:"https://ipapi.co"`
	Timeout time.Duration `envconfig:"GEO_TIMEOUT" default:"3s"`
}

// AuthConfig holds API keys.
type AuthConfig struct {
	APIKeys   []string `envconfig:"API_KEYS"`
	AdminKeys []string `envconfig:"ADMIN_KEYS"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// UsesRedis reports whether the KV store and broker live in Redis.
func (c *CacheConfig) UsesRedis() bool {
	return c.Type == "redis"
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	port := s.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	port := s.Port
	if port == 0 {
		port = 3306
	}
	c := mysql.NewConfig()
	c.User = s.User
	c.Passwd = s.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", s.Host, port)
	c.DBName = s.Name
	c.ParseTime = true
	return c.FormatDSN()
}

// Location returns the default time zone for profiles without one.
func (e *EngineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.DefaultTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIME_ZONE %q: %w", e.DefaultTimeZone, err)
	}
	return loc, nil
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks cross-field settings.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	switch c.Feed.Backend {
	case "store":
	case "mongodb", "mongo":
		if c.Feed.Enabled && c.Feed.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for FEED_BACKEND=%s", c.Feed.Backend)
		}
	default:
		return fmt.Errorf("unknown FEED_BACKEND %q", c.Feed.Backend)
	}
	if _, err := c.Engine.Location(); err != nil {
		return err
	}
	if c.App.IsProduction() && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("API_KEYS must be set in production")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
