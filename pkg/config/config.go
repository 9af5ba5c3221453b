package config

import "time"

// Store backends
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Consistency modes of the document store
const (
	ConsistencyLastWriteWins = "last_write_wins"
	ConsistencyOptimistic    = "optimistic"
)

// Message id modes
const (
	MessageIDUnique = "unique"
	MessageIDCompat = "compat"
)

// Chat definition chat_service YAML structure
type Chat struct {
	Port string `mapstructure:"port"`

	// Store memory | mongo
	Store string `mapstructure:"store"`
	// Consistency last_write_wins | optimistic
	Consistency string `mapstructure:"consistency"`
	// MessageID unique | compat
	MessageID string `mapstructure:"message_id"`
	// TimeZone used to format message dates, IANA name
	TimeZone string `mapstructure:"time_zone"`
	// StopOnSenderFailure skip the recipient summary when the sender one failed
	StopOnSenderFailure bool `mapstructure:"stop_on_sender_failure"`

	MongoSQL  DatabaseConfig  `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
	// Addr single node address, sentinel settings from .env win when present
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	Collection    string `mapstructure:"collection"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition blob storage setting
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	RetryInterval int           `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// RateLimitConfig definition per session request limit
type RateLimitConfig struct {
	PerMinute       int           `mapstructure:"per_minute"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SetDefaults fill the zero values
func (c *Chat) SetDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.Consistency == "" {
		c.Consistency = ConsistencyLastWriteWins
	}
	if c.MessageID == "" {
		c.MessageID = MessageIDUnique
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.MongoSQL.Collection == "" {
		c.MongoSQL.Collection = "documents"
	}
	if c.MinIO.URLExpiry == 0 {
		c.MinIO.URLExpiry = 24 * time.Hour
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = 120
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.CleanupInterval == 0 {
		c.RateLimit.CleanupInterval = time.Minute
	}
}

// Location load the configured time zone
func (c *Chat) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}
