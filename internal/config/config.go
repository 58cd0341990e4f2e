package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Vendor    VendorConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Campaign  CampaignConfig
	LogLevel  string
	LogFormat string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	PublicURL    string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// StorageConfig selects the repository implementation
type StorageConfig struct {
	Driver string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int // seconds
}

// VendorConfig holds messaging vendor configuration. SendURL and
// CallbackURL default to this server's own stub vendor and webhook.
type VendorConfig struct {
	SendURL        string
	CallbackURL    string
	TimeoutSeconds int
	MaxInFlight    int
	SuccessRate    float64
	MinLatencyMs   int
	MaxLatencyMs   int
}

// RedisConfig holds Redis connection settings used by the rate limiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds fixed-window rate limit settings
type RateLimitConfig struct {
	Enabled       bool
	Requests      int
	WindowSeconds int
}

// CampaignConfig holds campaign dispatch settings
type CampaignConfig struct {
	DispatchOnCreate bool
	MaxRuleDepth     int
}

// Load loads configuration from defaults, an optional config file and
// environment variables. An empty path searches for config.yaml in the
// working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default values for configuration. Every key needs a
// default so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.PublicURL", "")
	v.SetDefault("Server.AllowedHosts", []string{"http://localhost:3000"})
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "crm")
	v.SetDefault("Storage.Driver", StorageMongoDB)
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("Vendor.SendURL", "")
	v.SetDefault("Vendor.CallbackURL", "")
	v.SetDefault("Vendor.TimeoutSeconds", 10)
	v.SetDefault("Vendor.MaxInFlight", 64)
	v.SetDefault("Vendor.SuccessRate", 0.9)
	v.SetDefault("Vendor.MinLatencyMs", 1000)
	v.SetDefault("Vendor.MaxLatencyMs", 2000)
	v.SetDefault("Redis.Addr", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("RateLimit.Enabled", true)
	v.SetDefault("RateLimit.Requests", 5)
	v.SetDefault("RateLimit.WindowSeconds", 60)
	v.SetDefault("Campaign.DispatchOnCreate", true)
	v.SetDefault("Campaign.MaxRuleDepth", 32)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
}

// BaseURL is the externally reachable address of this server
func (c *Config) BaseURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimRight(c.Server.PublicURL, "/")
	}
	return "http://localhost:" + c.Server.Port
}

// VendorSendURL is where dispatch requests are posted
func (c *Config) VendorSendURL() string {
	if c.Vendor.SendURL != "" {
		return c.Vendor.SendURL
	}
	return c.BaseURL() + "/api/v1/vendor/send"
}

// VendorCallbackURL is the delivery receipt webhook handed to the vendor
func (c *Config) VendorCallbackURL() string {
	if c.Vendor.CallbackURL != "" {
		return c.Vendor.CallbackURL
	}
	return c.BaseURL() + "/api/v1/webhooks/delivery-receipts"
}

// VendorTimeout is the per-request timeout for vendor calls
func (c *Config) VendorTimeout() time.Duration {
	if c.Vendor.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Vendor.TimeoutSeconds) * time.Second
}

// RateLimitWindow is the length of one rate limit window
func (c *Config) RateLimitWindow() time.Duration {
	if c.RateLimit.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
