package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "DVDSTORE"
	defaultHTTPAddress = "0.0.0.0:3000"
	defaultDBDriver    = "sqlite"
	defaultDBDSN       = "dvdstore.db"
	defaultBrokerURL   = "amqp://localhost"
	defaultReplicaURI  = "mongodb://127.0.0.1:27017"
	defaultReplicaDB   = "crud_db"
	defaultCacheAddr   = "localhost:6379"
	defaultCacheTTL    = time.Hour
	defaultLogLevel    = "info"
)

// DriverSQLite and DriverMySQL are the accepted record-store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// AppConfig captures runtime configuration for the API server and the
// replication consumers.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabaseDSN     string
	BrokerURL       string
	ReplicaURI      string
	ReplicaDatabase string
	CacheAddress    string
	CachePassword   string
	CacheTTL        time.Duration
	LogLevel        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDBDriver)
	configViper.SetDefault("database.dsn", defaultDBDSN)
	configViper.SetDefault("broker.url", defaultBrokerURL)
	configViper.SetDefault("replica.uri", defaultReplicaURI)
	configViper.SetDefault("replica.database", defaultReplicaDB)
	configViper.SetDefault("cache.address", defaultCacheAddr)
	configViper.SetDefault("cache.password", "")
	configViper.SetDefault("cache.ttl", defaultCacheTTL)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabaseDriver:  configViper.GetString("database.driver"),
		DatabaseDSN:     configViper.GetString("database.dsn"),
		BrokerURL:       configViper.GetString("broker.url"),
		ReplicaURI:      configViper.GetString("replica.uri"),
		ReplicaDatabase: configViper.GetString("replica.database"),
		CacheAddress:    configViper.GetString("cache.address"),
		CachePassword:   configViper.GetString("cache.password"),
		CacheTTL:        configViper.GetDuration("cache.ttl"),
		LogLevel:        configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.BrokerURL) == "" {
		return fmt.Errorf("broker.url is required")
	}
	if strings.TrimSpace(c.ReplicaURI) == "" {
		return fmt.Errorf("replica.uri is required")
	}
	if strings.TrimSpace(c.ReplicaDatabase) == "" {
		return fmt.Errorf("replica.database is required")
	}
	if strings.TrimSpace(c.CacheAddress) == "" {
		return fmt.Errorf("cache.address is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}
