package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ERP        ERPConfig
	Storefront StorefrontConfig
	Sync       SyncConfig
	Notify     NotifyConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver             string // postgres, sqlite
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	Path               string // sqlite file
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int // in minutes
	ConnMaxIdleTime    int // in minutes
	SlowQueryThreshold time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// ERPConfig holds the ERP inventory API settings
type ERPConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	PageSize          int
	MaxPages          int
	MappingLimit      int
	RequestsPerSecond float64
}

// StorefrontConfig holds settings shared by every storefront client
type StorefrontConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	ProductPageSize   int
	MaxProductPages   int
	ProductCacheTTL   time.Duration
}

// SyncConfig holds batch orchestration settings
type SyncConfig struct {
	Enabled         bool
	Interval        time.Duration
	BatchTTL        time.Duration
	MaxStepsPerRun  int
	StepTimeout     time.Duration
	LockTTL         time.Duration
	MappingCacheTTL time.Duration
}

// NotifyConfig holds notification channel settings
type NotifyConfig struct {
	Email EmailConfig
	SNS   SNSConfig
}

// EmailConfig holds SMTP notification settings
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SNSConfig holds AWS SNS notification settings
type SNSConfig struct {
	Enabled         bool
	Region          string
	TopicARN        string
	AccessKeyID     string
	SecretAccessKey string
}

// TelemetryConfig holds OpenTelemetry tracing and metrics settings
type TelemetryConfig struct {
	Enabled               bool
	CollectorEndpoint     string
	SamplingRatio         float64
	Insecure              bool
	DBTracing             bool
	Metrics               bool
	MetricsExportInterval time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with STOCKSYNC_ prefix (e.g., STOCKSYNC_ERP_API_KEY)
// 2. the file at path, or config.toml in the search paths when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/stocksync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOCKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:             v.GetString("database.driver"),
			Host:               v.GetString("database.host"),
			Port:               v.GetInt("database.port"),
			User:               v.GetString("database.user"),
			Password:           v.GetString("database.password"),
			DBName:             v.GetString("database.dbname"),
			SSLMode:            v.GetString("database.sslmode"),
			Path:               v.GetString("database.path"),
			MaxOpenConns:       v.GetInt("database.max_open_conns"),
			MaxIdleConns:       v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime:    v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime:    v.GetInt("database.conn_max_idle_time"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		ERP: ERPConfig{
			BaseURL:           v.GetString("erp.base_url"),
			APIKey:            v.GetString("erp.api_key"),
			Timeout:           v.GetDuration("erp.timeout"),
			PageSize:          v.GetInt("erp.page_size"),
			MaxPages:          v.GetInt("erp.max_pages"),
			MappingLimit:      v.GetInt("erp.mapping_limit"),
			RequestsPerSecond: v.GetFloat64("erp.requests_per_second"),
		},
		Storefront: StorefrontConfig{
			Timeout:           v.GetDuration("storefront.timeout"),
			RequestsPerSecond: v.GetFloat64("storefront.requests_per_second"),
			Burst:             v.GetInt("storefront.burst"),
			ProductPageSize:   v.GetInt("storefront.product_page_size"),
			MaxProductPages:   v.GetInt("storefront.max_product_pages"),
			ProductCacheTTL:   v.GetDuration("storefront.product_cache_ttl"),
		},
		Sync: SyncConfig{
			Enabled:         v.GetBool("sync.enabled"),
			Interval:        v.GetDuration("sync.interval"),
			BatchTTL:        v.GetDuration("sync.batch_ttl"),
			MaxStepsPerRun:  v.GetInt("sync.max_steps_per_run"),
			StepTimeout:     v.GetDuration("sync.step_timeout"),
			LockTTL:         v.GetDuration("sync.lock_ttl"),
			MappingCacheTTL: v.GetDuration("sync.mapping_cache_ttl"),
		},
		Notify: NotifyConfig{
			Email: EmailConfig{
				Enabled:  v.GetBool("notify.email.enabled"),
				Host:     v.GetString("notify.email.host"),
				Port:     v.GetInt("notify.email.port"),
				Username: v.GetString("notify.email.username"),
				Password: v.GetString("notify.email.password"),
				From:     v.GetString("notify.email.from"),
				To:       v.GetStringSlice("notify.email.to"),
			},
			SNS: SNSConfig{
				Enabled:         v.GetBool("notify.sns.enabled"),
				Region:          v.GetString("notify.sns.region"),
				TopicARN:        v.GetString("notify.sns.topic_arn"),
				AccessKeyID:     v.GetString("notify.sns.access_key_id"),
				SecretAccessKey: v.GetString("notify.sns.secret_access_key"),
			},
		},
		HTTP: HTTPConfig{
			Port:           v.GetString("http.port"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:              v.GetBool("telemetry.insecure"),
			DBTracing:             v.GetBool("telemetry.db_tracing"),
			Metrics:               v.GetBool("telemetry.metrics"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "stocksync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "stocksync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "stocksync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQueryThreshold == 0 {
		cfg.Database.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 30 * time.Second
	}
	if cfg.ERP.PageSize == 0 {
		cfg.ERP.PageSize = 100
	}
	if cfg.ERP.MaxPages == 0 {
		cfg.ERP.MaxPages = 500
	}
	if cfg.ERP.MappingLimit == 0 {
		cfg.ERP.MappingLimit = 10000
	}
	if cfg.ERP.RequestsPerSecond == 0 {
		cfg.ERP.RequestsPerSecond = 5
	}
	if cfg.Storefront.Timeout == 0 {
		cfg.Storefront.Timeout = 30 * time.Second
	}
	if cfg.Storefront.RequestsPerSecond == 0 {
		cfg.Storefront.RequestsPerSecond = 10 // 100ms between calls
	}
	if cfg.Storefront.Burst == 0 {
		cfg.Storefront.Burst = 1
	}
	if cfg.Storefront.ProductPageSize == 0 {
		cfg.Storefront.ProductPageSize = 100
	}
	if cfg.Storefront.MaxProductPages == 0 {
		cfg.Storefront.MaxProductPages = 200
	}
	if cfg.Storefront.ProductCacheTTL == 0 {
		cfg.Storefront.ProductCacheTTL = 30 * time.Minute
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 5 * time.Minute
	}
	if cfg.Sync.BatchTTL == 0 {
		cfg.Sync.BatchTTL = 2 * time.Hour
	}
	if cfg.Sync.MaxStepsPerRun == 0 {
		cfg.Sync.MaxStepsPerRun = 100
	}
	if cfg.Sync.StepTimeout == 0 {
		cfg.Sync.StepTimeout = 15 * time.Minute
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 30 * time.Second
	}
	if cfg.Sync.MappingCacheTTL == 0 {
		cfg.Sync.MappingCacheTTL = 30 * time.Minute
	}
	if cfg.Notify.Email.Port == 0 {
		cfg.Notify.Email.Port = 587
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.ERP.PageSize <= 0 || c.ERP.PageSize > 1000 {
		return fmt.Errorf("erp.page_size must be between 1 and 1000, got %d", c.ERP.PageSize)
	}
	if c.ERP.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.ERP.BaseURL); err != nil {
			return fmt.Errorf("erp.base_url is invalid: %w", err)
		}
	}
	if c.Storefront.RequestsPerSecond < 0 {
		return fmt.Errorf("storefront.requests_per_second cannot be negative")
	}
	if c.Sync.MaxStepsPerRun <= 0 {
		return fmt.Errorf("sync.max_steps_per_run must be positive")
	}
	if c.Sync.BatchTTL < time.Minute {
		return fmt.Errorf("sync.batch_ttl must be at least 1m, got %s", c.Sync.BatchTTL)
	}

	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" || c.Notify.Email.From == "" || len(c.Notify.Email.To) == 0 {
			return fmt.Errorf("notify.email requires host, from and to when enabled")
		}
	}
	if c.Notify.SNS.Enabled {
		if c.Notify.SNS.TopicARN == "" || c.Notify.SNS.Region == "" {
			return fmt.Errorf("notify.sns requires region and topic_arn when enabled")
		}
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}

	// Production-specific validations
	if c.App.Env == "production" && c.Database.Driver == "postgres" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the connection string for the configured driver, with
// properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
