package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Admin       AdminConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
	Odoo        OdooConfig
	OdooREST    OdooRESTConfig
	Catalog     CatalogConfig
	Sync        SyncConfig
	Scheduler   SchedulerConfig
	Contentful  ContentfulConfig
	Algolia     AlgoliaConfig
	Storage     StorageConfig
	Idempotency IdempotencyConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings for admin access tokens
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// AdminConfig holds the operator account allowed to use the admin API
type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	LoginRateLimit   float64 // login attempts per second per client IP
	LoginBurst       int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled               bool
	CollectorEndpoint     string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio         float64 // 0.0-1.0
	ServiceName           string
	Insecure              bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool // export zap logs through the otelzap bridge
	DBTraceEnabled        bool
}

// OdooConfig holds the ERP JSON-RPC client settings
type OdooConfig struct {
	URL        string
	DBName     string
	Username   string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 = unlimited
	RateBurst  int
	ReadMethod string // web_read, read
	ActiveOnly bool
}

// OdooRESTConfig holds the ERP REST module client settings
type OdooRESTConfig struct {
	Enabled        bool
	BaseURL        string
	Username       string
	Password       string
	DBName         string
	Timeout        time.Duration
	MaxAuthRetries int
}

// CatalogConfig selects and configures the commerce catalog adapter
type CatalogConfig struct {
	Driver       string // local, medusa
	MedusaURL    string
	MedusaAPIKey string
	Timeout      time.Duration

	// Store references written to the local catalog at startup
	SalesChannelID    string
	ShippingProfileID string
}

// SyncConfig holds product sync pipeline settings
type SyncConfig struct {
	PageSize int
}

// SchedulerConfig holds product sync scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	CronSchedule      string
	CheckInterval     time.Duration
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	RunOnStartup      bool
}

// ContentfulConfig holds headless CMS settings
type ContentfulConfig struct {
	Enabled         bool
	ManagementToken string
	DeliveryToken   string
	SpaceID         string
	Environment     string
	DefaultLocale   string
	ManagementURL   string
	DeliveryURL     string
	Timeout         time.Duration
}

// AlgoliaConfig holds search index settings
type AlgoliaConfig struct {
	Enabled   bool
	AppID     string
	APIKey    string
	IndexName string
	BaseURL   string // empty = https://{app_id}.algolia.net
	Timeout   time.Duration
}

// StorageConfig holds S3-compatible object storage settings for product images
type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string
	KeyPrefix     string
}

// IdempotencyConfig holds idempotent event handling settings
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERPSYNC_ prefix (e.g., ERPSYNC_ODOO_API_KEY)
// 2. .env in the working directory (never overrides the process environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// A local .env only fills variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true must be registered, otherwise an unset
	// key reads as false and cannot be told apart from an explicit false.
	v.SetDefault("odoo.active_only", true)
	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("scheduler.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Admin: AdminConfig{
			Username:     v.GetString("admin.username"),
			PasswordHash: v.GetString("admin.password_hash"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			LoginRateLimit:   v.GetFloat64("http.login_rate_limit"),
			LoginBurst:       v.GetInt("http.login_burst"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:        v.GetBool("telemetry.db_trace_enabled"),
		},
		Odoo: OdooConfig{
			URL:        v.GetString("odoo.url"),
			DBName:     v.GetString("odoo.db_name"),
			Username:   v.GetString("odoo.username"),
			APIKey:     v.GetString("odoo.api_key"),
			Timeout:    v.GetDuration("odoo.timeout"),
			RateLimit:  v.GetFloat64("odoo.rate_limit"),
			RateBurst:  v.GetInt("odoo.rate_burst"),
			ReadMethod: v.GetString("odoo.read_method"),
			ActiveOnly: v.GetBool("odoo.active_only"),
		},
		OdooREST: OdooRESTConfig{
			Enabled:        v.GetBool("odoo_rest.enabled"),
			BaseURL:        v.GetString("odoo_rest.base_url"),
			Username:       v.GetString("odoo_rest.username"),
			Password:       v.GetString("odoo_rest.password"),
			DBName:         v.GetString("odoo_rest.db_name"),
			Timeout:        v.GetDuration("odoo_rest.timeout"),
			MaxAuthRetries: v.GetInt("odoo_rest.max_auth_retries"),
		},
		Catalog: CatalogConfig{
			Driver:            v.GetString("catalog.driver"),
			MedusaURL:         v.GetString("catalog.medusa_url"),
			MedusaAPIKey:      v.GetString("catalog.medusa_api_key"),
			Timeout:           v.GetDuration("catalog.timeout"),
			SalesChannelID:    v.GetString("catalog.sales_channel_id"),
			ShippingProfileID: v.GetString("catalog.shipping_profile_id"),
		},
		Sync: SyncConfig{
			PageSize: v.GetInt("sync.page_size"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			CronSchedule:      v.GetString("scheduler.cron_schedule"),
			CheckInterval:     v.GetDuration("scheduler.check_interval"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
			RunOnStartup:      v.GetBool("scheduler.run_on_startup"),
		},
		Contentful: ContentfulConfig{
			Enabled:         v.GetBool("contentful.enabled"),
			ManagementToken: v.GetString("contentful.management_access_token"),
			DeliveryToken:   v.GetString("contentful.delivery_token"),
			SpaceID:         v.GetString("contentful.space_id"),
			Environment:     v.GetString("contentful.environment"),
			DefaultLocale:   v.GetString("contentful.default_locale"),
			ManagementURL:   v.GetString("contentful.management_url"),
			DeliveryURL:     v.GetString("contentful.delivery_url"),
			Timeout:         v.GetDuration("contentful.timeout"),
		},
		Algolia: AlgoliaConfig{
			Enabled:   v.GetBool("algolia.enabled"),
			AppID:     v.GetString("algolia.app_id"),
			APIKey:    v.GetString("algolia.api_key"),
			IndexName: v.GetString("algolia.index_name"),
			BaseURL:   v.GetString("algolia.base_url"),
			Timeout:   v.GetDuration("algolia.timeout"),
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("storage.enabled"),
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UseSSL:        v.GetBool("storage.use_ssl"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
			KeyPrefix:     v.GetString("storage.key_prefix"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("idempotency.enabled"),
			TTL:     v.GetDuration("idempotency.ttl"),
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
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "catalogsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "catalogsync.db"
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
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "catalogsync"
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
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
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	// CORS origins have no fallback: an empty list rejects cross-origin requests.
	if cfg.HTTP.LoginRateLimit == 0 {
		cfg.HTTP.LoginRateLimit = 0.2
	}
	if cfg.HTTP.LoginBurst == 0 {
		cfg.HTTP.LoginBurst = 5
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Accept-Language"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalogsync"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Odoo.Timeout == 0 {
		cfg.Odoo.Timeout = 30 * time.Second
	}
	if cfg.Odoo.RateBurst == 0 {
		cfg.Odoo.RateBurst = 5
	}
	if cfg.Odoo.ReadMethod == "" {
		cfg.Odoo.ReadMethod = "web_read"
	}
	if cfg.OdooREST.BaseURL == "" {
		cfg.OdooREST.BaseURL = "http://localhost:8069"
	}
	if cfg.OdooREST.DBName == "" {
		cfg.OdooREST.DBName = cfg.Odoo.DBName
	}
	if cfg.OdooREST.Timeout == 0 {
		cfg.OdooREST.Timeout = 30 * time.Second
	}
	if cfg.OdooREST.MaxAuthRetries == 0 {
		cfg.OdooREST.MaxAuthRetries = 2
	}
	if cfg.Catalog.Driver == "" {
		cfg.Catalog.Driver = "local"
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 30 * time.Second
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 10
	}
	if cfg.Scheduler.CronSchedule == "" {
		cfg.Scheduler.CronSchedule = "0 0 * * *" // daily at midnight
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = 15 * time.Second
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 1
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Contentful.Environment == "" {
		cfg.Contentful.Environment = "master"
	}
	if cfg.Contentful.DefaultLocale == "" {
		cfg.Contentful.DefaultLocale = "en-US"
	}
	if cfg.Contentful.ManagementURL == "" {
		cfg.Contentful.ManagementURL = "https://api.contentful.com"
	}
	if cfg.Contentful.DeliveryURL == "" {
		cfg.Contentful.DeliveryURL = "https://cdn.contentful.com"
	}
	if cfg.Contentful.Timeout == 0 {
		cfg.Contentful.Timeout = 15 * time.Second
	}
	if cfg.Algolia.IndexName == "" {
		cfg.Algolia.IndexName = "products"
	}
	if cfg.Algolia.Timeout == 0 {
		cfg.Algolia.Timeout = 15 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "products"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
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

	switch c.Odoo.ReadMethod {
	case "web_read", "read":
	default:
		return fmt.Errorf("odoo.read_method must be web_read or read, got %q", c.Odoo.ReadMethod)
	}
	if c.Odoo.RateLimit < 0 {
		return fmt.Errorf("odoo.rate_limit cannot be negative")
	}

	switch c.Catalog.Driver {
	case "local":
	case "medusa":
		if c.Catalog.MedusaURL == "" {
			return fmt.Errorf("catalog.medusa_url is required when catalog.driver is medusa")
		}
	default:
		return fmt.Errorf("catalog.driver must be local or medusa, got %q", c.Catalog.Driver)
	}

	if c.Sync.PageSize < 0 {
		return fmt.Errorf("sync.page_size cannot be negative")
	}
	if c.Scheduler.RetryAttempts < 0 {
		return fmt.Errorf("scheduler.retry_attempts cannot be negative")
	}

	if c.Contentful.Enabled && (c.Contentful.SpaceID == "" || c.Contentful.ManagementToken == "") {
		return fmt.Errorf("contentful.space_id and contentful.management_access_token are required when contentful is enabled")
	}
	if c.Algolia.Enabled && (c.Algolia.AppID == "" || c.Algolia.APIKey == "") {
		return fmt.Errorf("algolia.app_id and algolia.api_key are required when algolia is enabled")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Admin.PasswordHash == "" {
			return fmt.Errorf("admin.password_hash is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
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
