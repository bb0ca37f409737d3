package internal

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
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Identity      IdentityConfig      `mapstructure:"identity"`
	Session       SessionConfig       `mapstructure:"session"`
	Events        EventsConfig        `mapstructure:"events"`
	Worker        WorkerConfig        `mapstructure:"worker"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	ReceiptSecret string        `mapstructure:"receipt_secret"`
	ReceiptTTL    time.Duration `mapstructure:"receipt_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type PaymentConfig struct {
	Provider             string        `mapstructure:"provider"`
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	CreatePath           string        `mapstructure:"create_path"`
	StatusPath           string        `mapstructure:"status_path"`
	Timeout              time.Duration `mapstructure:"timeout"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
	CustomerEmail        string        `mapstructure:"customer_email"`
	CustomerPhone        string        `mapstructure:"customer_phone"`
	ItemTitle            string        `mapstructure:"item_title"`
	MaxAmount            string        `mapstructure:"max_amount"`
	MercadoPagoToken     string        `mapstructure:"mercadopago_access_token"`
}

type IdentityConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Package string        `mapstructure:"package"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	RedisURL   string        `mapstructure:"redis_url"`
}

type EventsConfig struct {
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
}

type WorkerConfig struct {
	MaxWorkers     int `mapstructure:"max_workers"`
	JobQueueSize   int `mapstructure:"job_queue_size"`
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	BatchSize      int `mapstructure:"batch_size"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	ProviderHTTP        = "http"
	ProviderMercadoPago = "mercadopago"
)

// ApplyDefaults fills the zero values that have a sensible fallback.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "api/openapi.yml"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Security.ReceiptTTL <= 0 {
		c.Security.ReceiptTTL = 30 * time.Minute
	}
	if c.Payment.Provider == "" {
		c.Payment.Provider = ProviderHTTP
	}
	if c.Payment.CreatePath == "" {
		c.Payment.CreatePath = "/transaction.purchase"
	}
	if c.Payment.StatusPath == "" {
		c.Payment.StatusPath = "/transaction.getPayment"
	}
	if c.Payment.Timeout <= 0 {
		c.Payment.Timeout = 30 * time.Second
	}
	if c.Payment.PollInterval <= 0 {
		c.Payment.PollInterval = 5 * time.Second
	}
	if c.Payment.MaxConsecutiveErrors <= 0 {
		c.Payment.MaxConsecutiveErrors = 5
	}
	if c.Payment.ItemTitle == "" {
		c.Payment.ItemTitle = "Depósito PIX"
	}
	if c.Payment.MaxAmount == "" {
		c.Payment.MaxAmount = "100000.00"
	}
	if c.Identity.Package == "" {
		c.Identity.Package = "2"
	}
	if c.Identity.Timeout <= 0 {
		c.Identity.Timeout = 10 * time.Second
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "pix_session"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 30 * time.Minute
	}
	if c.Events.KafkaTopic == "" {
		c.Events.KafkaTopic = "pix.payments.resolved"
	}
	if c.Worker.MaxWorkers <= 0 {
		c.Worker.MaxWorkers = 10
	}
	if c.Worker.JobQueueSize <= 0 {
		c.Worker.JobQueueSize = 100
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 500
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables (container deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 0),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "api/openapi.yml"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			SessionSecret: getEnv("SESSION_SECRET", ""),
			ReceiptSecret: getEnv("RECEIPT_SECRET", ""),
			ReceiptTTL:    getEnvAsDuration("RECEIPT_TTL", 30*time.Minute),
			CookieSecure:  getEnv("COOKIE_SECURE", "true") == "true",
		},
		Payment: PaymentConfig{
			Provider:             getEnv("PAYMENT_PROVIDER", ProviderHTTP),
			BaseURL:              getEnv("PAYMENT_BASE_URL", ""),
			APIKey:               getEnv("PAYMENT_API_KEY", ""),
			CreatePath:           getEnv("PAYMENT_CREATE_PATH", ""),
			StatusPath:           getEnv("PAYMENT_STATUS_PATH", ""),
			Timeout:              getEnvAsDuration("PAYMENT_TIMEOUT", 30*time.Second),
			PollInterval:         getEnvAsDuration("PAYMENT_POLL_INTERVAL", 5*time.Second),
			MaxConsecutiveErrors: getEnvAsInt("PAYMENT_MAX_CONSECUTIVE_ERRORS", 5),
			CustomerEmail:        getEnv("PAYMENT_CUSTOMER_EMAIL", ""),
			CustomerPhone:        getEnv("PAYMENT_CUSTOMER_PHONE", ""),
			ItemTitle:            getEnv("PAYMENT_ITEM_TITLE", ""),
			MaxAmount:            getEnv("PAYMENT_MAX_AMOUNT", ""),
			MercadoPagoToken:     getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		},
		Identity: IdentityConfig{
			BaseURL: getEnv("IDENTITY_BASE_URL", "https://api.cpfcnpj.com.br"),
			Token:   getEnv("IDENTITY_TOKEN", ""),
			Package: getEnv("IDENTITY_PACKAGE", "2"),
			Timeout: getEnvAsDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", ""),
			TTL:        getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			RedisURL:   getEnv("REDIS_URL", ""),
		},
		Events: EventsConfig{
			KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
			KafkaTopic:   getEnv("KAFKA_TOPIC", ""),
		},
		Worker: WorkerConfig{
			MaxWorkers:     getEnvAsInt("WORKER_MAX_WORKERS", 10),
			JobQueueSize:   getEnvAsInt("WORKER_JOB_QUEUE_SIZE", 100),
			WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 0),
			BatchSize:      getEnvAsInt("WORKER_BATCH_SIZE", 500),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if err := c.Identity.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("identity config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	switch c.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if len(c.ReceiptSecret) < 32 {
		return errors.New("receipt secret must be at least 32 characters")
	}
	return nil
}

func (c *PaymentConfig) Validate() error {
	switch c.Provider {
	case ProviderHTTP:
		if c.BaseURL == "" {
			return errors.New("base_url is required")
		}
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	case ProviderMercadoPago:
		if c.MercadoPagoToken == "" {
			return errors.New("mercadopago_access_token is required")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.CustomerEmail == "" {
		return errors.New("customer_email is required")
	}
	return nil
}

func (c *IdentityConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	return nil
}

// KafkaBrokerList splits the comma separated broker list; empty means publishing is disabled.
func (c *EventsConfig) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
