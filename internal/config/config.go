// Package config loads the full environment-driven configuration surface
// shared by the ingress and worker binaries via koanf.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RabbitMQConfig struct {
	URL           string `koanf:"url" validate:"required"`
	ExchangeName  string `koanf:"exchange_name" validate:"required"`
	PrefetchCount int    `koanf:"prefetch_count"`
}

type ServerConfig struct {
	Port               string        `koanf:"port" validate:"required"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	IdleTimeout        time.Duration `koanf:"idle_timeout"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool `koanf:"enabled"`
	RequestsPerMinute int  `koanf:"requests_per_minute"`
}

type BreakerConfig struct {
	Threshold       uint32        `koanf:"threshold"`
	Timeout         time.Duration `koanf:"timeout"`
	RecoveryTimeout time.Duration `koanf:"recovery_timeout"`
}

type RetryConfig struct {
	MaxRetries      int           `koanf:"max_retries"`
	BaseDelay       time.Duration `koanf:"base_delay"`
	ExponentialBase float64       `koanf:"exponential_base"`
	MaxDelay        time.Duration `koanf:"max_delay"`
}

type TTLConfig struct {
	Notification time.Duration `koanf:"notification"`
	Idempotency  time.Duration `koanf:"idempotency"`
	UserCache    time.Duration `koanf:"user_cache"`
	Template     time.Duration `koanf:"template"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type FCMConfig struct {
	ProjectID          string `koanf:"project_id"`
	ServiceAccountJSON string `koanf:"service_account_json"`
	ServiceAccountPath string `koanf:"service_account_path"`
}

type ProviderConfig struct {
	SMTP SMTPConfig `koanf:"smtp"`
	FCM  FCMConfig  `koanf:"fcm"`
}

type JWTConfig struct {
	Secret    string `koanf:"secret"`
	Algorithm string `koanf:"algorithm"`
}

// APIKeyConfig maps a static API key to its owning principal name, the
// alternative credential accepted on the submit/read notification
// endpoints per spec.md's "JWT or API key" auth column.
type APIKeyConfig map[string]string

type ServiceTokenConfig struct {
	EmailService string `koanf:"email_service"`
	PushService  string `koanf:"push_service"`
}

type TemplateConfig struct {
	DefaultLanguage  string   `koanf:"default_language"`
	SupportedLangs   []string `koanf:"supported_languages"`
}

type WorkerConfig struct {
	Parallelism int    `koanf:"parallelism"`
	OpsPort     string `koanf:"ops_port"`
}

type Config struct {
	Database      DatabaseConfig     `koanf:"database"`
	Redis         RedisConfig        `koanf:"redis"`
	RabbitMQ      RabbitMQConfig     `koanf:"rabbitmq"`
	Server        ServerConfig       `koanf:"server"`
	RateLimit     RateLimitConfig    `koanf:"rate_limit"`
	EmailBreaker  BreakerConfig      `koanf:"email_breaker"`
	PushBreaker   BreakerConfig      `koanf:"push_breaker"`
	UserBreaker   BreakerConfig      `koanf:"user_breaker"`
	Retry         RetryConfig        `koanf:"retry"`
	TTL           TTLConfig          `koanf:"ttl"`
	Provider      ProviderConfig     `koanf:"provider"`
	JWT           JWTConfig          `koanf:"jwt"`
	APIKeys       APIKeyConfig       `koanf:"api_keys"`
	ServiceTokens ServiceTokenConfig `koanf:"service_tokens"`
	Template      TemplateConfig     `koanf:"template"`
	Worker        WorkerConfig       `koanf:"worker"`
	UserServiceURL     string `koanf:"user_service_url" validate:"required"`
	TemplateServiceURL string `koanf:"template_service_url"`
	IngressServiceURL  string `koanf:"ingress_service_url"`
}

// Load reads NOTIFYHUB_-prefixed environment variables, dot-delimited into
// nested keys, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider("NOTIFYHUB_", ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, "NOTIFYHUB_"))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load environment variables: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		RabbitMQ: RabbitMQConfig{ExchangeName: "notifications", PrefetchCount: 10},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 60},
		EmailBreaker: BreakerConfig{Threshold: 5, Timeout: 10 * time.Second, RecoveryTimeout: 30 * time.Second},
		PushBreaker:  BreakerConfig{Threshold: 5, Timeout: 10 * time.Second, RecoveryTimeout: 30 * time.Second},
		UserBreaker:  BreakerConfig{Threshold: 5, Timeout: 5 * time.Second, RecoveryTimeout: 30 * time.Second},
		Retry: RetryConfig{MaxRetries: 5, BaseDelay: time.Second, ExponentialBase: 2, MaxDelay: 60 * time.Second},
		TTL: TTLConfig{
			Notification: 24 * time.Hour,
			Idempotency:  24 * time.Hour,
			UserCache:    5 * time.Minute,
			Template:     time.Hour,
		},
		JWT:      JWTConfig{Algorithm: "HS256"},
		Template: TemplateConfig{DefaultLanguage: "en", SupportedLangs: []string{"en"}},
		Worker:   WorkerConfig{Parallelism: 10, OpsPort: "9090"},
		Server:   ServerConfig{Port: "8080", ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second},
	}
}
