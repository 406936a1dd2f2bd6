package config

import "fmt"

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.Database
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	OutputPath string `mapstructure:"output_path"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes" validate:"gt=0"`
}

type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// BillingConfig configures the remote entitlement provider integration.
type BillingConfig struct {
	// Provider selects the provider implementation: "http" or "noop".
	Provider string `mapstructure:"provider" validate:"oneof=http noop"`
	// BaseURL is the provider REST API base, e.g. "https://api.provider.example/v1".
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates server-to-provider requests.
	APIKey string `mapstructure:"api_key"`
	// WebhookSecret authenticates incoming push-update webhooks.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// RetryDelayMS is the fixed wait before the single fetch retry.
	RetryDelayMS int `mapstructure:"retry_delay_ms" validate:"gte=0"`
}

type MigrationConfig struct {
	ScriptsPath string `mapstructure:"scripts_path"`
}
