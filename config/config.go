package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	AzamPay  AzamPayConfig  `yaml:"azampay"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	BookingTopic string   `yaml:"booking_topic"`
	PaymentTopic string   `yaml:"payment_topic"`
	GroupID      string   `yaml:"group_id"`
}

type BookingConfig struct {
	ExpiryMinutes      int    `yaml:"expiry_minutes"`
	HoldTTLSeconds     int    `yaml:"hold_ttl_seconds"`
	PlatformFeePercent int64  `yaml:"platform_fee_percent"`
	DefaultCleaningFee int64  `yaml:"default_cleaning_fee"`
	DefaultCurrency    string `yaml:"default_currency"`
}

type AzamPayConfig struct {
	AppName        string `yaml:"app_name"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	AuthURL        string `yaml:"auth_url"`
	APIURL         string `yaml:"api_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WorkerConfig struct {
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the YAML config at path, applies defaults, and overlays gateway
// credentials from the environment (a .env file is honoured when present so
// secrets stay out of the YAML).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "boma"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Booking.ExpiryMinutes == 0 {
		c.Booking.ExpiryMinutes = 30
	}
	if c.Booking.HoldTTLSeconds == 0 {
		c.Booking.HoldTTLSeconds = 60
	}
	if c.Booking.PlatformFeePercent == 0 {
		c.Booking.PlatformFeePercent = 10
	}
	if c.Booking.DefaultCleaningFee == 0 {
		c.Booking.DefaultCleaningFee = 10000
	}
	if c.Booking.DefaultCurrency == "" {
		c.Booking.DefaultCurrency = "TZS"
	}
	if c.AzamPay.AuthURL == "" {
		c.AzamPay.AuthURL = "https://authenticator-sandbox.azampay.co.tz"
	}
	if c.AzamPay.APIURL == "" {
		c.AzamPay.APIURL = "https://sandbox.azampay.co.tz"
	}
	if c.AzamPay.TimeoutSeconds == 0 {
		c.AzamPay.TimeoutSeconds = 60
	}
	if c.Worker.SweepIntervalMinutes == 0 {
		c.Worker.SweepIntervalMinutes = 5
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AZAMPAY_CLIENT_ID"); v != "" {
		c.AzamPay.ClientID = v
	}
	if v := os.Getenv("AZAMPAY_CLIENT_SECRET"); v != "" {
		c.AzamPay.ClientSecret = v
	}
	if v := os.Getenv("AZAMPAY_WEBHOOK_SECRET"); v != "" {
		c.AzamPay.WebhookSecret = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}

func (c *Config) validate() error {
	if c.Booking.PlatformFeePercent < 0 || c.Booking.PlatformFeePercent > 100 {
		return fmt.Errorf("booking.platform_fee_percent must be between 0 and 100, got %d", c.Booking.PlatformFeePercent)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	return nil
}
