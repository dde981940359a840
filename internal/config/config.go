package config

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string              `yaml:"env" env-default:"development"` // environment
	HTTPServer    HTTPServerConfig    `yaml:"http_server"`
	Database      DatabaseConfig      `yaml:"database"`
	JWT           JWTConfig           `yaml:"jwt"`
	Migrations    MigrationsConfig    `yaml:"migrations"`
	Payments      PaymentsConfig      `yaml:"payments"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Retry         RetryConfig         `yaml:"retry"`
	Webhook       WebhookConfig       `yaml:"webhook"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt для админских маршрутов
// DSN строка подключения к postgres
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// PaymentMethodConfig способ оплаты и валюта, в которой он принимает деньги
type PaymentMethodConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// PaymentsConfig настройки платежей. Пустой список методов: оформление заказов невозможно.
type PaymentsConfig struct {
	Methods            []PaymentMethodConfig `yaml:"methods"`
	PaymentTTL         time.Duration         `yaml:"payment_ttl" env-default:"24h"`
	MaxPaymentAttempts int                   `yaml:"max_payment_attempts" env-default:"5"`
	SweepInterval      time.Duration         `yaml:"sweep_interval" env-default:"1m"`
}

// PricingConfig курсы валют: статические значения и/или redis
type PricingConfig struct {
	Rates     map[string]string `yaml:"rates"` // "BTC_EUR": "30000"
	RedisAddr string            `yaml:"redis_addr" env:"PRICING_REDIS_ADDR"`
	CacheTTL  time.Duration     `yaml:"cache_ttl" env-default:"30s"`
}

type SubscriptionsConfig struct {
	ReminderWindow       time.Duration `yaml:"reminder_window" env-default:"72h"`
	Duration             time.Duration `yaml:"duration" env-default:"720h"`
	EnforceRenewalWindow bool          `yaml:"enforce_renewal_window" env-default:"false"`
}

// NotificationsConfig драйвер доставки уведомлений: log, rabbitmq или kafka
type NotificationsConfig struct {
	Driver       string `yaml:"driver" env-default:"log"`
	RabbitMQURL  string `yaml:"-" env:"RABBITMQ_URL"`
	Exchange     string `yaml:"exchange" env-default:"shop_notifications"`
	KafkaBrokers string `yaml:"kafka_brokers" env:"KAFKA_BROKERS"`
	KafkaTopic   string `yaml:"kafka_topic" env-default:"shop.notifications"`
}

// RetryConfig повтор транзакций при конфликтах в БД
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" env-default:"3"`
	InitialInterval time.Duration `yaml:"initial_interval" env-default:"50ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env-default:"1s"`
}

// WebhookConfig bcrypt-хэш общего секрета платежного провайдера
type WebhookConfig struct {
	SecretHash string `yaml:"-" env:"WEBHOOK_SECRET_HASH"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
