// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	Telegram                `yaml:"telegram"`
	Sweeper                 `yaml:"sweeper"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AdminAPIKey string        `yaml:"admin_api_key" env:"ADMIN_API_KEY"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env-default:"localhost:6379"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"5s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Telegram структура с настройками бота и управляемых каналов.
// FreeChannelOpenAccess отключает проверку членства в бесплатном канале.
type Telegram struct {
	BotToken              string  `yaml:"bot_token" env:"BOT_TOKEN"`
	APIBaseURL            string  `yaml:"api_base_url" env-default:"https://api.telegram.org"`
	FreeChannelID         int64   `yaml:"free_channel_id" env:"FREE_CHANNEL_ID"`
	VIPChannelID          int64   `yaml:"vip_channel_id" env:"VIP_CHANNEL_ID"`
	FreeChannelOpenAccess bool    `yaml:"free_channel_open_access" env-default:"true"`
	AdminIDs              []int64 `yaml:"admin_ids" env:"ADMIN_IDS"`
}

// Sweeper структура с интервалами фоновых задач
type Sweeper struct {
	SweepInterval     time.Duration `yaml:"sweep_interval" env-default:"1m"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env-default:"1h"`
	ExpiryWarnWindow  time.Duration `yaml:"expiry_warn_window" env-default:"24h"`
}

// IsAdmin сообщает, входит ли telegram-идентификатор в список администраторов.
func (t Telegram) IsAdmin(telegramID int64) bool {
	return slices.Contains(t.AdminIDs, telegramID)
}

// MustLoad функция для загрузки конфига, путь берется из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
