// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию одного из двух сервисов (orchestrator/inventory).
type Config struct {
	App       AppConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Metrics   MetricsConfig
	Clients   ClientsConfig
	Inventory InventoryConfig
}

// AppConfig содержит общие настройки процесса.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"saga-platform"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	HTTPPort  int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"saga_platform"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka для низкоприоритетных событий
// (low-stock предупреждения, сигналы о необходимости ручной сверки).
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ClientsConfig содержит адреса и таймауты исходящих HTTP клиентов саги.
// Таймауты по умолчанию взяты из §5 спецификации: Catalog 5s, Inventory 8s, Payment 10s.
type ClientsConfig struct {
	CatalogBaseURL   string        `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8081"`
	CatalogTimeout   time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`
	InventoryBaseURL string        `env:"INVENTORY_BASE_URL" envDefault:"http://localhost:8082"`
	InventoryTimeout time.Duration `env:"INVENTORY_TIMEOUT" envDefault:"8s"`
	PaymentBaseURL   string        `env:"PAYMENT_BASE_URL" envDefault:"http://localhost:8083"`
	PaymentTimeout   time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"10s"`
}

// InventoryConfig содержит reservation TTL, низкий порог остатка и параметры reaper.
type InventoryConfig struct {
	ReservationTTL    time.Duration `env:"RESERVATION_TTL" envDefault:"15m"`
	LowStockThreshold int64         `env:"LOW_STOCK_THRESHOLD" envDefault:"10"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`
}

// Load загружает конфигурацию из переменных окружения, опционально из .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
