package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config はアプリケーション設定を表す
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Ledger       LedgerConfig
	Reconciler   ReconcilerConfig
	AMQP         AMQPConfig
	Tracing      TracingConfig
	StoreService StoreServiceConfig
	Metrics      MetricsConfig
}

// AppConfig は実行環境の設定
type AppConfig struct {
	Env            string
	Version        string
	MigrationsPath string
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// LedgerConfig は座席台帳の設定
type LedgerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// ReconcilerConfig は保留中の予約を解決するワーカーの設定
type ReconcilerConfig struct {
	Interval       time.Duration
	PendingTimeout time.Duration
	BatchSize      int
	LockTTL        time.Duration
}

// AMQPConfig は予約イベントの送信先（URL が空なら送信しない）
type AMQPConfig struct {
	URL   string
	Queue string
}

// TracingConfig は OTLP エクスポーターの設定（Endpoint が空ならエクスポートしない）
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// StoreServiceConfig は予約サービスから見た店舗サービスの設定
// URL が空の場合は座席台帳を同一プロセスで動かす
type StoreServiceConfig struct {
	URL     string
	Timeout time.Duration
}

// MetricsConfig は /metrics の Basic 認証設定（両方設定時のみ有効）
type MetricsConfig struct {
	User     string
	Password string
}

// AuthEnabled は Basic 認証が有効かを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// 設定キーと環境変数の対応
var envBindings = map[string]string{
	"app.env":                    "APP_ENV",
	"app.version":                "APP_VERSION",
	"app.migrations_path":        "MIGRATIONS_PATH",
	"server.port":                "PORT",
	"server.read_timeout":        "SERVER_READ_TIMEOUT",
	"server.write_timeout":       "SERVER_WRITE_TIMEOUT",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.name":              "DB_NAME",
	"database.sslmode":           "DB_SSLMODE",
	"redis.enabled":              "REDIS_ENABLED",
	"redis.host":                 "REDIS_HOST",
	"redis.port":                 "REDIS_PORT",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"ledger.max_attempts":        "LEDGER_MAX_ATTEMPTS",
	"ledger.retry_backoff":       "LEDGER_RETRY_BACKOFF",
	"reconciler.interval":        "RECONCILER_INTERVAL",
	"reconciler.pending_timeout": "RECONCILER_PENDING_TIMEOUT",
	"reconciler.batch_size":      "RECONCILER_BATCH_SIZE",
	"reconciler.lock_ttl":        "RECONCILER_LOCK_TTL",
	"amqp.url":                   "AMQP_URL",
	"amqp.queue":                 "AMQP_QUEUE",
	"tracing.endpoint":           "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.insecure":           "OTEL_EXPORTER_OTLP_INSECURE",
	"store_service.url":          "STORE_SERVICE_URL",
	"store_service.timeout":      "STORE_SERVICE_TIMEOUT",
	"metrics.user":               "METRICS_USER",
	"metrics.password":           "METRICS_PASSWORD",
}

// NewViper はデフォルト値と環境変数の設定済み viper を返す
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults は viper にデフォルト値と環境変数の対応を設定する
func ApplyDefaults(v *viper.Viper) {
	for key, env := range envBindings {
		// キーと環境変数名は固定のため失敗しない
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.migrations_path", "migrations")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "seat_reservation")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.retry_backoff", 5*time.Millisecond)
	v.SetDefault("reconciler.interval", 30*time.Second)
	v.SetDefault("reconciler.pending_timeout", 5*time.Minute)
	v.SetDefault("reconciler.batch_size", 100)
	v.SetDefault("reconciler.lock_ttl", time.Minute)
	v.SetDefault("amqp.queue", "booking-events")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("store_service.timeout", 5*time.Second)
}

// LoadDotEnv は .env ファイルがあれば環境変数に読み込む
// 既に設定されている環境変数は上書きしない
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env の読み込みに失敗: %w", err)
	}
	return nil
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	_ = LoadDotEnv()
	return FromViper(NewViper())
}

// FromViper は viper から設定を組み立てる
func FromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Env:            v.GetString("app.env"),
			Version:        v.GetString("app.version"),
			MigrationsPath: v.GetString("app.migrations_path"),
		},
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Ledger: LedgerConfig{
			MaxAttempts:  v.GetInt("ledger.max_attempts"),
			RetryBackoff: v.GetDuration("ledger.retry_backoff"),
		},
		Reconciler: ReconcilerConfig{
			Interval:       v.GetDuration("reconciler.interval"),
			PendingTimeout: v.GetDuration("reconciler.pending_timeout"),
			BatchSize:      v.GetInt("reconciler.batch_size"),
			LockTTL:        v.GetDuration("reconciler.lock_ttl"),
		},
		AMQP: AMQPConfig{
			URL:   v.GetString("amqp.url"),
			Queue: v.GetString("amqp.queue"),
		},
		Tracing: TracingConfig{
			Endpoint: v.GetString("tracing.endpoint"),
			Insecure: v.GetBool("tracing.insecure"),
		},
		StoreService: StoreServiceConfig{
			URL:     strings.TrimRight(v.GetString("store_service.url"), "/"),
			Timeout: v.GetDuration("store_service.timeout"),
		},
		Metrics: MetricsConfig{
			User:     v.GetString("metrics.user"),
			Password: v.GetString("metrics.password"),
		},
	}
}

// Validate は設定値の検証を行う
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port は必須です")
	}
	if c.Ledger.MaxAttempts < 1 {
		return errors.New("ledger.max_attempts は1以上である必要があります")
	}
	if c.Ledger.RetryBackoff < 0 {
		return errors.New("ledger.retry_backoff は0以上である必要があります")
	}
	if c.Reconciler.Interval <= 0 {
		return errors.New("reconciler.interval は正の値である必要があります")
	}
	if c.Reconciler.BatchSize < 1 {
		return errors.New("reconciler.batch_size は1以上である必要があります")
	}
	return nil
}

// IsProduction は本番環境かを返す
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
