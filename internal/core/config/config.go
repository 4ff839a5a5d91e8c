package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int    `mapstructure:"idle_timeout_sec"`
}

type App struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// Ops configures the read-only inspection server.
type Ops struct {
	HTTP              HTTP    `mapstructure:"http"`
	RateLimitRPS      float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	RateLimitPerIP    bool    `mapstructure:"rate_limit_per_ip"`
	MaxConcurrent     int64   `mapstructure:"max_concurrent"`
	QueueWaitMs       int     `mapstructure:"queue_wait_ms"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
}

type Rotate struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	JSON   bool   `mapstructure:"json"`
	Rotate Rotate `mapstructure:"rotate"`
}

type JWT struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessTokenTTLMin int    `mapstructure:"access_token_ttl_min"`
}

type DB struct {
	Driver               string `mapstructure:"driver"`
	DSN                  string `mapstructure:"dsn"`
	Username             string `mapstructure:"username"`
	Password             string `mapstructure:"password"`
	PoolSize             int    `mapstructure:"pool_size"`
	MaxOverflow          int    `mapstructure:"max_overflow"`
	PoolRecycleSec       int    `mapstructure:"pool_recycle_sec"`
	PoolIdleSec          int    `mapstructure:"pool_idle_sec"`
	PrePing              bool   `mapstructure:"pre_ping"`
	PrepareStmt          bool   `mapstructure:"prepare_stmt"`
	ConnectAttempts      int    `mapstructure:"connect_attempts"`
	ConnectBackoffMs     int    `mapstructure:"connect_backoff_ms"`
	UnitOfWorkTimeoutSec int    `mapstructure:"unit_of_work_timeout_sec"`
	AutoMigrate          bool   `mapstructure:"auto_migrate"`
	LogLevel             string `mapstructure:"log_level"`
	SlowQueryMs          int    `mapstructure:"slow_query_ms"`
}

type Config struct {
	App App `mapstructure:"app"`
	Log Log `mapstructure:"log"`
	JWT JWT `mapstructure:"jwt"`
	DB  DB  `mapstructure:"db"`
	Ops Ops `mapstructure:"ops"`
}

func (d DB) Recycle() time.Duration {
	return time.Duration(d.PoolRecycleSec) * time.Second
}

func (d DB) IdleTime() time.Duration {
	return time.Duration(d.PoolIdleSec) * time.Second
}

func (d DB) Backoff() time.Duration {
	return time.Duration(d.ConnectBackoffMs) * time.Millisecond
}

func (d DB) SlowThreshold() time.Duration {
	return time.Duration(d.SlowQueryMs) * time.Millisecond
}

func (d DB) UnitOfWorkTimeout() time.Duration {
	return time.Duration(d.UnitOfWorkTimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "notesdb")
	v.SetDefault("app.env", "local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.rotate.enable", false)
	v.SetDefault("log.rotate.filename", "logs/notesdb.log")
	v.SetDefault("log.rotate.max_size_mb", 100)
	v.SetDefault("log.rotate.max_backups", 7)
	v.SetDefault("log.rotate.max_age_days", 30)
	v.SetDefault("log.rotate.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "notesdb")
	v.SetDefault("jwt.access_token_ttl_min", 60)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.pool_size", 10)
	v.SetDefault("db.max_overflow", 20)
	v.SetDefault("db.pool_recycle_sec", 3600)
	v.SetDefault("db.pool_idle_sec", 600)
	v.SetDefault("db.pre_ping", true)
	v.SetDefault("db.prepare_stmt", true)
	v.SetDefault("db.connect_attempts", 3)
	v.SetDefault("db.connect_backoff_ms", 1000)
	v.SetDefault("db.unit_of_work_timeout_sec", 0)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("db.slow_query_ms", 200)

	v.SetDefault("ops.http.host", "0.0.0.0")
	v.SetDefault("ops.http.port", 8090)
	v.SetDefault("ops.http.read_timeout_sec", 5)
	v.SetDefault("ops.http.write_timeout_sec", 10)
	v.SetDefault("ops.http.idle_timeout_sec", 60)
	v.SetDefault("ops.rate_limit_rps", 20)
	v.SetDefault("ops.rate_limit_burst", 40)
	v.SetDefault("ops.rate_limit_per_ip", false)
	v.SetDefault("ops.max_concurrent", 16)
	v.SetDefault("ops.queue_wait_ms", 500)
	v.SetDefault("ops.request_timeout_sec", 10)
}

// Load reads path (or CONFIG_PATH, or DefaultPath). A missing file at the default
// location is not an error: defaults and APP_* env vars still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
		if path == "" {
			path = DefaultPath
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.PoolSize <= 0 {
		return fmt.Errorf("config: db.pool_size must be > 0, got %d", c.DB.PoolSize)
	}
	if c.DB.MaxOverflow < 0 {
		return fmt.Errorf("config: db.max_overflow must be >= 0, got %d", c.DB.MaxOverflow)
	}
	if c.DB.ConnectAttempts <= 0 {
		return fmt.Errorf("config: db.connect_attempts must be > 0, got %d", c.DB.ConnectAttempts)
	}
	return nil
}
