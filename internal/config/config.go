// Package config 以 viper 讀取 YAML 設定檔與環境變數。

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bankapi/internal/storage"
)

// EnvPrefix 為環境變數覆寫的前綴，例如 BANK_SERVER_PORT。
const EnvPrefix = "BANK"

// Config 應用程式設定
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DynamoDB    DynamoDBConfig    `mapstructure:"dynamodb"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	TaxRegistry TaxRegistryConfig `mapstructure:"taxregistry"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig 持久化設定
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`       // json | dynamodb | redis | mysql
	Autosave    bool   `mapstructure:"autosave"`      // 每次成功變更後寫入
	LoadOnStart bool   `mapstructure:"load_on_start"` // 啟動時載入
	JSONFile    string `mapstructure:"json_file"`
}

type DynamoDBConfig struct {
	Table       string `mapstructure:"table"`
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"` // 留空使用 AWS 預設端點
	CreateTable bool   `mapstructure:"create_table"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TaxRegistryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPConfig 郵件設定；Host 為空時停用寄信。
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bankapi")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", storage.BackendJSON)
	v.SetDefault("storage.autosave", false)
	v.SetDefault("storage.load_on_start", false)
	v.SetDefault("storage.json_file", "data.json")

	v.SetDefault("dynamodb.table", "accounts")
	v.SetDefault("dynamodb.region", "")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.create_table", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "bank:")

	v.SetDefault("mysql.dsn", "")

	v.SetDefault("taxregistry.base_url", "https://wl-api.mf.gov.pl")
	v.SetDefault("taxregistry.timeout", 5*time.Second)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@bank.example")
}

// Load 依序套用預設值、設定檔（可不存在）與 BANK_ 環境變數。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// Validate 檢查所選後端需要的設定
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.TaxRegistry.Timeout <= 0 {
		return fmt.Errorf("taxregistry.timeout must be positive")
	}

	switch c.Storage.Backend {
	case storage.BackendJSON:
		if c.Storage.JSONFile == "" {
			return fmt.Errorf("storage.json_file is required")
		}
	case storage.BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("dynamodb.table is required")
		}
	case storage.BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	case storage.BackendMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql dsn is required")
		}
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownBackend, c.Storage.Backend)
	}

	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required when smtp.host is set")
	}
	return nil
}
