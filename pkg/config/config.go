package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Cron       CronConfig       `mapstructure:"cron"`
}

type AppConfig struct {
	Env           string `mapstructure:"env"`
	HttpPort      string `mapstructure:"http_port"`
	InternalToken string `mapstructure:"internal_token"` // shared secret for /internal routes
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	AppID           string        `mapstructure:"app_id"`
	AppSecret       string        `mapstructure:"app_secret"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ConfirmDeposits bool          `mapstructure:"confirm_deposits"` // re-fetch the record before crediting
}

type WebhookConfig struct {
	MaxSkew time.Duration `mapstructure:"max_skew"` // 0 disables the timestamp window
}

type ConversionConfig struct {
	PlatformCurrency   string            `mapstructure:"platform_currency"`
	PlatformDecimals   int32             `mapstructure:"platform_decimals"`
	DefaultAutoConvert bool              `mapstructure:"default_auto_convert"`
	Rates              map[string]string `mapstructure:"rates"` // coin symbol -> platform units per coin
}

type CacheConfig struct {
	Driver        string        `mapstructure:"driver"` // memory, redis, multilevel
	BalanceTTL    time.Duration `mapstructure:"balance_ttl"`
	ListTTL       time.Duration `mapstructure:"list_ttl"`
	MaxPendingAge time.Duration `mapstructure:"max_pending_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	AppliedTTL    time.Duration `mapstructure:"applied_ttl"`
}

type LedgerConfig struct {
	WelcomeBonus string `mapstructure:"welcome_bonus"`
}

type CronConfig struct {
	ReconcileSpec string `mapstructure:"reconcile_spec"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// PROVIDER_APP_SECRET overrides provider.app_secret
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "deposit_user")
	viper.SetDefault("db.password", "deposit_password")
	viper.SetDefault("db.name", "deposit_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "wallet.deposit.applied")

	viper.SetDefault("provider.base_url", "https://ccpayment.com")
	viper.SetDefault("provider.timeout", 30*time.Second)
	viper.SetDefault("provider.confirm_deposits", false)

	viper.SetDefault("webhook.max_skew", 0)

	viper.SetDefault("conversion.platform_currency", "DGT")
	viper.SetDefault("conversion.platform_decimals", 2)
	viper.SetDefault("conversion.default_auto_convert", true)
	viper.SetDefault("conversion.rates", map[string]string{"USDT": "10"})

	viper.SetDefault("cache.driver", "memory")
	viper.SetDefault("cache.balance_ttl", 30*time.Second)
	viper.SetDefault("cache.list_ttl", time.Minute)
	viper.SetDefault("cache.max_pending_age", 10*time.Second)
	viper.SetDefault("cache.sweep_interval", 30*time.Second)
	viper.SetDefault("cache.applied_ttl", 24*time.Hour)

	viper.SetDefault("ledger.welcome_bonus", "10")

	viper.SetDefault("cron.reconcile_spec", "@every 5m")
}
