package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"number-stock-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Target      TargetConfig      `mapstructure:"target"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Purchase    PurchaseConfig    `mapstructure:"purchase"`
	Email       EmailConfig       `mapstructure:"email"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	State       StateConfig       `mapstructure:"state"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MarketplaceConfig covers OnlineSim API connectivity.
type MarketplaceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TargetConfig selects the monitored service/country pair.
type TargetConfig struct {
	Service string `mapstructure:"service"`
	Country int    `mapstructure:"country"`
}

// MonitorConfig governs polling cadence and notification cooldowns.
type MonitorConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// PurchaseConfig controls automatic number purchasing.
type PurchaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Quantity       int           `mapstructure:"quantity"`
	Delay          time.Duration `mapstructure:"delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EmailConfig 描述 SMTP 邮件通知参数。
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// StateConfig locates the flat-file persistence paths.
type StateConfig struct {
	Path          string `mapstructure:"path"`
	PurchasesPath string `mapstructure:"purchases_path"`
}

// DatabaseConfig encapsulates optional PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIMWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "simwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("marketplace.base_url", "https://onlinesim.io/api")
	v.SetDefault("marketplace.request_timeout", "15s")
	v.SetDefault("marketplace.user_agent", "simwatcher/1.0")

	v.SetDefault("target.service", "foodora")
	v.SetDefault("target.country", 36)

	v.SetDefault("monitor.poll_interval", "5m")
	v.SetDefault("monitor.cooldown", "1h")
	v.SetDefault("monitor.recheck_interval", "30m")
	v.SetDefault("monitor.startup_delay", "0s")

	v.SetDefault("purchase.enabled", false)
	v.SetDefault("purchase.quantity", 2)
	v.SetDefault("purchase.delay", "1s")
	v.SetDefault("purchase.request_timeout", "30s")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("state.path", "state.json")
	v.SetDefault("state.purchases_path", "purchased_numbers.json")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Marketplace.APIKey == "" {
		return fmt.Errorf("marketplace.api_key is required")
	}
	if c.Target.Service == "" {
		return fmt.Errorf("target.service is required")
	}
	if c.Target.Country <= 0 {
		return fmt.Errorf("target.country must be a positive calling code")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be greater than zero")
	}
	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor.cooldown must be greater than zero")
	}
	if c.Monitor.RecheckInterval <= 0 {
		return fmt.Errorf("monitor.recheck_interval must be greater than zero")
	}
	if c.Monitor.RecheckInterval > c.Monitor.Cooldown {
		return fmt.Errorf("monitor.recheck_interval must not exceed monitor.cooldown")
	}
	if c.Purchase.Quantity < 0 {
		return fmt.Errorf("purchase.quantity cannot be negative")
	}
	if c.State.Path == "" && c.Database.DSN == "" {
		return fmt.Errorf("state.path is required when database.dsn is not set")
	}
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host 必须配置")
		}
		if c.Email.From == "" || c.Email.To == "" {
			return fmt.Errorf("email.from 与 email.to 必须配置")
		}
		if c.Email.Password == "" {
			return fmt.Errorf("email.password 必须配置")
		}
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token 必须配置")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id 必须配置")
		}
	}
	return nil
}
