package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Addr             string        `mapstructure:"addr"`
	MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
	Autostart        bool          `mapstructure:"autostart"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
	EvictInterval    time.Duration `mapstructure:"evict_interval"`
	ProcPath         string        `mapstructure:"proc_path"`
	SkipLoopback     bool          `mapstructure:"skip_loopback"`
	Interfaces       []string      `mapstructure:"interfaces"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	BusBuffer        int           `mapstructure:"bus_buffer"`
	NotifyAttempts   int           `mapstructure:"notify_attempts"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   string        `mapstructure:"telegram_chat_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("monitor_interval", "1s")
	v.SetDefault("autostart", true)
	v.SetDefault("history_retention", "1h")
	v.SetDefault("evict_interval", "10m")
	v.SetDefault("proc_path", "/proc")
	v.SetDefault("skip_loopback", true)
	v.SetDefault("interfaces", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("bus_buffer", 256)
	v.SetDefault("notify_attempts", 3)
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", "")
}

// RegisterFlags declares the command line overrides. Flag names are the
// config keys with dashes.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml, toml or json)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.Duration("monitor-interval", time.Second, "sampling interval")
	fs.Bool("autostart", true, "start sampling on boot")
	fs.Duration("history-retention", time.Hour, "how long samples are kept")
	fs.Duration("evict-interval", 10*time.Minute, "how often old samples are evicted")
	fs.String("proc-path", "/proc", "procfs mount point")
	fs.Bool("skip-loopback", true, "ignore the loopback interface")
	fs.StringSlice("interfaces", nil, "only sample these interfaces")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "json", "json or text")
}

// Load resolves configuration from flags, APP_* environment variables, an
// optional config file and defaults, in that order of precedence.
func Load(configFile string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	_ = v.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("netwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/netwatch/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Interfaces = splitInterfaces(cfg.Interfaces)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitInterfaces accepts both list values and a single comma separated
// string, which is what APP_INTERFACES usually carries.
func splitInterfaces(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, name := range strings.Split(item, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"monitor_interval", c.MonitorInterval},
		{"history_retention", c.HistoryRetention},
		{"evict_interval", c.EvictInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.BusBuffer <= 0 {
		return fmt.Errorf("bus_buffer must be positive, got %d", c.BusBuffer)
	}
	if c.NotifyAttempts <= 0 {
		return fmt.Errorf("notify_attempts must be positive, got %d", c.NotifyAttempts)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return lvl, nil
}

// TelegramEnabled reports whether both credentials are present.
func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}
