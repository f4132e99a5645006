package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type MediaConfig struct {
	BufferBytes  int  `mapstructure:"buffer_bytes"`
	StrictSource bool `mapstructure:"strict_source"`
	LearnPorts   bool `mapstructure:"learn_ports"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	ControlAddr string `mapstructure:"control_addr"`
	MediaAddr   string `mapstructure:"media_addr"`
	HTTPAddr    string `mapstructure:"http_addr"`
	Secret      string `mapstructure:"secret"`

	DBPath     string `mapstructure:"db_path"`
	DBPoolSize int    `mapstructure:"db_pool_size"`

	SendQueue     int           `mapstructure:"send_queue"`
	MaxFrameBytes int           `mapstructure:"max_frame_bytes"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`

	LoginAttempts int           `mapstructure:"login_attempts"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	HistoryLimit  int           `mapstructure:"history_limit"`

	Media MediaConfig `mapstructure:"media"`
}

const envPrefix = "RENDEZVOUS"

// flag name -> config key
var flagKeys = map[string]string{
	"control-addr": "control_addr",
	"media-addr":   "media_addr",
	"http-addr":    "http_addr",
	"db":           "db_path",
	"log-level":    "log_level",
}

// Flags returns the command-line flags Load understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rendezvous", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file (default config/config.$CONFIG_ENV.yaml)")
	fs.String("control-addr", "", "TCP control listener address")
	fs.String("media-addr", "", "UDP media relay address")
	fs.String("http-addr", "", "HTTP status/WebSocket address")
	fs.String("db", "", "SQLite database path")
	fs.String("log-level", "", "trace|debug|info|warn|error")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("control_addr", ":12345")
	v.SetDefault("media_addr", ":12346")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("secret", "")
	v.SetDefault("db_path", "./data/rendezvous.db")
	v.SetDefault("db_pool_size", 4)
	v.SetDefault("send_queue", 64)
	v.SetDefault("max_frame_bytes", 65536)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("login_attempts", 5)
	v.SetDefault("login_window", "1m")
	v.SetDefault("history_limit", 200)
	v.SetDefault("media.buffer_bytes", 65536)
	v.SetDefault("media.strict_source", false)
	v.SetDefault("media.learn_ports", true)
}

// Load reads the config file at path, or config/config.<CONFIG_ENV>.yaml
// when path is empty, then applies RENDEZVOUS_* environment overrides.
func Load(path string) (*Config, error) {
	return LoadFlags(path, nil)
}

// LoadFlags is Load with explicitly set flags from fs taking precedence.
func LoadFlags(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	explicit := path != ""
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound *os.PathError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var ErrInvalid = errors.New("invalid config")

func (c *Config) Validate() error {
	var errs []error
	if c.ControlAddr == "" {
		errs = append(errs, errors.New("control_addr is empty"))
	}
	if c.MediaAddr == "" {
		errs = append(errs, errors.New("media_addr is empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is empty"))
	}
	if c.DBPoolSize < 1 {
		errs = append(errs, errors.New("db_pool_size must be at least 1"))
	}
	if c.SendQueue < 1 {
		errs = append(errs, errors.New("send_queue must be at least 1"))
	}
	if c.MaxFrameBytes < 64 {
		errs = append(errs, errors.New("max_frame_bytes must be at least 64"))
	}
	if c.WriteTimeout <= 0 || c.PingPeriod <= 0 || c.LoginWindow <= 0 {
		errs = append(errs, errors.New("write_timeout, ping_period and login_window must be positive"))
	}
	if c.Media.BufferBytes < 256 || c.Media.BufferBytes > 65536 {
		errs = append(errs, errors.New("media.buffer_bytes must be within 256..65536"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
