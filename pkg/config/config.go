package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gitsby/yarg/pkg/extraction"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type ScriptConfig struct {
	AllowedImports []string `mapstructure:"allowed_imports"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Config struct {
	Parallelism int          `mapstructure:"parallelism"`
	CellPolicy  string       `mapstructure:"cell_policy"`
	LogLevel    string       `mapstructure:"log_level"`
	Datasources string       `mapstructure:"datasources"`
	ReportsDir  string       `mapstructure:"reports_dir"`
	HistoryDB   string       `mapstructure:"history_db"` // sqlite file of the run history; empty disables it
	Script      ScriptConfig `mapstructure:"script"`
	Server      ServerConfig `mapstructure:"server"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("parallelism", runtime.NumCPU())
	v.SetDefault("cell_policy", "null")
	v.SetDefault("log_level", "info")
	v.SetDefault("datasources", "")
	v.SetDefault("reports_dir", "reports")
	v.SetDefault("history_db", "")
	v.SetDefault("script.allowed_imports", []string{})
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 0)
}

// LoadConfig reads the engine configuration. An empty path uses defaults;
// YARG_* environment variables override both, e.g. YARG_SCRIPT_ALLOWED_IMPORTS.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("yarg")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yarg config: %w", err)
	}
	if cfg.Parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", cfg.Parallelism)
	}
	return &cfg, nil
}

// Settings converts the configuration into extraction settings.
func (c *Config) Settings() (extraction.Settings, error) {
	policy, err := extraction.ParseCellPolicy(c.CellPolicy)
	if err != nil {
		return extraction.Settings{}, err
	}
	return extraction.Settings{
		Parallelism: c.Parallelism,
		CellPolicy:  policy,
	}, nil
}

func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
