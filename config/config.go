// Package config loads runtime settings from an optional yaml file, NOVEL_*
// environment variables and built-in defaults, in that order of precedence
// (env wins over file).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Download  DownloadConfig  `mapstructure:"download"`
	AI        AIConfig        `mapstructure:"ai"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type WorkspaceConfig struct {
	// Root receives app.log when a command does not name a workspace.
	Root string `mapstructure:"root"`
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
}

type BrowserConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	ExecPath string        `mapstructure:"exec_path"`
	DebugDir string        `mapstructure:"debug_dir"`
}

type DownloadConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	ChapterDelay time.Duration `mapstructure:"chapter_delay"`
}

type AIConfig struct {
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads path when non-empty. A missing explicit file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("failed to load default config: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:1420")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("workspace.root", "")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.batch_timeout", 10*time.Second)
	v.SetDefault("http.retry_count", 2)

	v.SetDefault("browser.timeout", 45*time.Second)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.debug_dir", "")

	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.retry_delay", 500*time.Millisecond)
	v.SetDefault("download.chapter_delay", 200*time.Millisecond)

	v.SetDefault("ai.temperature", 0.7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
