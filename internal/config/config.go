// ABOUTME: Configuration loading and validation for the server daemon and CLI client
// ABOUTME: YAML through viper with defaults; yaml.v3 renders the effective config

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	BindAddress   string `mapstructure:"bind_address" yaml:"bind_address"`
	MaxClients    int    `mapstructure:"max_clients" yaml:"max_clients"`
	ReadTimeoutMS int    `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
}

type ClientConfig struct {
	PeerAddress    string `mapstructure:"peer_address" yaml:"peer_address"`
	ReadBufferSize int    `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

const (
	DefaultReadTimeoutMS  = 60000
	DefaultReadBufferSize = 4096
	DefaultMaxClients     = 64
)

// ReadTimeout returns the server idle timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// Load reads a YAML config file, applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.bind_address", "127.0.0.1:7421")
	v.SetDefault("server.max_clients", DefaultMaxClients)
	v.SetDefault("server.read_timeout_ms", DefaultReadTimeoutMS)
	v.SetDefault("client.read_buffer_size", DefaultReadBufferSize)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.MaxClients <= 0 {
		return nil, fmt.Errorf("invalid server.max_clients: %d (must be positive)", cfg.Server.MaxClients)
	}
	if cfg.Server.ReadTimeoutMS <= 0 {
		return nil, fmt.Errorf("invalid server.read_timeout_ms: %d (must be positive)", cfg.Server.ReadTimeoutMS)
	}
	if cfg.Client.ReadBufferSize <= 0 {
		return nil, fmt.Errorf("invalid client.read_buffer_size: %d (must be positive)", cfg.Client.ReadBufferSize)
	}
	if cfg.Client.PeerAddress == "" {
		cfg.Client.PeerAddress = cfg.Server.BindAddress
	}

	return &cfg, nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
