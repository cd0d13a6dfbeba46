// Package config loads the client config file shared by cmd/client.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultChannelBufferSize = 10

// Config is the on-disk/env configuration for a scenario client process.
type Config struct {
	Address           string `mapstructure:"address"`
	DispatchAddress   string `mapstructure:"dispatchAddress"`
	CertificatePath   string `mapstructure:"certificatePath"`
	ChannelBufferSize int    `mapstructure:"channelBufferSize"`
	Logging           string `mapstructure:"logging"`
}

// Load reads the config file at path, applying defaults and letting a local
// .env file (if present) seed environment overrides the way go-server-2
// does for local development.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("channelBufferSize", defaultChannelBufferSize)
	v.SetEnvPrefix("SAM_CLIENT")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Address == "" {
		return Config{}, fmt.Errorf("config: address is required")
	}
	if cfg.DispatchAddress == "" {
		return Config{}, fmt.Errorf("config: dispatchAddress is required")
	}
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = defaultChannelBufferSize
	}

	return cfg, nil
}
