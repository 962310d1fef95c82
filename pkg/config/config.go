package config

// Package config provides a reusable loader for jstzd configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"jstzkernel/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a jstzd process. It mirrors
// the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		RollupAddress      string `mapstructure:"rollup_address" json:"rollup_address"`
		NativeTicketer     string `mapstructure:"native_ticketer" json:"native_ticketer"`
		WithdrawalContract string `mapstructure:"withdrawal_contract" json:"withdrawal_contract"`
		DebugListenAddr    string `mapstructure:"debug_listen_addr" json:"debug_listen_addr"`
	} `mapstructure:"network" json:"network"`

	VM struct {
		DefaultGasLimit uint64 `mapstructure:"default_gas_limit" json:"default_gas_limit"`
		MaxGasLimit     uint64 `mapstructure:"max_gas_limit" json:"max_gas_limit"`
	} `mapstructure:"vm" json:"vm"`

	Storage struct {
		Path        string `mapstructure:"path" json:"path"`
		OutboxBound int    `mapstructure:"outbox_bound" json:"outbox_bound"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // consults process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the JSTZD_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("JSTZD_ENV", ""))
}
