// Package config loads the prover's runtime configuration: bind address,
// notary key path, zk artifact directory, host policy, and the
// concurrency/rate-limit knobs from §5 of the spec.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of environment-overridable settings for the
// prover service. Field names map to PROVER_* environment variables via
// viper's automatic-env binding, and to the mapstructure tags below for
// config-file loading. NotaryKeyPath and ZkDir are also read from the
// unprefixed NOTARY_KEY_PATH and ZK_DIR variables.
type Config struct {
	Bind string `mapstructure:"bind" json:"bind"`
	Port int    `mapstructure:"port" json:"port"`

	NotaryKeyPath string `mapstructure:"notary_key_path" json:"notary_key_path"`
	ZkDir         string `mapstructure:"zk_dir" json:"zk_dir"`

	// HostAllowList, if non-empty, is the only set of hosts the SSRF
	// guard will permit; HostDenyList is checked first and always wins.
	HostAllowList []string `mapstructure:"host_allow_list" json:"host_allow_list"`
	HostDenyList  []string `mapstructure:"host_deny_list" json:"host_deny_list"`

	// AllowedPorts lists non-443 ports permitted for the origin
	// connection when explicitly configured (spec.md §4.1).
	AllowedPorts []int `mapstructure:"allowed_ports" json:"allowed_ports"`

	MaxConcurrentSessions int           `mapstructure:"max_concurrent_sessions" json:"max_concurrent_sessions"`
	PerIPRatePerSecond    float64       `mapstructure:"per_ip_rate_per_second" json:"per_ip_rate_per_second"`
	PerIPBurst            int           `mapstructure:"per_ip_burst" json:"per_ip_burst"`
	SessionDeadline       time.Duration `mapstructure:"session_deadline" json:"session_deadline"`

	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	PrettyLog bool   `mapstructure:"pretty_log" json:"pretty_log"`

	DevInsecureSetup bool `mapstructure:"dev_insecure_setup" json:"dev_insecure_setup"`
}

// DefaultConfig mirrors the defaults a fresh deployment should start from.
func DefaultConfig() *Config {
	return &Config{
		Bind:                  "0.0.0.0",
		Port:                  8443,
		NotaryKeyPath:         "./data/notary.key",
		ZkDir:                 "./data/zk",
		HostAllowList:         nil,
		HostDenyList:          nil,
		AllowedPorts:          nil,
		MaxConcurrentSessions: 32,
		PerIPRatePerSecond:    1,
		PerIPBurst:            5,
		SessionDeadline:       60 * time.Second,
		LogLevel:              "info",
		PrettyLog:             false,
		DevInsecureSetup:      false,
	}
}

// Load reads configuration from an optional config file (or directory
// containing config.json) layered over DefaultConfig, with PROVER_*
// environment variables taking precedence over both.
func Load(configPath ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("PROVER")
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("bind", def.Bind)
	v.SetDefault("port", def.Port)
	v.SetDefault("notary_key_path", def.NotaryKeyPath)
	v.SetDefault("zk_dir", def.ZkDir)
	v.SetDefault("max_concurrent_sessions", def.MaxConcurrentSessions)
	v.SetDefault("per_ip_rate_per_second", def.PerIPRatePerSecond)
	v.SetDefault("per_ip_burst", def.PerIPBurst)
	v.SetDefault("session_deadline", def.SessionDeadline)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("pretty_log", def.PrettyLog)
	v.SetDefault("dev_insecure_setup", def.DevInsecureSetup)
	v.SetDefault("host_allow_list", def.HostAllowList)
	v.SetDefault("host_deny_list", def.HostDenyList)
	v.SetDefault("allowed_ports", def.AllowedPorts)
	_ = v.BindEnv("notary_key_path", "NOTARY_KEY_PATH")
	_ = v.BindEnv("zk_dir", "ZK_DIR")

	if len(configPath) == 1 && configPath[0] != "" {
		path := configPath[0]
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				// No config file is fine; defaults + env apply.
			} else {
				return nil, fmt.Errorf("error accessing config path %s: %w", path, err)
			}
		} else if info.IsDir() {
			v.SetConfigName("config")
			v.AddConfigPath(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
