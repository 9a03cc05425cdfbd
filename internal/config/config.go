// Package config loads the settings shared by the producer and consumer
// binaries from a file, SYPHON_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	SourceDiscovery = "discovery"
	SourceScreen    = "screen"
	SourceMemory    = "memory"
)

type Config struct {
	Listen    string          `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`
	Source    string          `mapstructure:"source" yaml:"source" validate:"oneof=discovery screen memory"`
	Metrics   bool            `mapstructure:"metrics" yaml:"metrics"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Screen    ScreenConfig    `mapstructure:"screen" yaml:"screen"`
	Beacon    BeaconConfig    `mapstructure:"beacon" yaml:"beacon"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Consumer  ConsumerConfig  `mapstructure:"consumer" yaml:"consumer"`
}

type DiscoveryConfig struct {
	Port int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"min=100ms"`
}

type ScreenConfig struct {
	PollInterval time.Duration `mapstructure:"pollInterval" yaml:"pollInterval" validate:"min=50ms"`
}

// BeaconConfig describes the server announced by `syphon-directory beacon`.
type BeaconConfig struct {
	UUID     string        `mapstructure:"uuid" yaml:"uuid"`
	AppName  string        `mapstructure:"appName" yaml:"appName"`
	Name     string        `mapstructure:"name" yaml:"name"`
	Target   string        `mapstructure:"target" yaml:"target"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=100ms"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

type ConsumerConfig struct {
	URL          string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Placeholder  string        `mapstructure:"placeholder" yaml:"placeholder"`
	FetchTimeout time.Duration `mapstructure:"fetchTimeout" yaml:"fetchTimeout" validate:"min=100ms"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("source", SourceDiscovery)
	v.SetDefault("metrics", true)
	v.SetDefault("discovery.port", 47815)
	v.SetDefault("discovery.ttl", 10*time.Second)
	v.SetDefault("screen.pollInterval", 2*time.Second)
	v.SetDefault("beacon.uuid", "")
	v.SetDefault("beacon.appName", "")
	v.SetDefault("beacon.name", "")
	v.SetDefault("beacon.target", "")
	v.SetDefault("beacon.interval", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("consumer.url", "ws://127.0.0.1:8080/ws")
	v.SetDefault("consumer.placeholder", "Select a server...")
	v.SetDefault("consumer.fetchTimeout", 5*time.Second)
}

// Load reads path (any format viper knows; empty for none), overlays
// SYPHON_* variables such as SYPHON_LOG_LEVEL, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SYPHON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Render returns cfg as YAML.
func Render(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
