package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/clintpurser/frankahw/bridge"
)

// envPrefix prefixes environment overrides, e.g. FRANKAHW_RATE_HZ.
const envPrefix = "FRANKAHW"

type benchConfig struct {
	RateHz        float64       `mapstructure:"rate_hz"`
	Duration      time.Duration `mapstructure:"duration"`
	ConsumerDelay time.Duration `mapstructure:"consumer_delay"`
	FaultEvery    int           `mapstructure:"fault_every"`
	ReadLatency   time.Duration `mapstructure:"read_latency"`
	TelemetryFile string        `mapstructure:"telemetry_file"`
}

// loadConfig reads flags, FRANKAHW_* environment variables and an optional YAML file, in
// that order of precedence.
func loadConfig(args []string) (*benchConfig, error) {
	fs := pflag.NewFlagSet("statebench", pflag.ContinueOnError)
	fs.Float64("rate_hz", bridge.DefaultControlRate, "control loop rate in Hz")
	fs.Duration("duration", 5*time.Second, "how long to run")
	fs.Duration("consumer_delay", 3*time.Millisecond, "time the joint_states consumer spends on each message")
	fs.Int("fault_every", 0, "make every n-th source read fail, 0 disables")
	fs.Duration("read_latency", 0, "latency added to every source read")
	fs.String("telemetry_file", "", "write franka_states as JSON lines to this file")
	configFile := fs.String("config", "", "optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", *configFile)
		}
	}

	var cfg benchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if cfg.RateHz <= 0 {
		return nil, errors.Errorf("rate_hz must be positive, got %v", cfg.RateHz)
	}
	if cfg.Duration <= 0 {
		return nil, errors.Errorf("duration must be positive, got %v", cfg.Duration)
	}
	return &cfg, nil
}
