// Package monitor carries the file-based tuning configuration for the
// symptom pipeline: model artifact locations, alert throttling and the
// narrative backend settings.
package monitor

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelPaths points at the linear model artifacts, one per symptom. Empty
// entries leave the heuristic scorer in place for that symptom.
type ModelPaths struct {
	Tremor   string `yaml:"tremor"`
	Rigidity string `yaml:"rigidity"`
	Slowness string `yaml:"slowness"`
	Gait     string `yaml:"gait"`
}

// AlertConfig tunes narrative generation.
type AlertConfig struct {
	CallsPerMinute        int               `yaml:"calls_per_minute"`
	BackendModel          string            `yaml:"backend_model"`
	BackendTimeoutSeconds int               `yaml:"backend_timeout_seconds"`
	Knowledge             map[string]string `yaml:"knowledge"`
}

// BackendTimeout converts the configured timeout to a duration. Zero means
// use the generator default.
func (c AlertConfig) BackendTimeout() time.Duration {
	if c.BackendTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// Config defines the monitor configuration.
type Config struct {
	Models ModelPaths  `yaml:"models"`
	Alerts AlertConfig `yaml:"alerts"`
}

// LoadConfig loads config from yaml or env. The yaml file named by
// MONITOR_CONFIG wins over env defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Models: ModelPaths{
			Tremor:   os.Getenv("MODEL_TREMOR_PATH"),
			Rigidity: os.Getenv("MODEL_RIGIDITY_PATH"),
			Slowness: os.Getenv("MODEL_SLOWNESS_PATH"),
			Gait:     os.Getenv("MODEL_GAIT_PATH"),
		},
		Alerts: AlertConfig{
			CallsPerMinute:        getenvIntDefault("ALERT_CALLS_PER_MINUTE", 30),
			BackendModel:          os.Getenv("ALERT_BACKEND_MODEL"),
			BackendTimeoutSeconds: getenvIntDefault("ALERT_BACKEND_TIMEOUT_SECONDS", 0),
		},
	}

	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Alerts.CallsPerMinute <= 0 {
		cfg.Alerts.CallsPerMinute = 30
	}
	return cfg, nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
