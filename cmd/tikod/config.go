package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type mqttConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QoS       byte   `yaml:"qos"`
	Retain    bool   `yaml:"retain"`
}

// duration accepts "5m" style values in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}

type daemonConfig struct {
	Email          string     `yaml:"email"`
	Password       string     `yaml:"password"`
	BaseURL        string     `yaml:"base_url"`
	PollInterval   duration   `yaml:"poll_interval"`
	RequestTimeout duration   `yaml:"request_timeout"`
	HTTPAddr       string     `yaml:"http_addr"`
	MQTT           mqttConfig `yaml:"mqtt"`
}

// loadConfig reads the optional YAML config file, then applies TIKO_*
// environment overrides and defaults. Credentials may come from either
// source; the environment wins.
func loadConfig(path string) (daemonConfig, error) {
	var cfg daemonConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Email = envOrDefault("TIKO_EMAIL", cfg.Email)
	cfg.Password = envOrDefault("TIKO_PASSWORD", cfg.Password)
	cfg.BaseURL = envOrDefault("TIKO_BASE_URL", cfg.BaseURL)
	cfg.HTTPAddr = envOrDefault("TIKO_HTTP_ADDR", cfg.HTTPAddr)

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
