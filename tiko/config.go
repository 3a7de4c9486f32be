package tiko

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://particuliers-tiko.fr"
	defaultPollInterval   = 5 * time.Minute
	defaultRequestTimeout = 15 * time.Second
)

// Set-point bounds accepted by the service's thermostats.
const (
	MinTemperature  = 7.0
	MaxTemperature  = 28.0
	TemperatureStep = 0.5
)

// Credentials identify the account. Immutable for the lifetime of a
// session.
type Credentials struct {
	Email    string
	Password string
}

// Config defines runtime configuration for the client and coordinator.
type Config struct {
	Credentials    Credentials
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Credentials.Email) == "" {
		return fmt.Errorf("tiko email is required")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("tiko password is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}
