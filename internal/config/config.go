package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all environment backed configuration for the engine.
type Config struct {
	// Remote endpoint
	APIURL             string        `env:"API_URL"`
	APIKey             string        `env:"API_KEY"`
	APIKeyEnvVar       string        `env:"API_KEY_ENV_VAR"`
	NumWorkers         int           `env:"NUM_WORKERS" envDefault:"10"`
	ConnectionTimeout  time.Duration `env:"CONNECTION_TIMEOUT" envDefault:"20s"`
	MaxRetries         int           `env:"MAX_RETRIES" envDefault:"3"`
	PolitenessInterval time.Duration `env:"POLITENESS_INTERVAL" envDefault:"0s"`
	CompletionWindow   string        `env:"COMPLETION_WINDOW" envDefault:"24h"`

	// Optional YAML endpoint file; values from it fill unset fields above.
	EndpointFile string `env:"ENDPOINT_FILE"`

	// Output
	OutputPath string `env:"OUTPUT_PATH"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if file := strings.TrimSpace(cfg.EndpointFile); file != "" {
		endpoint, err := LoadEndpointFile(file)
		if err != nil {
			return nil, fmt.Errorf("load endpoint file: %w", err)
		}
		cfg.applyEndpoint(endpoint)
	}

	if err := cfg.Remote().Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Remote assembles the endpoint configuration consumed by the engine.
func (c *Config) Remote() RemoteEndpoint {
	return RemoteEndpoint{
		APIURL: c.APIURL,
		Credential: Credential{
			Value:  c.APIKey,
			EnvVar: c.APIKeyEnvVar,
		},
		NumWorkers:         c.NumWorkers,
		ConnectionTimeout:  c.ConnectionTimeout,
		MaxRetries:         c.MaxRetries,
		PolitenessInterval: c.PolitenessInterval,
		CompletionWindow:   c.CompletionWindow,
	}
}

func (c *Config) applyEndpoint(endpoint *RemoteEndpoint) {
	if c.APIURL == "" {
		c.APIURL = endpoint.APIURL
	}
	if c.APIKey == "" {
		c.APIKey = endpoint.Credential.Value
	}
	if c.APIKeyEnvVar == "" {
		c.APIKeyEnvVar = endpoint.Credential.EnvVar
	}
	if endpoint.NumWorkers > 0 {
		c.NumWorkers = endpoint.NumWorkers
	}
	if endpoint.ConnectionTimeout > 0 {
		c.ConnectionTimeout = endpoint.ConnectionTimeout
	}
	if endpoint.MaxRetries > 0 {
		c.MaxRetries = endpoint.MaxRetries
	}
	if endpoint.PolitenessInterval > 0 {
		c.PolitenessInterval = endpoint.PolitenessInterval
	}
	if endpoint.CompletionWindow != "" {
		c.CompletionWindow = endpoint.CompletionWindow
	}
}

// RemoteEndpoint describes the remote OpenAI-compatible service and the
// client-side limits applied when talking to it.
type RemoteEndpoint struct {
	APIURL             string        `yaml:"api_url"`
	Credential         Credential    `yaml:"credential"`
	NumWorkers         int           `yaml:"num_workers"`
	ConnectionTimeout  time.Duration `yaml:"connection_timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	PolitenessInterval time.Duration `yaml:"politeness_interval"`
	CompletionWindow   string        `yaml:"completion_window"`
}

// Validate checks the endpoint configuration before a run starts.
func (r RemoteEndpoint) Validate() error {
	if strings.TrimSpace(r.APIURL) == "" {
		return errors.New("API_URL must be provided")
	}
	if _, err := url.ParseRequestURI(r.APIURL); err != nil {
		return fmt.Errorf("API_URL is not a valid URL: %w", err)
	}
	if r.NumWorkers <= 0 {
		return errors.New("NUM_WORKERS must be positive")
	}
	if r.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must not be negative")
	}
	if r.ConnectionTimeout < 0 || r.PolitenessInterval < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// LoadEndpointFile reads a YAML endpoint description from disk.
func LoadEndpointFile(path string) (*RemoteEndpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	endpoint := &RemoteEndpoint{}
	if err := yaml.Unmarshal(data, endpoint); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return endpoint, nil
}

// Credential resolves a bearer token from a literal value or, if absent,
// from a named environment variable.
type Credential struct {
	Value  string `yaml:"value"`
	EnvVar string `yaml:"env_var"`
}

// EnvLookup reads a named environment value. It exists so tests can resolve
// credentials without touching the process environment.
type EnvLookup func(name string) (string, bool)

// Resolve returns the bearer token. A nil lookup falls back to os.LookupEnv.
// An empty result means requests go out without a usable token.
func (c Credential) Resolve(lookup EnvLookup) string {
	if c.Value != "" {
		return c.Value
	}
	if c.EnvVar == "" {
		return ""
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, _ := lookup(c.EnvVar)
	return value
}
