package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Black-And-White-Club/pubsub-bridge/app/bridge"
	"gopkg.in/yaml.v3"
)

// Broker providers.
const (
	ProviderGCP       = "gcp"
	ProviderJetStream = "jetstream"
)

// Downstream kinds.
const (
	DownstreamDispatch  = "dispatch"
	DownstreamInProcess = "inprocess"
	DownstreamNATS      = "nats"
)

const defaultTopic = "bridge.inbound"

// Config struct to hold the configuration settings
type Config struct {
	Bridge        BridgeConfig        `yaml:"bridge"`
	PubSub        PubSubConfig        `yaml:"pubsub"`
	NATS          NATSConfig          `yaml:"nats"`
	Downstream    DownstreamConfig    `yaml:"downstream"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BridgeConfig selects the subscription and its acknowledgement mode.
type BridgeConfig struct {
	Provider string `yaml:"provider"` // gcp|jetstream
	AckMode  string `yaml:"ack_mode"` // auto|manual
	// Project is the GCP project, or the stream for jetstream.
	Project string `yaml:"project"`
	// Subscription is the GCP subscription, or the durable consumer for jetstream.
	Subscription string `yaml:"subscription"`
}

// PubSubConfig holds Google Cloud Pub/Sub settings.
type PubSubConfig struct {
	CredentialsFile        string `yaml:"credentials_file"`
	EmulatorHost           string `yaml:"emulator_host"`
	MaxOutstandingMessages int    `yaml:"max_outstanding_messages"`
	NumGoroutines          int    `yaml:"num_goroutines"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL             string `yaml:"url"`
	NKeySeed        string `yaml:"nkey_seed"`
	CredsFile       string `yaml:"creds_file"`
	Token           string `yaml:"token"`
	PullMaxMessages int    `yaml:"pull_max_messages"`
}

// DownstreamConfig selects where bridged messages go.
type DownstreamConfig struct {
	Kind       string `yaml:"kind"` // dispatch|inprocess|nats
	Topic      string `yaml:"topic"`
	MaxRetries int    `yaml:"max_retries"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"` // empty disables the metrics server
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json|text
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	if os.Getenv("PUBSUB_SUBSCRIPTION") == "" {
		return nil, fmt.Errorf("PUBSUB_SUBSCRIPTION environment variable not set")
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// applyEnv overrides cfg with environment variables that are present.
func applyEnv(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"BRIDGE_PROVIDER", &cfg.Bridge.Provider},
		{"BRIDGE_ACK_MODE", &cfg.Bridge.AckMode},
		{"PUBSUB_PROJECT", &cfg.Bridge.Project},
		{"PUBSUB_SUBSCRIPTION", &cfg.Bridge.Subscription},
		{"GOOGLE_APPLICATION_CREDENTIALS", &cfg.PubSub.CredentialsFile},
		{"PUBSUB_EMULATOR_HOST", &cfg.PubSub.EmulatorHost},
		{"NATS_URL", &cfg.NATS.URL},
		{"NATS_NKEY_SEED", &cfg.NATS.NKeySeed},
		{"NATS_CREDS_FILE", &cfg.NATS.CredsFile},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"DOWNSTREAM_KIND", &cfg.Downstream.Kind},
		{"DOWNSTREAM_TOPIC", &cfg.Downstream.Topic},
		{"METRICS_ADDRESS", &cfg.Observability.MetricsAddress},
		{"LOG_LEVEL", &cfg.Observability.LogLevel},
		{"LOG_FORMAT", &cfg.Observability.LogFormat},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"PUBSUB_MAX_OUTSTANDING_MESSAGES", &cfg.PubSub.MaxOutstandingMessages},
		{"PUBSUB_NUM_GOROUTINES", &cfg.PubSub.NumGoroutines},
		{"NATS_PULL_MAX_MESSAGES", &cfg.NATS.PullMaxMessages},
		{"DOWNSTREAM_MAX_RETRIES", &cfg.Downstream.MaxRetries},
	}
	for _, i := range ints {
		v := os.Getenv(i.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %v", i.env, err)
		}
		*i.dst = n
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Bridge.Provider == "" {
		c.Bridge.Provider = ProviderGCP
	}
	if c.Downstream.Kind == "" {
		c.Downstream.Kind = DownstreamInProcess
	}
	if c.Downstream.Topic == "" {
		c.Downstream.Topic = defaultTopic
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// AckMode parses Bridge.AckMode.
func (c *Config) AckMode() (bridge.AckMode, error) {
	return bridge.ParseAckMode(c.Bridge.AckMode)
}

// SubscriptionName returns the configured subscription.
func (c *Config) SubscriptionName() bridge.SubscriptionName {
	return bridge.SubscriptionName{Project: c.Bridge.Project, Name: c.Bridge.Subscription}
}

// Validate reports every configuration problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Bridge.Project) == "" {
		errs = append(errs, errors.New("bridge.project is required"))
	}
	if strings.TrimSpace(c.Bridge.Subscription) == "" {
		errs = append(errs, errors.New("bridge.subscription is required"))
	}

	mode, err := c.AckMode()
	if err != nil {
		errs = append(errs, err)
	}

	switch c.Bridge.Provider {
	case ProviderGCP:
	case ProviderJetStream:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the jetstream provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown bridge.provider %q", c.Bridge.Provider))
	}

	switch c.Downstream.Kind {
	case DownstreamDispatch, DownstreamInProcess:
	case DownstreamNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats downstream"))
		}
		if err == nil && mode == bridge.AckModeManual {
			errs = append(errs, errors.New("manual ack mode cannot be used with the nats downstream"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown downstream.kind %q", c.Downstream.Kind))
	}

	if c.Downstream.MaxRetries < 0 {
		errs = append(errs, errors.New("downstream.max_retries must not be negative"))
	}

	return errors.Join(errs...)
}
