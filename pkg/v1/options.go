package v1

import (
	"github.com/4thel00z/gitsync/internal"
	"github.com/rs/zerolog"
)

// Config is the sync configuration: remote, commit author, message format
// and transport.
type Config = internal.Config

// Identity is a commit author.
type Identity = internal.Identity

// TransportOptions and TransportSetter customize fetch and push.
type (
	TransportOptions = internal.TransportOptions
	TransportSetter  = internal.TransportSetter
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return internal.DefaultConfig()
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	config      *internal.Config
	configFiles []string
	logger      zerolog.Logger
	setter      internal.TransportSetter
	branch      string
}

// WithConfig uses cfg instead of loading config files.
func WithConfig(cfg *Config) Option {
	return func(c *clientConfig) {
		c.config = cfg
	}
}

// WithConfigFile layers an extra config file over the user and repository
// config.
func WithConfigFile(path string) Option {
	return func(c *clientConfig) {
		c.configFiles = append(c.configFiles, path)
	}
}

// WithLogger sets the logger every sync component writes to. Without it the
// client does not log.
func WithLogger(l zerolog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithTransportSetter replaces the transport setup derived from the config,
// e.g. to inject credentials.
func WithTransportSetter(s TransportSetter) Option {
	return func(c *clientConfig) {
		c.setter = s
	}
}

// WithBranch sets the initial branch for Init.
func WithBranch(name string) Option {
	return func(c *clientConfig) {
		c.branch = name
	}
}
