package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthorName    = "gitsync"
	DefaultAuthorEmail   = "gitsync@local"
	DefaultMessageFormat = "gitsync update: %s"
)

// Config is the read-only configuration handed to the coordinator.
type Config struct {
	Remote    string          `yaml:"remote"`
	Author    Identity        `yaml:"author"`
	Message   string          `yaml:"message"`
	Transport TransportConfig `yaml:"transport"`
}

func DefaultConfig() *Config {
	return &Config{
		Remote: DefaultRemote,
		Author: Identity{
			Name:  DefaultAuthorName,
			Email: DefaultAuthorEmail,
		},
		Message:   DefaultMessageFormat,
		Transport: TransportConfig{Auth: AuthNone},
	}
}

// LoadConfig layers the given files over the defaults. Later files win and
// missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, wrapError(CodeConfigInvalid, "parse "+path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote) == "" {
		return newError(CodeConfigInvalid, "validate config", "remote must not be empty")
	}
	if c.Author.Name == "" || c.Author.Email == "" {
		return newError(CodeConfigInvalid, "validate config", "author name and email are required")
	}
	if strings.Count(c.Message, "%s") > 1 || strings.Contains(strings.ReplaceAll(c.Message, "%s", ""), "%") {
		return newError(CodeConfigInvalid, "validate config", "message may contain at most one %%s and no other verbs")
	}
	switch c.Transport.Auth {
	case "", AuthNone, AuthBasic, AuthToken, AuthSSHAgent:
	case AuthSSHKey:
		if c.Transport.SSHKey == "" {
			return newError(CodeConfigInvalid, "validate config", "ssh-key auth needs transport.ssh_key")
		}
	default:
		return newError(CodeConfigInvalid, "validate config", "unknown transport.auth %q", c.Transport.Auth)
	}
	return nil
}

// CommitMessage renders the message for a commit touching path.
func (c *Config) CommitMessage(path string) string {
	if strings.Contains(c.Message, "%s") {
		return fmt.Sprintf(c.Message, path)
	}
	return c.Message
}

// TransportSetter is applied to every fetch and push.
func (c *Config) TransportSetter() TransportSetter {
	return c.Transport.Setter()
}
