package internal

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// TransportOptions is the per-request transport configuration applied to
// fetch and push.
type TransportOptions struct {
	Auth            transport.AuthMethod
	InsecureSkipTLS bool
	CABundle        []byte
	ProxyOptions    transport.ProxyOptions
}

// TransportSetter configures a fetch or push before it runs.
type TransportSetter func(*TransportOptions) error

func applySetter(setter TransportSetter) (*TransportOptions, error) {
	opts := &TransportOptions{}
	if setter == nil {
		return opts, nil
	}
	if err := setter(opts); err != nil {
		return nil, wrapError(CodeTransportFailure, "configure transport", err)
	}
	return opts, nil
}

// ChainSetters applies setters in order.
func ChainSetters(setters ...TransportSetter) TransportSetter {
	return func(o *TransportOptions) error {
		for _, s := range setters {
			if s == nil {
				continue
			}
			if err := s(o); err != nil {
				return err
			}
		}
		return nil
	}
}

const (
	AuthNone     = "none"
	AuthBasic    = "basic"
	AuthToken    = "token"
	AuthSSHKey   = "ssh-key"
	AuthSSHAgent = "ssh-agent"
)

// TransportConfig is the transport section of Config.
type TransportConfig struct {
	Auth                string `yaml:"auth"`
	Username            string `yaml:"username,omitempty"`
	Password            string `yaml:"password,omitempty"`
	PasswordEnv         string `yaml:"password_env,omitempty"`
	SSHKey              string `yaml:"ssh_key,omitempty"`
	SSHKeyPassphraseEnv string `yaml:"ssh_key_passphrase_env,omitempty"`
	InsecureSkipTLS     bool   `yaml:"insecure_skip_tls,omitempty"`
	CAFile              string `yaml:"ca_file,omitempty"`
	ProxyURL            string `yaml:"proxy_url,omitempty"`
}

func (t TransportConfig) password() string {
	if t.PasswordEnv != "" {
		if v := os.Getenv(t.PasswordEnv); v != "" {
			return v
		}
	}
	return t.Password
}

func (t TransportConfig) authMethod() (transport.AuthMethod, error) {
	switch t.Auth {
	case "", AuthNone:
		return nil, nil
	case AuthBasic:
		return &http.BasicAuth{Username: t.Username, Password: t.password()}, nil
	case AuthToken:
		return &http.TokenAuth{Token: t.password()}, nil
	case AuthSSHKey:
		user := t.Username
		if user == "" {
			user = ssh.DefaultUsername
		}
		passphrase := ""
		if t.SSHKeyPassphraseEnv != "" {
			passphrase = os.Getenv(t.SSHKeyPassphraseEnv)
		}
		auth, err := ssh.NewPublicKeysFromFile(user, t.SSHKey, passphrase)
		if err != nil {
			return nil, fmt.Errorf("load ssh key: %w", err)
		}
		return auth, nil
	case AuthSSHAgent:
		user := t.Username
		if user == "" {
			user = ssh.DefaultUsername
		}
		auth, err := ssh.NewSSHAgentAuth(user)
		if err != nil {
			return nil, fmt.Errorf("ssh agent: %w", err)
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", t.Auth)
	}
}

// Setter builds the TransportSetter described by the config. Credentials are
// resolved lazily, per request.
func (t TransportConfig) Setter() TransportSetter {
	return func(o *TransportOptions) error {
		auth, err := t.authMethod()
		if err != nil {
			return err
		}
		if auth != nil {
			o.Auth = auth
		}
		o.InsecureSkipTLS = o.InsecureSkipTLS || t.InsecureSkipTLS
		if t.CAFile != "" {
			ca, err := os.ReadFile(t.CAFile)
			if err != nil {
				return fmt.Errorf("read ca file: %w", err)
			}
			o.CABundle = ca
		}
		if t.ProxyURL != "" {
			o.ProxyOptions = transport.ProxyOptions{
				URL:      t.ProxyURL,
				Username: t.Username,
				Password: t.password(),
			}
		}
		return nil
	}
}
