package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"

	"github.com/apereiratl/marten/internal/retry"
	"github.com/apereiratl/marten/pkg/marten"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	SearchPath     string `yaml:"search_path,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

type RetryConfig struct {
	// Attempts is the number of retries after the first attempt.
	Attempts int `yaml:"attempts"`
	// TransientOnly limits retries to connection and serialization failures.
	// Defaults to true.
	TransientOnly *bool `yaml:"transient_only,omitempty"`
}

type SessionConfig struct {
	Mode           string      `yaml:"mode"`
	Isolation      string      `yaml:"isolation"`
	CommandTimeout string      `yaml:"command_timeout"`
	Retry          RetryConfig `yaml:"retry"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Session    SessionConfig    `yaml:"session"`
}

const ConfigFileName = "marten.yaml"

func Load(sourcePath string) (*ProjectConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", configPath, marten.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// SessionSettings is a validated SessionConfig.
type SessionSettings struct {
	Mode           marten.Mode
	Isolation      pgx.TxIsoLevel
	CommandTimeout time.Duration
	Retry          marten.RetryPolicy
}

// Resolve validates the session section. Every problem is reported.
func (s SessionConfig) Resolve() (*SessionSettings, error) {
	var errs []error
	settings := &SessionSettings{}

	mode, err := marten.ParseMode(s.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	settings.Mode = mode

	isolation, err := marten.ParseIsolationLevel(s.Isolation)
	if err != nil {
		errs = append(errs, err)
	}
	settings.Isolation = isolation

	if s.CommandTimeout != "" {
		timeout, err := time.ParseDuration(s.CommandTimeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("command_timeout %q: %w", s.CommandTimeout, marten.ErrInvalidConfig))
		} else if err := marten.ValidateTimeout(timeout); err != nil {
			errs = append(errs, err)
		}
		settings.CommandTimeout = timeout
	}

	policy, err := s.Retry.Policy()
	if err != nil {
		errs = append(errs, err)
	}
	settings.Retry = policy

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return settings, nil
}

// Policy builds the retry policy. Zero attempts never retries.
func (r RetryConfig) Policy() (marten.RetryPolicy, error) {
	if r.Attempts < 0 {
		return nil, fmt.Errorf("retry attempts %d cannot be negative: %w", r.Attempts, marten.ErrInvalidConfig)
	}
	if r.Attempts == 0 {
		return retry.Never(), nil
	}

	var filter retry.Filter
	if r.TransientOnly == nil || *r.TransientOnly {
		filter = retry.TransientErrors
	}
	return retry.NTimes(r.Attempts, filter), nil
}
