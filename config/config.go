package config

import (
	"fmt"
	"time"

	"github.com/mensylisir/xmbuild/executor"
)

const (
	APIVersion = "xmbuild/v1"
	Kind       = "BuildConfig"
)

// BuildConfig is the top-level configuration document of a build.
type BuildConfig struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   MetadataSpec `yaml:"metadata"`
	Spec       BuildSpec    `yaml:"spec"`
}

// MetadataSpec names the project being built.
type MetadataSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// BuildSpec holds the ambient settings of a build. The task tree itself is assembled in code.
type BuildSpec struct {
	WorkDir     string            `yaml:"workDir,omitempty"`
	IgnoreError bool              `yaml:"ignoreError,omitempty"`
	Properties  map[string]string `yaml:"properties,omitempty"`
	Logging     LoggingSpec       `yaml:"logging"`
	Metrics     MetricsSpec       `yaml:"metrics"`
	Host        *HostSpec         `yaml:"host,omitempty"` // Commands run locally when nil
}

type LoggingSpec struct {
	Level      string `yaml:"level,omitempty"`
	Verbose    bool   `yaml:"verbose,omitempty"`
	OutputPath string `yaml:"outputPath,omitempty"`
	NoColors   bool   `yaml:"noColors,omitempty"`
}

type MetricsSpec struct {
	Namespace string `yaml:"namespace,omitempty"`
	// Textfile, when set, receives the build metrics in Prometheus text format after the build.
	Textfile string `yaml:"textfile,omitempty"`
}

// HostSpec defines the remote host commands are executed on.
type HostSpec struct {
	Name           string        `yaml:"name"`
	Address        string        `yaml:"address"`
	Port           int           `yaml:"port,omitempty"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password,omitempty"`
	PrivateKeyPath string        `yaml:"privateKeyPath,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// SSHConfig converts the host into executor settings.
func (h *HostSpec) SSHConfig() executor.SSHConfig {
	return executor.SSHConfig{
		Username: h.User,
		Password: h.Password,
		Address:  h.Address,
		Port:     h.Port,
		KeyFile:  h.PrivateKeyPath,
		Timeout:  h.Timeout,
	}
}

// Validate checks value ranges. Call it after SetDefaults.
func (c *BuildConfig) Validate() error {
	if c.Spec.WorkDir == "" {
		return fmt.Errorf("spec.workDir must not be empty")
	}
	if h := c.Spec.Host; h != nil {
		if h.Address == "" {
			return fmt.Errorf("spec.host.address is required")
		}
		if h.User == "" {
			return fmt.Errorf("spec.host.user is required for host '%s'", h.Address)
		}
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("spec.host.port %d is out of range", h.Port)
		}
		if h.Password == "" && h.PrivateKeyPath == "" {
			return fmt.Errorf("spec.host needs a password or privateKeyPath for host '%s'", h.Address)
		}
		if h.Timeout < 0 {
			return fmt.Errorf("spec.host.timeout must not be negative")
		}
	}
	return nil
}
