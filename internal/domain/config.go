package domain

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration loaded from a YAML file.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Jira      JiraConfig      `yaml:"jira"`
}

// TransportConfig selects stdio or HTTP transport.
type TransportConfig struct {
	Type string     `yaml:"type"` // "stdio" or "http"
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig defines HTTP transport settings, used when type is "http".
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JiraConfig configures the Jira instance and its projects. BaseURL may
// be omitted when the credential provider supplies one. Credentials
// selects where the provider looks first: "env" or "keyring".
type JiraConfig struct {
	BaseURL     string                   `yaml:"base_url,omitempty"`
	Credentials string                   `yaml:"credentials,omitempty"`
	Projects    map[string]ProjectConfig `yaml:"projects,omitempty"`
}

// ProjectConfig holds per-project settings. Fields maps opaque custom
// field ids to friendly names and merges over the built-in tables.
type ProjectConfig struct {
	Fields map[string]string `yaml:"fields,omitempty"`
}

// LoadConfig reads and validates configuration from a YAML file. A
// missing file is not an error by itself: the zero config (stdio
// transport, built-in field tables, keyring credentials) is valid, so
// the server can run without a config file at all.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config := &Config{}
			config.applyDefaults()
			return config, nil
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax in configuration file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Transport.Type == "" {
		c.Transport.Type = "stdio"
	}
	if c.Jira.Credentials == "" {
		c.Jira.Credentials = "keyring"
	}
}

// Validate checks the configuration for completeness and correctness.
// Returns an error describing all validation failures, including any
// friendly-name collision in the project field mappings.
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateTransport(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateJira(); err != nil {
		errors = append(errors, err.Error())
	}

	// A mapping collision is fatal at load, never a silent overwrite.
	if _, err := NewFieldTable(c.FieldOverrides()); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validateTransport validates the transport configuration.
func (c *Config) validateTransport() error {
	var errors []string

	if c.Transport.Type != "stdio" && c.Transport.Type != "http" {
		errors = append(errors, fmt.Sprintf("invalid transport type '%s': must be 'stdio' or 'http'", c.Transport.Type))
	}

	if c.Transport.Type == "http" {
		if c.Transport.HTTP.Host == "" {
			errors = append(errors, "HTTP host is required when transport type is 'http'")
		}
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid HTTP port %d: must be between 1 and 65535", c.Transport.HTTP.Port))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// validateJira validates the Jira section.
func (c *Config) validateJira() error {
	var errors []string

	if c.Jira.BaseURL != "" {
		parsedURL, err := url.Parse(c.Jira.BaseURL)
		if err != nil {
			errors = append(errors, fmt.Sprintf("jira base_url is invalid: %v", err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, "jira base_url must use http or https scheme")
		} else if parsedURL.Host == "" {
			errors = append(errors, "jira base_url must include a host")
		}
	}

	if c.Jira.Credentials != "env" && c.Jira.Credentials != "keyring" {
		errors = append(errors, fmt.Sprintf("invalid credentials source '%s': must be 'env' or 'keyring'", c.Jira.Credentials))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// FieldOverrides collects the configured per-project field mappings.
func (c *Config) FieldOverrides() map[string]map[string]string {
	if len(c.Jira.Projects) == 0 {
		return nil
	}
	overrides := make(map[string]map[string]string, len(c.Jira.Projects))
	for project, pc := range c.Jira.Projects {
		if len(pc.Fields) > 0 {
			overrides[project] = pc.Fields
		}
	}
	return overrides
}

// BuildFieldTable constructs the process-lifetime field table from the
// built-in defaults and the configured overrides.
func (c *Config) BuildFieldTable() (*FieldTable, error) {
	return NewFieldTable(c.FieldOverrides())
}
