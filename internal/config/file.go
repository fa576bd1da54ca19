package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file structure.
type FileConfig struct {
	ServerPort          string         `toml:"server_port"`
	LogLevel            string         `toml:"log_level"`
	LogFormat           string         `toml:"log_format"`
	DBPath              string         `toml:"db_path"`
	EnableRequestLog    *bool          `toml:"enable_request_log"`
	DefaultSystemPrompt string         `toml:"default_system_prompt"`
	DefaultTemperature  *float64       `toml:"default_temperature"`
	Provider            ProviderFields `toml:"provider"`
}

// ProviderFields is the [provider] table of the config file.
type ProviderFields struct {
	Type         string `toml:"type"`
	Host         string `toml:"host"`
	DeploymentID string `toml:"deployment_id"`
	APIVersion   string `toml:"api_version"`
	Organization string `toml:"organization"`
	APIKey       string `toml:"api_key"`
}

// ConfigPath returns the path to the config file (~/.chatrelay/config.toml).
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadFile loads configuration from the TOML file.
// Returns an empty FileConfig if the file doesn't exist.
func LoadFile() (*FileConfig, error) {
	return loadFileFrom(ConfigPath())
}

func loadFileFrom(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureConfigFile creates a default config file with commented examples if none exists.
func EnsureConfigFile() error {
	path := ConfigPath()

	// If config already exists, do nothing
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := EnsureDataDir(); err != nil {
		return err
	}

	defaultConfig := `# Chat relay configuration
# Environment variables (OPENAI_API_TYPE, OPENAI_API_HOST, ...) take precedence.
# server_port = ":3000"
# log_level = "info"
# log_format = "text"
# enable_request_log = true
# default_temperature = 1.0

# [provider]
# type = "openai"
# host = "https://api.openai.com"
# organization = "org-..."
# api_key = "sk-..."

# Azure OpenAI example
# [provider]
# type = "azure"
# host = "https://my-resource.openai.azure.com"
# deployment_id = "gpt-35-turbo"
# api_version = "2023-03-15-preview"
# api_key = "..."
`

	return os.WriteFile(path, []byte(defaultConfig), 0600)
}
