package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider types accepted in OPENAI_API_TYPE.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Defaults applied when neither env nor file set a value.
const (
	DefaultAPIHost       = "https://api.openai.com"
	DefaultAPIVersion    = "2023-03-15-preview"
	DefaultSystemPrompt  = "You are ChatGPT, a large language model trained by OpenAI. Follow the user's instructions carefully. Respond using markdown."
	DefaultTemperature   = 1.0
	defaultServerPort    = ":3000"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultRequestLogged = true
)

// ErrMissingDeployment is returned when the azure provider has no deployment ID.
var ErrMissingDeployment = errors.New("azure provider requires AZURE_DEPLOYMENT_ID")

// ProviderConfig describes the upstream provider. It is read once at startup
// and shared read-only by every request.
type ProviderConfig struct {
	// Type is ProviderOpenAI or ProviderAzure
	Type string

	// Host is the scheme and host of the upstream API, without a trailing slash
	Host string

	// DeploymentID names the azure deployment; the model is implied by it
	DeploymentID string

	// APIVersion is sent as the api-version query parameter for azure
	APIVersion string

	// Organization is sent as OpenAI-Organization for the openai type only
	Organization string

	// APIKey is the default key used when a request carries none
	APIKey string
}

// IsAzure reports whether requests target a hosted azure deployment.
func (p ProviderConfig) IsAzure() bool {
	return p.Type == ProviderAzure
}

// Config holds application configuration loaded from environment and file.
// Priority: Env vars → config.toml → defaults
type Config struct {
	// ServerPort is the address to bind the server to (e.g., ":3000")
	ServerPort string

	// LogLevel is one of debug, info, warn, error
	LogLevel string

	// LogFormat is text or json
	LogFormat string

	// DBPath is the SQLite request log database
	DBPath string

	// EnableRequestLog stores every relay invocation in DBPath
	EnableRequestLog bool

	// DefaultSystemPrompt is used when the client sends an empty prompt
	DefaultSystemPrompt string

	// DefaultTemperature is used when the client omits temperature
	DefaultTemperature float64

	Provider ProviderConfig
}

// Load reads configuration from file and environment variables.
// Environment variables override file config values.
func Load() (*Config, error) {
	fileConfig, err := LoadFile()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigPath(), err)
	}
	return fromSources(fileConfig)
}

func fromSources(fileConfig *FileConfig) (*Config, error) {
	temperature, err := getEnvFloatOrFile("DEFAULT_TEMPERATURE", fileConfig.DefaultTemperature, DefaultTemperature)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          getEnvOrFile("SERVER_PORT", fileConfig.ServerPort, defaultServerPort),
		LogLevel:            getEnvOrFile("LOG_LEVEL", fileConfig.LogLevel, defaultLogLevel),
		LogFormat:           getEnvOrFile("LOG_FORMAT", fileConfig.LogFormat, defaultLogFormat),
		DBPath:              getEnvOrFile("DB_PATH", fileConfig.DBPath, DBPath()),
		EnableRequestLog:    getEnvBoolOrFile("ENABLE_REQUEST_LOG", fileConfig.EnableRequestLog, defaultRequestLogged),
		DefaultSystemPrompt: getEnvOrFile("DEFAULT_SYSTEM_PROMPT", fileConfig.DefaultSystemPrompt, DefaultSystemPrompt),
		DefaultTemperature:  temperature,
		Provider: ProviderConfig{
			Type:         strings.ToLower(getEnvOrFile("OPENAI_API_TYPE", fileConfig.Provider.Type, ProviderOpenAI)),
			Host:         strings.TrimRight(getEnvOrFile("OPENAI_API_HOST", fileConfig.Provider.Host, DefaultAPIHost), "/"),
			DeploymentID: getEnvOrFile("AZURE_DEPLOYMENT_ID", fileConfig.Provider.DeploymentID, ""),
			APIVersion:   getEnvOrFile("OPENAI_API_VERSION", fileConfig.Provider.APIVersion, DefaultAPIVersion),
			Organization: getEnvOrFile("OPENAI_ORGANIZATION", fileConfig.Provider.Organization, ""),
			APIKey:       getEnvOrFile("OPENAI_API_KEY", fileConfig.Provider.APIKey, ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the provider settings.
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case ProviderOpenAI:
	case ProviderAzure:
		if c.Provider.DeploymentID == "" {
			return ErrMissingDeployment
		}
	default:
		return fmt.Errorf("unknown provider type %q (want %q or %q)", c.Provider.Type, ProviderOpenAI, ProviderAzure)
	}
	if c.Provider.Host == "" {
		return errors.New("provider host is empty")
	}
	return nil
}

// getEnvOrFile returns env value, file value, or default (in priority order)
func getEnvOrFile(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// getEnvBoolOrFile returns env bool, file bool, or default (in priority order)
func getEnvBoolOrFile(key string, fileValue *bool, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

// getEnvFloatOrFile returns env float, file float, or default (in priority order)
func getEnvFloatOrFile(key string, fileValue *float64, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return f, nil
	}
	if fileValue != nil {
		return *fileValue, nil
	}
	return defaultValue, nil
}
