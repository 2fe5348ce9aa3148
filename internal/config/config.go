package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// DefaultGridURL is the remote WebDriver hub all sessions are dialed against.
const DefaultGridURL = "https://hub.lambdatest.com/wd/hub"

// DefaultAPIURL is the base URL of the LambdaTest automation REST API.
const DefaultAPIURL = "https://api.lambdatest.com/automation/api/v1"

// AppConfig holds the application configuration.
type AppConfig struct {
	Version             string                `yaml:"version"`
	Debug               bool                  `yaml:"debug"`
	Username            string                `yaml:"username"`
	AccessKey           string                `yaml:"access-key"`
	GridURL             string                `yaml:"grid-url"`
	APIURL              string                `yaml:"api-url"`
	ApiPort             string                `yaml:"api-port"`
	PingIntervalSeconds int                   `yaml:"ping-interval-seconds"`
	Capabilities        AppConfigCapabilities `yaml:"capabilities"`
	Tunnel              AppConfigTunnel       `yaml:"tunnel"`
}

// AppConfigCapabilities sets the defaults applied to every remote session.
type AppConfigCapabilities struct {
	Path            string `yaml:"path,omitempty"`
	Build           string `yaml:"build,omitempty"`
	Resolution      string `yaml:"resolution,omitempty"`
	SeleniumVersion string `yaml:"selenium-version,omitempty"`
	Timezone        string `yaml:"timezone,omitempty"`
	Video           bool   `yaml:"video"`
	Console         bool   `yaml:"console"`
	Network         bool   `yaml:"network"`
}

// AppConfigTunnel configures the vendor tunnel binary.
type AppConfigTunnel struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Proxy       string `yaml:"proxy,omitempty"`
	LogFile     string `yaml:"log-file,omitempty"`
	InfoAPIPort int    `yaml:"info-api-port,omitempty"`
}

// LoadConfig loads configuration from the YAML config file and applies
// environment variable overrides. The file is optional, the credentials
// are not.
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{
		GridURL:             DefaultGridURL,
		APIURL:              DefaultAPIURL,
		ApiPort:             "9398",
		PingIntervalSeconds: 90,
	}

	configPath := os.Getenv("LT_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		err = yaml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %v", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(config)

	if config.Username == "" || config.AccessKey == "" {
		return nil, fmt.Errorf("LambdaTest credentials are missing, set LT_USERNAME and LT_ACCESS_KEY")
	}

	return config, nil
}

func applyEnv(config *AppConfig) {
	setString(&config.Username, "LT_USERNAME")
	setString(&config.AccessKey, "LT_ACCESS_KEY")
	setString(&config.GridURL, "LT_GRID_URL")
	setString(&config.APIURL, "LT_API_URL")
	setString(&config.ApiPort, "LT_API_PORT")
	setString(&config.Capabilities.Path, "LT_CAPABILITY_PATH")
	setString(&config.Capabilities.Build, "LT_BUILD")
	setString(&config.Capabilities.Resolution, "LT_RESOLUTION")
	setString(&config.Capabilities.SeleniumVersion, "LT_SELENIUM_VERSION")
	setString(&config.Capabilities.Timezone, "LT_TIMEZONE")
	setString(&config.Tunnel.Name, "LT_TUNNEL_NAME")
	setString(&config.Tunnel.Path, "LT_TUNNEL_PATH")
	setString(&config.Tunnel.Proxy, "LT_PROXY")
	setString(&config.Tunnel.LogFile, "LT_TUNNEL_LOG_FILE")
	setBool(&config.Debug, "LT_DEBUG")
	setBool(&config.Capabilities.Video, "LT_VIDEO")
	setBool(&config.Capabilities.Console, "LT_CONSOLE")
	setBool(&config.Capabilities.Network, "LT_NETWORK")
	setBool(&config.Tunnel.Enabled, "LT_TUNNEL")
	setInt(&config.PingIntervalSeconds, "LT_PING_INTERVAL")
	setInt(&config.Tunnel.InfoAPIPort, "LT_TUNNEL_INFO_API_PORT")
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			*dst = parsed
		}
	}
}
